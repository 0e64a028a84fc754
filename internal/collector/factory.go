package collector

import (
	"fmt"

	"github.com/loganintech/go-reddit/v2/reddit"
	"github.com/salcido/reddibot/internal/config"
	"github.com/salcido/reddibot/internal/domain"
)

// NewCollector selects the correct implementation based on feed.mode
func NewCollector(cfg config.FeedConfig) (domain.Collector, error) {
	switch cfg.Mode {
	case config.ModeAPI:
		return NewAPIClient(reddit.Credentials{
			ID:       cfg.Reddit.ClientID,
			Secret:   cfg.Reddit.ClientSecret,
			Username: cfg.Reddit.Username,
			Password: cfg.Reddit.Password,
		}, cfg.UserAgent, cfg.TimeWindow)
	case config.ModePublic:
		return NewPublicClient(cfg.UserAgent, cfg.TimeWindow)
	case config.ModeMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown collector mode: %s (use 'api', 'public', or 'mock')", cfg.Mode)
	}
}
