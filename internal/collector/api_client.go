package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"github.com/salcido/reddibot/internal/domain"
	"golang.org/x/time/rate"
)

// APIClient reads listings through the authenticated Reddit API.
type APIClient struct {
	client     *reddit.Client
	limiter    *rate.Limiter
	timeWindow string
}

func NewAPIClient(creds reddit.Credentials, userAgent, timeWindow string) (*APIClient, error) {
	client, err := reddit.NewClient(creds, reddit.WithUserAgent(userAgent))
	if err != nil {
		return nil, err
	}

	// API Rate Limit: ~60 reqs/min (safe buffer)
	limiter := rate.NewLimiter(rate.Every(1*time.Second), 1)

	return &APIClient{client: client, limiter: limiter, timeWindow: timeWindow}, nil
}

func (ac *APIClient) FetchTopPosts(ctx context.Context, subs []string, limit int) ([]domain.RawPost, error) {
	if err := ac.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	opts := &reddit.ListPostOptions{
		ListOptions: reddit.ListOptions{Limit: limit},
		Time:        ac.timeWindow,
	}
	posts, _, err := ac.client.Subreddit.TopPosts(ctx, strings.Join(subs, "+"), opts)
	if err != nil {
		return nil, &domain.FetchError{Source: "reddit api", Err: fmt.Errorf("top posts: %w", err)}
	}

	result := make([]domain.RawPost, 0, len(posts))
	for _, p := range posts {
		raw := domain.RawPost{
			ID:        p.ID,
			Title:     p.Title,
			URL:       p.URL,
			Permalink: p.Permalink,
			Subreddit: p.SubredditName,
			Author:    p.Author,
			Score:     p.Score,
			Ups:       p.Score,
			IsVideo:   isRedditVideo(p.URL),
			IsSelf:    p.IsSelfPost,
			NSFW:      p.NSFW,
			Stickied:  p.Stickied,
		}
		if p.Created != nil {
			raw.CreatedUTC = float64(p.Created.Time.Unix())
		}
		result = append(result, raw)
	}
	return result, nil
}

// The API model carries no video flag; reddit-hosted video lives on v.redd.it.
func isRedditVideo(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), "v.redd.it")
}
