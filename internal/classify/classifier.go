// Package classify turns raw feed posts into categorized items.
package classify

import (
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/salcido/reddibot/internal/domain"
)

// Rejection reasons reported on Item.Reason.
const (
	ReasonVideo     = "video"
	ReasonAnimated  = "animated"
	ReasonTitleLen  = "title_too_long"
	ReasonThreshold = "below_threshold"
	ReasonNotImage  = "not_an_image"
	ReasonMalformed = "malformed"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

// Options configures the inclusion rules.
type Options struct {
	ImageThreshold     int
	TextThreshold      int
	MaxTitleLen        int
	Profile            Profile
	AnimatedExtensions []string
	TextGroups         []string
	ShortLinkDomain    string
	RequireImageURL    bool
	Resolver           Resolver
}

// Classifier assigns exactly one category to every raw post.
type Classifier struct {
	opts       Options
	textGroups map[string]struct{}
}

func New(opts Options) *Classifier {
	groups := make(map[string]struct{}, len(opts.TextGroups))
	for _, g := range opts.TextGroups {
		groups[strings.ToLower(g)] = struct{}{}
	}
	return &Classifier{opts: opts, textGroups: groups}
}

// Classify sanitizes the title once and decides the category. Malformed
// records come back Rejected together with a *domain.ClassifyError.
func (c *Classifier) Classify(raw domain.RawPost) (domain.Item, error) {
	item := domain.Item{
		ID:          raw.ID,
		OriginURL:   raw.URL,
		ResolvedURL: raw.URL,
		GroupKey:    raw.Subreddit,
		ScoreSignal: raw.Ups,
		Category:    domain.CategoryRejected,
	}
	if item.ScoreSignal == 0 {
		item.ScoreSignal = raw.Score
	}

	if reason := missingField(raw); reason != "" {
		item.Title = raw.Title
		item.Reason = ReasonMalformed
		return item, &domain.ClassifyError{ItemID: raw.ID, Reason: reason}
	}

	short, err := ShortLink(c.opts.ShortLinkDomain, raw.Permalink)
	if err != nil {
		item.Title = raw.Title
		item.Reason = ReasonMalformed
		return item, &domain.ClassifyError{ItemID: raw.ID, Reason: err.Error()}
	}
	item.ShortLink = short
	item.Title = Sanitize(raw.Title, c.opts.Profile)

	switch {
	case raw.IsVideo:
		item.Reason = ReasonVideo
	case c.isAnimated(raw.URL):
		item.Reason = ReasonAnimated
	case utf8.RuneCountInString(item.Title) > c.opts.MaxTitleLen:
		item.Reason = ReasonTitleLen
	case c.isText(raw):
		if item.ScoreSignal > c.opts.TextThreshold {
			item.Category = domain.CategoryText
			item.ResolvedURL = ""
		} else {
			item.Reason = ReasonThreshold
		}
	case item.ScoreSignal < c.opts.ImageThreshold:
		item.Reason = ReasonThreshold
	case c.opts.RequireImageURL && !c.looksLikeImage(raw.URL):
		item.Reason = ReasonNotImage
	default:
		item.Category = domain.CategoryImage
		item.ResolvedURL = c.opts.Resolver.Resolve(raw.URL)
	}

	return item, nil
}

// Stats counts how a batch was classified.
type Stats struct {
	Accepted  int
	Rejected  map[string]int
	Malformed int
}

// Batch classifies raws and keeps only accepted items, in input order.
func (c *Classifier) Batch(raws []domain.RawPost) ([]domain.Item, Stats) {
	stats := Stats{Rejected: map[string]int{}}
	items := make([]domain.Item, 0, len(raws))
	for _, raw := range raws {
		item, err := c.Classify(raw)
		if err != nil {
			stats.Malformed++
			continue
		}
		if item.Category == domain.CategoryRejected {
			stats.Rejected[item.Reason]++
			continue
		}
		stats.Accepted++
		items = append(items, item)
	}
	return items, stats
}

func (c *Classifier) isText(raw domain.RawPost) bool {
	if raw.IsSelf {
		return true
	}
	_, ok := c.textGroups[strings.ToLower(raw.Subreddit)]
	return ok
}

func (c *Classifier) isAnimated(raw string) bool {
	p := strings.ToLower(urlPath(raw))
	for _, ext := range c.opts.AnimatedExtensions {
		if strings.HasSuffix(p, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func (c *Classifier) looksLikeImage(raw string) bool {
	ext := strings.ToLower(path.Ext(urlPath(raw)))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return c.opts.Resolver.IsAggregator(raw)
}

// urlPath drops query and fragment so "x.gif?width=640" still reads as a gif.
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

func missingField(raw domain.RawPost) string {
	switch {
	case raw.ID == "":
		return "missing id"
	case strings.TrimSpace(raw.Title) == "":
		return "missing title"
	case raw.Permalink == "":
		return "missing permalink"
	case raw.URL == "" && !raw.IsSelf:
		return "missing url"
	}
	return ""
}
