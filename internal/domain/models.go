package domain

import (
	"context"
	"fmt"
	"time"
)

// Target represents a subreddit the bot pulls from
type Target struct {
	Subreddit string
	Kind      TargetKind
}

type TargetKind string

const (
	TargetImage TargetKind = "image"
	TargetText  TargetKind = "text"
)

// RawPost is a feed record before classification
type RawPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
	Author     string  `json:"author"`
	Score      int     `json:"score"`
	Ups        int     `json:"ups"`
	IsVideo    bool    `json:"is_video"`
	IsSelf     bool    `json:"is_self"`
	NSFW       bool    `json:"over_18"`
	Stickied   bool    `json:"stickied"`
	CreatedUTC float64 `json:"created_utc"`
}

// Category is the media kind decided once by the classifier.
type Category int

const (
	CategoryRejected Category = iota
	CategoryImage
	CategoryText
)

func (c Category) String() string {
	switch c {
	case CategoryImage:
		return "image"
	case CategoryText:
		return "text"
	default:
		return "rejected"
	}
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	switch string(b) {
	case "image":
		*c = CategoryImage
	case "text":
		*c = CategoryText
	case "rejected":
		*c = CategoryRejected
	default:
		return fmt.Errorf("unknown category %q", b)
	}
	return nil
}

// Item is a classified candidate for publishing.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	OriginURL   string   `json:"origin_url"`
	ResolvedURL string   `json:"resolved_url,omitempty"`
	ShortLink   string   `json:"short_link"`
	Category    Category `json:"category"`
	GroupKey    string   `json:"group"`
	ScoreSignal int      `json:"score"`
	Reason      string   `json:"reason,omitempty"`
}

// Collector defines the interface for data fetching
type Collector interface {
	FetchTopPosts(ctx context.Context, subreddits []string, limit int) ([]RawPost, error)
}

// Publisher sends one item to the posting service.
type Publisher interface {
	Publish(ctx context.Context, item Item) error
}

// HistorySource returns the most recent published message texts, newest first.
type HistorySource interface {
	RecentTexts(ctx context.Context, n int) ([]string, error)
}

// EventKind names a tick outcome. The values double as log messages.
type EventKind string

const (
	EventPublished        EventKind = "tick_published"
	EventSkippedDuplicate EventKind = "tick_skipped_duplicate"
	EventFetchFailed      EventKind = "tick_fetch_failed"
	EventPublishFailed    EventKind = "tick_publish_failed"
	EventExhausted        EventKind = "tick_exhausted"
	EventBusy             EventKind = "tick_busy"
)

// Event is the observable record of something a tick did.
type Event struct {
	ID       string    `json:"id"`
	TickID   string    `json:"tick_id"`
	Kind     EventKind `json:"kind"`
	Title    string    `json:"title,omitempty"`
	Group    string    `json:"group,omitempty"`
	Category string    `json:"category,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Error    string    `json:"error,omitempty"`
	QueueLen int       `json:"queue_len"`
	At       time.Time `json:"at"`
}
