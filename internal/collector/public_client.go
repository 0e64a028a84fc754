package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/salcido/reddibot/internal/domain"
	"golang.org/x/time/rate"
)

const defaultPublicBaseURL = "https://www.reddit.com"

type PublicClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	baseURL    string
	timeWindow string
}

type redditJSONResponse struct {
	Data struct {
		Children []struct {
			Data domain.RawPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// PublicOption tweaks a PublicClient.
type PublicOption func(*PublicClient)

// WithBaseURL points the client at another host (tests, mirrors).
func WithBaseURL(base string) PublicOption {
	return func(pc *PublicClient) { pc.baseURL = strings.TrimSuffix(base, "/") }
}

// WithHTTPClient replaces the default 10s-timeout client.
func WithHTTPClient(c *http.Client) PublicOption {
	return func(pc *PublicClient) { pc.httpClient = c }
}

// WithLimiter replaces the default limiter.
func WithLimiter(l *rate.Limiter) PublicOption {
	return func(pc *PublicClient) { pc.limiter = l }
}

func NewPublicClient(userAgent, timeWindow string, opts ...PublicOption) (*PublicClient, error) {
	if userAgent == "" {
		return nil, fmt.Errorf("user agent is required for public mode")
	}
	pc := &PublicClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Public JSON Limit: 1 req / 2 seconds (Stricter)
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
		userAgent:  userAgent,
		baseURL:    defaultPublicBaseURL,
		timeWindow: timeWindow,
	}
	for _, opt := range opts {
		opt(pc)
	}
	return pc, nil
}

func (pc *PublicClient) FetchTopPosts(ctx context.Context, subs []string, limit int) ([]domain.RawPost, error) {
	if err := pc.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := pc.topURL(subs, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", pc.userAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Source: "reddit public", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{Source: "reddit public", Status: resp.StatusCode}
	}

	var rResp redditJSONResponse
	if err := json.NewDecoder(resp.Body).Decode(&rResp); err != nil {
		return nil, &domain.FetchError{Source: "reddit public", Err: fmt.Errorf("decode listing: %w", err)}
	}

	posts := make([]domain.RawPost, 0, len(rResp.Data.Children))
	for _, child := range rResp.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}

func (pc *PublicClient) topURL(subs []string, limit int) string {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	if pc.timeWindow != "" {
		q.Set("t", pc.timeWindow)
	}
	return fmt.Sprintf("%s/r/%s/top.json?%s", pc.baseURL, strings.Join(subs, "+"), q.Encode())
}
