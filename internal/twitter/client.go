// Package twitter talks to the Twitter v1.1 REST API: media upload, alt
// text, status updates and the account timeline used as publish history.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"

	"github.com/salcido/reddibot/internal/domain"
	"github.com/salcido/reddibot/internal/publish"
)

const (
	defaultAPIBase    = "https://api.twitter.com/1.1"
	defaultUploadBase = "https://upload.twitter.com/1.1"
	maxTimelineCount  = 200
)

// Credentials are the app and account keys for OAuth1 user context.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Client implements publish.API and domain.HistorySource.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	apiBase    string
	uploadBase string
	screenName string
}

var (
	_ publish.API          = (*Client)(nil)
	_ domain.HistorySource = (*Client)(nil)
)

// Option tweaks a Client.
type Option func(*Client)

// WithBaseURLs points API and upload calls elsewhere (tests).
func WithBaseURLs(api, upload string) Option {
	return func(c *Client) {
		c.apiBase = strings.TrimSuffix(api, "/")
		c.uploadBase = strings.TrimSuffix(upload, "/")
	}
}

// WithHTTPClient replaces the OAuth1-signing client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLimiter replaces the default limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient builds an OAuth1-signed client for screenName's account.
func NewClient(creds Credentials, screenName string, timeout time.Duration, opts ...Option) *Client {
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	httpClient := cfg.Client(oauth1.NoContext, token)
	httpClient.Timeout = timeout

	c := &Client{
		http: httpClient,
		// 300 writes / 3h for statuses; one call every 2s keeps bursts polite
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 3),
		apiBase:    defaultAPIBase,
		uploadBase: defaultUploadBase,
		screenName: screenName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadMedia sends a base64 payload and returns the media id.
func (c *Client) UploadMedia(ctx context.Context, encoded string) (string, error) {
	form := url.Values{}
	form.Set("media_data", encoded)

	var resp struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := c.postForm(ctx, c.uploadBase+"/media/upload.json", form, &resp); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if resp.MediaIDString == "" {
		return "", fmt.Errorf("upload media: empty media id")
	}
	return resp.MediaIDString, nil
}

// CreateMetadata attaches alt text to an uploaded media id.
func (c *Client) CreateMetadata(ctx context.Context, mediaID, altText string) error {
	body, err := json.Marshal(map[string]any{
		"media_id": mediaID,
		"alt_text": map[string]string{"text": altText},
	})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, c.uploadBase+"/media/metadata/create.json", "application/json", bytes.NewReader(body), nil); err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}
	return nil
}

// UpdateStatus posts a status, optionally with attached media ids.
func (c *Client) UpdateStatus(ctx context.Context, status string, mediaIDs []string) error {
	form := url.Values{}
	form.Set("status", status)
	if len(mediaIDs) > 0 {
		form.Set("media_ids", strings.Join(mediaIDs, ","))
	}
	if err := c.postForm(ctx, c.apiBase+"/statuses/update.json", form, nil); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

type tweet struct {
	Text     string `json:"text"`
	FullText string `json:"full_text"`
}

// RecentTexts returns the texts of the account's n most recent tweets as
// they were posted. The API caps a single page at 200 and escapes &, < and >
// in tweet text, so entities are decoded here.
func (c *Client) RecentTexts(ctx context.Context, n int) ([]string, error) {
	if n > maxTimelineCount {
		n = maxTimelineCount
	}
	q := url.Values{}
	q.Set("screen_name", c.screenName)
	q.Set("count", strconv.Itoa(n))
	q.Set("tweet_mode", "extended")

	var tweets []tweet
	if err := c.do(ctx, http.MethodGet, c.apiBase+"/statuses/user_timeline.json?"+q.Encode(), "", nil, &tweets); err != nil {
		return nil, &domain.FetchError{Source: "twitter timeline", Err: err}
	}

	texts := make([]string, 0, len(tweets))
	for _, t := range tweets {
		text := t.FullText
		if text == "" {
			text = t.Text
		}
		texts = append(texts, html.UnescapeString(text))
	}
	return texts, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), out)
}

type apiErrors struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var apiErr apiErrors
	if len(payload) > 0 && payload[0] == '{' {
		_ = json.Unmarshal(payload, &apiErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || len(apiErr.Errors) > 0 {
		if len(apiErr.Errors) > 0 {
			return fmt.Errorf("twitter error %s: %d %s", resp.Status, apiErr.Errors[0].Code, apiErr.Errors[0].Message)
		}
		return fmt.Errorf("twitter error %s: %s", resp.Status, strings.TrimSpace(string(truncate(payload, 512))))
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
