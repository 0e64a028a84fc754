package collector

import (
	"context"
	"fmt"

	"github.com/salcido/reddibot/internal/domain"
)

// MockClient implements domain.Collector but returns fake data
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

// FetchTopPosts spreads limit posts over the requested subreddits. Every
// fifth post is a video and every seventh a gif so the filters have work to do.
func (mc *MockClient) FetchTopPosts(ctx context.Context, subs []string, limit int) ([]domain.RawPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}

	var posts []domain.RawPost
	for i := 0; i < limit; i++ {
		sub := subs[i%len(subs)]
		id := fmt.Sprintf("m%05d", i)
		ext := ".jpg"
		if i%7 == 6 {
			ext = ".gif"
		}
		posts = append(posts, domain.RawPost{
			ID:        id,
			Title:     fmt.Sprintf("Simulated %s post #%d", sub, i),
			URL:       fmt.Sprintf("https://i.example.com/%s%s", id, ext),
			Permalink: fmt.Sprintf("/r/%s/comments/%s/simulated_post_%d/", sub, id, i),
			Subreddit: sub,
			Author:    "simulated_user",
			Score:     500 + 100*i,
			Ups:       500 + 100*i,
			IsVideo:   i%5 == 4,
		})
	}
	return posts, nil
}
