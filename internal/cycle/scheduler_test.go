package cycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/salcido/reddibot/internal/classify"
	"github.com/salcido/reddibot/internal/dedupe"
	"github.com/salcido/reddibot/internal/domain"
)

type fakeCollector struct {
	mu    sync.Mutex
	posts []domain.RawPost
	err   error
	calls int
}

func (f *fakeCollector) FetchTopPosts(_ context.Context, _ []string, _ int) ([]domain.RawPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.posts, f.err
}

func (f *fakeCollector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHistory struct {
	mu    sync.Mutex
	texts []string
	err   error
	calls int
}

func (f *fakeHistory) RecentTexts(_ context.Context, _ int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.texts, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	published []domain.Item
	err       error
	block     chan struct{}
	entered   chan struct{}
	onPublish func(domain.Item)
}

func (f *fakePublisher) Publish(ctx context.Context, item domain.Item) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, item)
	if f.onPublish != nil {
		f.onPublish(item)
	}
	return nil
}

func (f *fakePublisher) Published() []domain.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Item(nil), f.published...)
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[domain.EventKind]int
	queueLen int
	refill   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: map[domain.EventKind]int{}, refill: map[string]int{}}
}

func (r *countingRecorder) Observe(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[ev.Kind]++
}

func (r *countingRecorder) SetQueueLength(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queueLen = n
}

func (r *countingRecorder) AddRefill(category string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill[category] += n
}

func testClassifier() *classify.Classifier {
	return classify.New(classify.Options{
		ImageThreshold:     1000,
		TextThreshold:      2000,
		MaxTitleLen:        280,
		Profile:            classify.ProfileDefault,
		AnimatedExtensions: []string{".gif", ".gifv"},
		TextGroups:         []string{"showerthoughts"},
		ShortLinkDomain:    "https://redd.it",
		RequireImageURL:    true,
		Resolver: classify.Resolver{
			AggregatorHosts: []string{"imgur.com"},
			DirectHost:      "i.imgur.com",
		},
	})
}

func post(id, sub, title string) domain.RawPost {
	return domain.RawPost{
		ID:        id,
		Title:     title,
		URL:       "https://i.redd.it/" + id + ".jpg",
		Permalink: fmt.Sprintf("/r/%s/comments/%s/slug/", sub, id),
		Subreddit: sub,
		Ups:       5000,
	}
}

type harness struct {
	sched     *Scheduler
	collector *fakeCollector
	history   *fakeHistory
	publisher *fakePublisher
	recorder  *countingRecorder
	events    chan domain.Event
}

func newHarness(posts []domain.RawPost, history []string) *harness {
	h := &harness{
		collector: &fakeCollector{posts: posts},
		history:   &fakeHistory{texts: history},
		publisher: &fakePublisher{},
		recorder:  newCountingRecorder(),
		events:    make(chan domain.Event, 64),
	}
	h.sched = New(Deps{
		Collector:  h.collector,
		Classifier: testClassifier(),
		Publisher:  h.publisher,
		History:    h.history,
		Gate:       dedupe.NewGate(dedupe.DefaultPrefixLen),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Events:     h.events,
		Metrics:    h.recorder,
	}, Options{Subreddits: []string{"aww", "rarepuppers"}, Limit: 25, HistorySize: 200})
	return h
}

func drainEvents(ch chan domain.Event) []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestTickPublishesOneAndClearsQueue(t *testing.T) {
	t.Parallel()

	posts := make([]domain.RawPost, 5)
	for i := range posts {
		posts[i] = post(fmt.Sprintf("p%d", i), "aww", fmt.Sprintf("Cat number %d", i))
	}
	h := newHarness(posts, nil)
	h.history.texts = []string{"published earlier"}

	ev := h.sched.Tick(context.Background())

	require.Equal(t, domain.EventPublished, ev.Kind)
	require.Equal(t, "Cat number 0", ev.Title)
	require.Equal(t, 0, ev.QueueLen)
	require.Len(t, h.publisher.Published(), 1)
	require.Equal(t, 0, h.sched.QueueLen())
	require.Equal(t, StateIdle, h.sched.State())
	// refill plus post-publish refresh
	require.Equal(t, 2, h.history.calls)
	require.NotEmpty(t, ev.ID)
	require.NotEmpty(t, ev.TickID)

	// the queue is empty, so the next tick refills first
	h.sched.Tick(context.Background())
	require.Equal(t, 2, h.collector.Calls())
}

func TestTickRefreshesHistoryAfterPublish(t *testing.T) {
	t.Parallel()

	h := newHarness([]domain.RawPost{post("a", "aww", "Fresh kitten")}, []string{"old"})
	h.publisher.onPublish = func(item domain.Item) {
		h.history.mu.Lock()
		h.history.texts = []string{item.Title + " https://redd.it/a \n#aww"}
		h.history.mu.Unlock()
	}

	ev := h.sched.Tick(context.Background())
	require.Equal(t, domain.EventPublished, ev.Kind)
	require.Equal(t, []string{"Fresh kitten https://redd.it/a \n#aww"}, h.sched.History())
}

func TestTickDuplicateDrainsToIdle(t *testing.T) {
	t.Parallel()

	title := "Somebody already tweeted this exact dog"
	h := newHarness(
		[]domain.RawPost{post("a", "aww", title)},
		[]string{title + " https://redd.it/a \n#aww"},
	)

	ev := h.sched.Tick(context.Background())

	require.Equal(t, domain.EventExhausted, ev.Kind)
	require.Equal(t, ReasonDrained, ev.Reason)
	require.Empty(t, h.publisher.Published())
	require.Equal(t, 0, h.sched.QueueLen())
	require.Equal(t, StateIdle, h.sched.State())

	events := drainEvents(h.events)
	require.Len(t, events, 2)
	require.Equal(t, domain.EventSkippedDuplicate, events[0].Kind)
	require.Equal(t, title, events[0].Title)
	require.Equal(t, ev.TickID, events[0].TickID)
}

func TestTickDuplicateWithEscapedTitle(t *testing.T) {
	t.Parallel()

	// feed titles arrive entity-encoded; history texts are already decoded
	h := newHarness(
		[]domain.RawPost{post("a", "aww", "Cats &amp; dogs &lt;3")},
		[]string{"Cats & dogs <3 https://redd.it/a \n#aww"},
	)

	ev := h.sched.Tick(context.Background())

	require.Equal(t, domain.EventExhausted, ev.Kind)
	require.Empty(t, h.publisher.Published())

	events := drainEvents(h.events)
	require.Equal(t, domain.EventSkippedDuplicate, events[0].Kind)
	require.Equal(t, "Cats & dogs <3", events[0].Title)
}

func TestTickSkipsDuplicatesThenPublishes(t *testing.T) {
	t.Parallel()

	h := newHarness([]domain.RawPost{
		post("a", "aww", "Seen before"),
		post("b", "aww", "Brand new"),
		post("c", "aww", "Also new"),
	}, []string{"Seen before https://redd.it/a"})

	ev := h.sched.Tick(context.Background())

	require.Equal(t, domain.EventPublished, ev.Kind)
	require.Equal(t, "Brand new", ev.Title)
	require.Equal(t, 0, h.sched.QueueLen())
	require.Equal(t, 1, h.recorder.outcomes[domain.EventSkippedDuplicate])
}

func TestTickFetchFailureLeavesQueueEmpty(t *testing.T) {
	t.Parallel()

	h := newHarness(nil, nil)
	h.collector.err = errors.New("connection refused")

	ev := h.sched.Tick(context.Background())

	require.Equal(t, domain.EventFetchFailed, ev.Kind)
	require.Contains(t, ev.Error, "connection refused")
	require.Equal(t, 0, h.sched.QueueLen())
	require.Equal(t, StateIdle, h.sched.State())
	require.Empty(t, h.publisher.Published())
}

func TestTickHistoryFailureIsFetchFailure(t *testing.T) {
	t.Parallel()

	h := newHarness([]domain.RawPost{post("a", "aww", "Dog")}, nil)
	h.history.err = &domain.FetchError{Source: "twitter timeline", Status: 503}

	ev := h.sched.Tick(context.Background())
	require.Equal(t, domain.EventFetchFailed, ev.Kind)
	require.Equal(t, 0, h.sched.QueueLen())
}

func TestRefillWrapsFetchError(t *testing.T) {
	t.Parallel()

	h := newHarness(nil, nil)
	h.collector.err = errors.New("dns")

	err := h.sched.Refill(context.Background())
	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, "feed", fe.Source)
}

func TestTickPublishFailureKeepsRemainder(t *testing.T) {
	t.Parallel()

	h := newHarness([]domain.RawPost{
		post("a", "aww", "First"),
		post("b", "aww", "Second"),
		post("c", "aww", "Third"),
	}, nil)
	h.publisher.err = &domain.PublishStepError{Step: domain.StepUpload, Err: errors.New("413")}

	ev := h.sched.Tick(context.Background())

	require.Equal(t, domain.EventPublishFailed, ev.Kind)
	require.Equal(t, "First", ev.Title)
	require.Equal(t, domain.StepUpload, ev.Reason)
	require.Equal(t, 2, h.sched.QueueLen())

	// the next tick resumes draining without refilling
	h.publisher.err = nil
	ev = h.sched.Tick(context.Background())
	require.Equal(t, domain.EventPublished, ev.Kind)
	require.Equal(t, "Second", ev.Title)
	require.Equal(t, 1, h.collector.Calls())
}

func TestTickEmptyRefillReturnsToIdle(t *testing.T) {
	t.Parallel()

	video := post("v", "aww", "A video")
	video.IsVideo = true
	h := newHarness([]domain.RawPost{video}, nil)

	ev := h.sched.Tick(context.Background())
	require.Equal(t, domain.EventExhausted, ev.Kind)
	require.Equal(t, ReasonEmptyRefill, ev.Reason)
	require.Equal(t, StateIdle, h.sched.State())
}

func TestTickDrainsInRankedOrder(t *testing.T) {
	t.Parallel()

	h := newHarness([]domain.RawPost{
		post("a", "Aww", "From aww"),
		post("b", "rarepuppers", "From rarepuppers"),
		post("c", "cats", "From cats"),
	}, nil)

	require.NoError(t, h.sched.Refill(context.Background()))
	queued := h.sched.Queued()
	require.Len(t, queued, 3)
	require.Equal(t, []string{"rarepuppers", "cats", "Aww"},
		[]string{queued[0].GroupKey, queued[1].GroupKey, queued[2].GroupKey})
	require.Equal(t, 3, h.recorder.refill["image"])
}

func TestTickBusyGuard(t *testing.T) {
	t.Parallel()

	h := newHarness([]domain.RawPost{post("a", "aww", "Slow upload")}, nil)
	h.publisher.block = make(chan struct{})
	h.publisher.entered = make(chan struct{}, 1)

	done := make(chan domain.Event, 1)
	go func() { done <- h.sched.Tick(context.Background()) }()

	<-h.publisher.entered
	require.Equal(t, StatePublishing, h.sched.State())

	busy := h.sched.Tick(context.Background())
	require.Equal(t, domain.EventBusy, busy.Kind)
	require.Equal(t, "publishing", busy.Reason)
	require.ErrorIs(t, h.sched.Refill(context.Background()), ErrBusy)

	close(h.publisher.block)
	first := <-done
	require.Equal(t, domain.EventPublished, first.Kind)
	require.Len(t, h.publisher.Published(), 1)
	require.Equal(t, 1, h.collector.Calls())
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	h := newHarness([]domain.RawPost{post("a", "aww", "Tick tock")}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- h.sched.Run(ctx, 10*time.Millisecond, true) }()

	require.Eventually(t, func() bool {
		return len(h.publisher.Published()) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsZeroInterval(t *testing.T) {
	t.Parallel()

	h := newHarness(nil, nil)
	require.Error(t, h.sched.Run(context.Background(), 0, false))
}

func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "refilling", StateRefilling.String())
	require.Equal(t, "draining", StateDraining.String())
	require.Equal(t, "publishing", StatePublishing.String())
	require.Equal(t, "unknown", State(42).String())
}
