// Package cycle drives the fetch, classify, dedupe and publish loop. A
// Scheduler owns the queue and the published history; nothing else
// mutates them.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/salcido/reddibot/internal/classify"
	"github.com/salcido/reddibot/internal/dedupe"
	"github.com/salcido/reddibot/internal/domain"
	"github.com/salcido/reddibot/internal/queue"
	"github.com/salcido/reddibot/internal/rank"
)

// ErrBusy is returned by Refill when a tick is already in flight.
var ErrBusy = errors.New("scheduler busy")

// Exhaustion reasons.
const (
	ReasonEmptyRefill = "empty_refill"
	ReasonDrained     = "queue_drained"
)

// Classifier is what the scheduler needs from classify.Classifier.
type Classifier interface {
	Batch(raws []domain.RawPost) ([]domain.Item, classify.Stats)
}

// Recorder receives tick outcomes for metrics.
type Recorder interface {
	Observe(ev domain.Event)
	SetQueueLength(n int)
	AddRefill(category string, n int)
}

type nopRecorder struct{}

func (nopRecorder) Observe(domain.Event) {}
func (nopRecorder) SetQueueLength(int) {}
func (nopRecorder) AddRefill(string, int) {}

// Deps are the collaborators of a Scheduler. Events and Metrics may be nil.
type Deps struct {
	Collector  domain.Collector
	Classifier Classifier
	Publisher  domain.Publisher
	History    domain.HistorySource
	Gate       dedupe.Gate
	Logger     *slog.Logger
	Events     chan<- domain.Event
	Metrics    Recorder
}

// Options controls the refill request.
type Options struct {
	Subreddits  []string
	Limit       int
	HistorySize int
}

// Scheduler runs at most one tick at a time.
type Scheduler struct {
	deps Deps
	opts Options

	busy  atomic.Bool
	state atomic.Int32

	mu      sync.RWMutex
	queue   *queue.Queue
	history []string

	now func() time.Time
}

func New(deps Deps, opts Options) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Gate.PrefixLen <= 0 {
		deps.Gate = dedupe.NewGate(dedupe.DefaultPrefixLen)
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 200
	}
	return &Scheduler{
		deps:  deps,
		opts:  opts,
		queue: queue.New(),
		now:   time.Now,
	}
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) QueueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Len()
}

// Queued returns the pending items, head first.
func (s *Scheduler) Queued() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Snapshot()
}

// History returns a copy of the last published texts used for dedupe.
func (s *Scheduler) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.history...)
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

// Run refills once up front when warm is set, then ticks every interval
// until ctx is cancelled. A tick that fires while the previous one is
// still running is dropped with a tick_busy event.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, warm bool) error {
	const op = "cycle.Run"

	if interval <= 0 {
		return fmt.Errorf("%s: interval must be positive, got %s", op, interval)
	}

	if warm {
		if err := s.Refill(ctx); err != nil {
			s.deps.Logger.Warn("warm_refill_failed", slog.String("op", op), slog.Any("error", err))
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	s.deps.Logger.Info("scheduler_started", slog.String("op", op), slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.deps.Logger.Info("scheduler_stopped", slog.String("op", op))
			return nil
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Tick(ctx)
			}()
		}
	}
}

// Refill fetches a fresh batch and the current history outside a tick.
func (s *Scheduler) Refill(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)
	defer s.setState(StateIdle)

	s.setState(StateRefilling)
	return s.refill(ctx, uuid.NewString())
}

// Tick runs one cycle and returns its final outcome. Duplicates skipped
// along the way are emitted as separate events.
func (s *Scheduler) Tick(ctx context.Context) domain.Event {
	tickID := uuid.NewString()
	if !s.busy.CompareAndSwap(false, true) {
		return s.emit(domain.Event{TickID: tickID, Kind: domain.EventBusy, Reason: s.State().String()})
	}
	defer s.busy.Store(false)
	defer s.setState(StateIdle)

	if s.QueueLen() == 0 {
		s.setState(StateRefilling)
		if err := s.refill(ctx, tickID); err != nil {
			return s.emit(domain.Event{TickID: tickID, Kind: domain.EventFetchFailed, Error: err.Error()})
		}
		if s.QueueLen() == 0 {
			return s.emit(domain.Event{TickID: tickID, Kind: domain.EventExhausted, Reason: ReasonEmptyRefill})
		}
	}

	return s.drain(ctx, tickID)
}

func (s *Scheduler) refill(ctx context.Context, tickID string) error {
	const op = "cycle.refill"
	log := s.deps.Logger.With(slog.String("op", op), slog.String("tick_id", tickID))

	raws, err := s.deps.Collector.FetchTopPosts(ctx, s.opts.Subreddits, s.opts.Limit)
	if err != nil {
		s.clearQueue()
		return asFetchError("feed", err)
	}

	history, err := s.deps.History.RecentTexts(ctx, s.opts.HistorySize)
	if err != nil {
		s.clearQueue()
		return asFetchError("history", err)
	}

	items, stats := s.deps.Classifier.Batch(raws)
	ranked := rank.Rank(items)

	s.mu.Lock()
	s.queue.Replace(ranked)
	s.history = history
	s.mu.Unlock()

	perCategory := map[string]int{}
	for _, it := range ranked {
		perCategory[it.Category.String()]++
	}
	for cat, n := range perCategory {
		s.deps.Metrics.AddRefill(cat, n)
	}
	s.deps.Metrics.SetQueueLength(len(ranked))

	log.Info("refill_done",
		slog.Int("fetched", len(raws)),
		slog.Int("accepted", stats.Accepted),
		slog.Int("malformed", stats.Malformed),
		slog.Any("rejected", stats.Rejected),
		slog.Int("history", len(history)),
	)
	return nil
}

func (s *Scheduler) drain(ctx context.Context, tickID string) domain.Event {
	for {
		s.setState(StateDraining)

		s.mu.Lock()
		item, ok := s.queue.Pop()
		history := s.history
		s.mu.Unlock()

		if !ok {
			return s.emit(domain.Event{TickID: tickID, Kind: domain.EventExhausted, Reason: ReasonDrained})
		}

		if s.deps.Gate.IsDuplicate(item, history) {
			s.emit(itemEvent(tickID, domain.EventSkippedDuplicate, item))
			continue
		}

		s.setState(StatePublishing)
		if err := s.deps.Publisher.Publish(ctx, item); err != nil {
			ev := itemEvent(tickID, domain.EventPublishFailed, item)
			ev.Error = err.Error()
			var se *domain.PublishStepError
			if errors.As(err, &se) {
				ev.Reason = se.Step
			}
			return s.emit(ev)
		}

		s.clearQueue()
		s.refreshHistory(ctx, tickID)
		return s.emit(itemEvent(tickID, domain.EventPublished, item))
	}
}

// refreshHistory keeps the previous history when the source fails; the
// next refill fetches it again anyway.
func (s *Scheduler) refreshHistory(ctx context.Context, tickID string) {
	history, err := s.deps.History.RecentTexts(ctx, s.opts.HistorySize)
	if err != nil {
		s.deps.Logger.Warn("history_refresh_failed",
			slog.String("op", "cycle.refreshHistory"),
			slog.String("tick_id", tickID),
			slog.Any("error", err),
		)
		return
	}
	s.mu.Lock()
	s.history = history
	s.mu.Unlock()
	s.deps.Logger.Debug("history_refreshed", slog.String("tick_id", tickID), slog.Int("size", len(history)))
}

func (s *Scheduler) clearQueue() {
	s.mu.Lock()
	s.queue.Clear()
	s.mu.Unlock()
	s.deps.Metrics.SetQueueLength(0)
}

func itemEvent(tickID string, kind domain.EventKind, item domain.Item) domain.Event {
	return domain.Event{
		TickID:   tickID,
		Kind:     kind,
		Title:    item.Title,
		Group:    item.GroupKey,
		Category: item.Category.String(),
		Reason:   item.Reason,
	}
}

func (s *Scheduler) emit(ev domain.Event) domain.Event {
	ev.ID = uuid.NewString()
	ev.At = s.now().UTC()
	ev.QueueLen = s.QueueLen()

	attrs := []any{
		slog.String("op", "cycle.Tick"),
		slog.String("tick_id", ev.TickID),
		slog.Int("queue_len", ev.QueueLen),
	}
	if ev.Title != "" {
		attrs = append(attrs, slog.String("title", ev.Title), slog.String("group", ev.Group))
	}
	if ev.Reason != "" {
		attrs = append(attrs, slog.String("reason", ev.Reason))
	}
	if ev.Error != "" {
		attrs = append(attrs, slog.String("error", ev.Error))
	}

	switch ev.Kind {
	case domain.EventFetchFailed, domain.EventPublishFailed:
		s.deps.Logger.Error(string(ev.Kind), attrs...)
	case domain.EventBusy:
		s.deps.Logger.Warn(string(ev.Kind), attrs...)
	default:
		s.deps.Logger.Info(string(ev.Kind), attrs...)
	}

	s.deps.Metrics.Observe(ev)
	s.deps.Metrics.SetQueueLength(ev.QueueLen)

	if s.deps.Events != nil {
		select {
		case s.deps.Events <- ev:
		default:
			s.deps.Logger.Warn("event_dropped", slog.String("kind", string(ev.Kind)))
		}
	}
	return ev
}

func asFetchError(source string, err error) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &domain.FetchError{Source: source, Err: err}
}
