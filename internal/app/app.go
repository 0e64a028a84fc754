// Package app wires configuration into a running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/salcido/reddibot/internal/classify"
	"github.com/salcido/reddibot/internal/collector"
	"github.com/salcido/reddibot/internal/config"
	"github.com/salcido/reddibot/internal/cycle"
	"github.com/salcido/reddibot/internal/dashboard"
	"github.com/salcido/reddibot/internal/dedupe"
	"github.com/salcido/reddibot/internal/domain"
	"github.com/salcido/reddibot/internal/ingest"
	"github.com/salcido/reddibot/internal/media"
	"github.com/salcido/reddibot/internal/metrics"
	"github.com/salcido/reddibot/internal/publish"
	"github.com/salcido/reddibot/internal/rank"
	"github.com/salcido/reddibot/internal/storage"
	"github.com/salcido/reddibot/internal/twitter"
)

// ErrAlreadyRunning means another process holds the instance lock.
var ErrAlreadyRunning = errors.New("another reddibot instance is already running")

const eventBuffer = 64

// App owns the scheduler and its surroundings for one process. Its event
// stream stays open for the App's lifetime; each Run or TickOnce journals
// what arrives while it holds the lock.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	events  chan domain.Event
	lock    *flock.Flock

	collector  domain.Collector
	classifier *classify.Classifier
	history    domain.HistorySource
	gate       dedupe.Gate
	subreddits []string
	sched      *cycle.Scheduler
}

// New builds every collaborator from cfg. Nothing touches the network yet.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	const op = "app.New"

	subs, textSubs, err := resolveSubreddits(cfg.Feed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	coll, err := collector.NewCollector(cfg.Feed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	composer, err := publish.NewComposer(cfg.Publish.ImageTemplate, cfg.Publish.TextTemplate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		publisher domain.Publisher
		history   domain.HistorySource = noHistory{}
	)
	if hasTwitterCreds(cfg.Publish.Twitter) {
		tw := newTwitterClient(cfg.Publish)
		history = tw
		publisher = publish.NewPipeline(tw,
			media.NewFetcher(&http.Client{Timeout: cfg.Publish.Timeout}, cfg.Feed.UserAgent),
			composer,
			publish.Options{MaxMediaBytes: cfg.Publish.MaxMediaBytes, ResizeWidth: cfg.Publish.ResizeWidth},
			log,
		)
	}
	if cfg.Publish.DryRun || publisher == nil {
		publisher = publish.NewDryRun(composer, log)
	}

	classifier := classify.New(classify.Options{
		ImageThreshold:     cfg.Classify.ImageThreshold,
		TextThreshold:      cfg.Classify.TextThreshold,
		MaxTitleLen:        cfg.Classify.MaxTitleLen,
		Profile:            classify.Profile(cfg.Classify.SanitizeProfile),
		AnimatedExtensions: cfg.Classify.AnimatedExtensions,
		TextGroups:         textSubs,
		ShortLinkDomain:    cfg.Classify.ShortLinkDomain,
		RequireImageURL:    cfg.Classify.RequireImageURL,
		Resolver: classify.Resolver{
			AggregatorHosts: cfg.Classify.AggregatorHosts,
			DirectHost:      cfg.Classify.DirectMediaHost,
		},
	})

	a := &App{
		cfg:        cfg,
		log:        log,
		metrics:    metrics.New(),
		events:     make(chan domain.Event, eventBuffer),
		lock:       flock.New(cfg.Lock.Path),
		collector:  coll,
		classifier: classifier,
		history:    history,
		gate:       dedupe.NewGate(dedupe.DefaultPrefixLen),
		subreddits: subs,
	}
	a.sched = cycle.New(cycle.Deps{
		Collector:  coll,
		Classifier: classifier,
		Publisher:  publisher,
		History:    history,
		Gate:       a.gate,
		Logger:     log,
		Events:     a.events,
		Metrics:    a.metrics,
	}, cycle.Options{
		Subreddits:  subs,
		Limit:       cfg.Feed.Limit,
		HistorySize: cfg.Schedule.HistorySize,
	})

	log.Info("app_initialized",
		slog.String("op", op),
		slog.String("mode", cfg.Feed.Mode),
		slog.Any("subreddits", subs),
		slog.Any("text_subreddits", textSubs),
		slog.Bool("dry_run", cfg.Publish.DryRun),
	)
	return a, nil
}

// Run blocks until ctx is cancelled, ticking on the configured interval.
func (a *App) Run(ctx context.Context) error {
	const op = "app.Run"

	release, err := a.acquire()
	if err != nil {
		return err
	}
	defer release()

	stopJournal := a.startJournal()
	defer stopJournal()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.cfg.Dashboard.Enabled {
		handler := dashboard.NewRouter(dashboard.Options{
			JournalPath: a.cfg.Storage.JournalPath,
			Status:      a.Status,
			Registry:    a.metrics.Registry,
			Logger:      a.log,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dashboard.Serve(ctx, a.cfg.Dashboard.Addr(), handler, a.log); err != nil {
				a.log.Error("dashboard_failed", slog.String("op", op), slog.Any("error", err))
			}
		}()
	}

	err = a.sched.Run(ctx, a.cfg.Schedule.Interval, a.cfg.Schedule.WarmStart)
	cancel()
	wg.Wait()
	return err
}

// TickOnce runs a single tick and returns its outcome.
func (a *App) TickOnce(ctx context.Context) (domain.Event, error) {
	release, err := a.acquire()
	if err != nil {
		return domain.Event{}, err
	}
	defer release()

	stopJournal := a.startJournal()
	defer stopJournal()

	return a.sched.Tick(ctx), nil
}

// PreviewRow is one ranked candidate as the next refill would queue it.
type PreviewRow struct {
	Item      domain.Item
	Duplicate bool
}

// Preview fetches and ranks without publishing or touching the queue.
func (a *App) Preview(ctx context.Context) ([]PreviewRow, classify.Stats, error) {
	raws, err := a.collector.FetchTopPosts(ctx, a.subreddits, a.cfg.Feed.Limit)
	if err != nil {
		return nil, classify.Stats{}, err
	}
	history, err := a.history.RecentTexts(ctx, a.cfg.Schedule.HistorySize)
	if err != nil {
		a.log.Warn("preview_history_unavailable", slog.Any("error", err))
	}

	items, stats := a.classifier.Batch(raws)
	ranked := rank.Rank(items)
	rows := make([]PreviewRow, 0, len(ranked))
	for _, it := range ranked {
		rows = append(rows, PreviewRow{Item: it, Duplicate: a.gate.IsDuplicate(it, history)})
	}
	return rows, stats, nil
}

func (a *App) Status() dashboard.Status {
	return dashboard.Status{
		State:       a.sched.State().String(),
		QueueLen:    a.sched.QueueLen(),
		HistorySize: len(a.sched.History()),
		Queue:       a.sched.Queued(),
	}
}

func (a *App) acquire() (func(), error) {
	if dir := filepath.Dir(a.cfg.Lock.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
	}
	ok, err := a.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return func() {
		if err := a.lock.Unlock(); err != nil {
			a.log.Warn("lock_release_failed", slog.Any("error", err))
		}
	}, nil
}

// startJournal persists events until the returned func is called. The
// scheduler must be done emitting by then; buffered events are flushed
// before it returns.
func (a *App) startJournal() func() {
	journal := &storage.Journal{Path: a.cfg.Storage.JournalPath, Logger: a.log}
	out := make(chan domain.Event, eventBuffer)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go journal.Start(&wg, out)
	go func() {
		defer wg.Done()
		defer close(out)
		for {
			select {
			case ev := <-a.events:
				out <- ev
			case <-stop:
				for {
					select {
					case ev := <-a.events:
						out <- ev
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		close(stop)
		wg.Wait()
	}
}

func resolveSubreddits(feed config.FeedConfig) (all, text []string, err error) {
	all = append(all, feed.Subreddits...)
	text = append(text, feed.TextSubreddits...)
	if feed.SubredditsFile != "" {
		targets, err := ingest.LoadTargets(feed.SubredditsFile)
		if err != nil {
			return nil, nil, err
		}
		fileAll, fileText := ingest.SplitTargets(targets)
		all = append(all, fileAll...)
		text = append(text, fileText...)
	}
	all = append(all, text...)
	return dedupeStrings(all), dedupeStrings(text), nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func hasTwitterCreds(t config.TwitterConfig) bool {
	return t.ConsumerKey != "" && t.ConsumerSecret != "" && t.AccessToken != "" && t.AccessTokenSecret != ""
}

func newTwitterClient(p config.PublishConfig) *twitter.Client {
	return twitter.NewClient(twitter.Credentials{
		ConsumerKey:       p.Twitter.ConsumerKey,
		ConsumerSecret:    p.Twitter.ConsumerSecret,
		AccessToken:       p.Twitter.AccessToken,
		AccessTokenSecret: p.Twitter.AccessTokenSecret,
	}, p.ScreenName, p.Timeout)
}

// noHistory backs dry runs without posting credentials.
type noHistory struct{}

func (noHistory) RecentTexts(context.Context, int) ([]string, error) { return nil, nil }
