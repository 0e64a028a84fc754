// Package dashboard serves the operator view: outcome charts built from
// the event journal, Prometheus metrics and a JSON status snapshot.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/salcido/reddibot/internal/domain"
	"github.com/salcido/reddibot/internal/storage"
)

// Status is the live scheduler snapshot returned by /status.
type Status struct {
	State       string        `json:"state"`
	QueueLen    int           `json:"queue_len"`
	HistorySize int           `json:"history_size"`
	Queue       []domain.Item `json:"queue,omitempty"`
}

type Options struct {
	JournalPath string
	Status      func() Status
	Registry    *prometheus.Registry
	Logger      *slog.Logger
}

func NewRouter(o Options) http.Handler {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Get("/", chartsHandler(o))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		var st Status
		if o.Status != nil {
			st = o.Status()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})
	if o.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(o.Registry, promhttp.HandlerOpts{}))
	}
	return r
}

func chartsHandler(o Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := storage.ReadEvents(o.JournalPath)
		if err != nil {
			o.Logger.Warn("journal_read_failed", slog.String("op", "dashboard.charts"), slog.Any("error", err))
		}

		outcomes := make(map[string]int)
		perGroup := make(map[string]int)
		for _, ev := range events {
			outcomes[string(ev.Kind)]++
			if ev.Kind == domain.EventPublished {
				perGroup[ev.Group]++
			}
		}

		// 1. Tick outcomes
		pie := charts.NewPie()
		pie.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{Title: "Tick Outcomes"}),
			charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		)
		var pieItems []opts.PieData
		for _, k := range slices.Sorted(maps.Keys(outcomes)) {
			pieItems = append(pieItems, opts.PieData{Name: k, Value: outcomes[k]})
		}
		pie.AddSeries("Ticks", pieItems)

		// 2. Published per community
		bar := charts.NewBar()
		bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Published per Subreddit"}))
		groups := slices.Sorted(maps.Keys(perGroup))
		barY := make([]opts.BarData, 0, len(groups))
		for _, g := range groups {
			barY = append(barY, opts.BarData{Value: perGroup[g]})
		}
		bar.SetXAxis(groups).AddSeries("Posts", barY)

		page := components.NewPage()
		page.PageTitle = "reddibot"
		page.AddCharts(pie, bar)
		if err := page.Render(w); err != nil {
			o.Logger.Warn("dashboard_render_failed", slog.Any("error", err))
		}
	}
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Info("http_listen_start", slog.String("addr", ln.Addr().String()))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErrCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.Any("error", err))
		return err
	}
	log.Info("http_stopped")
	return nil
}
