// Package metrics exposes tick outcomes as Prometheus series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/salcido/reddibot/internal/domain"
)

const namespace = "reddibot"

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	ticks    *prometheus.CounterVec
	queueLen prometheus.Gauge
	refill   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Tick outcomes by kind.",
		}, []string{"outcome"}),
		queueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Items waiting in the publish queue.",
		}),
		refill: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refill_items_total",
			Help:      "Items admitted to the queue by category.",
		}, []string{"category"}),
	}
	m.Registry.MustRegister(
		m.ticks,
		m.queueLen,
		m.refill,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Observe(ev domain.Event) {
	m.ticks.WithLabelValues(string(ev.Kind)).Inc()
}

func (m *Metrics) SetQueueLength(n int) {
	m.queueLen.Set(float64(n))
}

func (m *Metrics) AddRefill(category string, n int) {
	m.refill.WithLabelValues(category).Add(float64(n))
}
