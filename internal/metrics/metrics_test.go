package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/salcido/reddibot/internal/domain"
)

func TestObserveCountsOutcomes(t *testing.T) {
	t.Parallel()

	m := New()
	m.Observe(domain.Event{Kind: domain.EventPublished})
	m.Observe(domain.Event{Kind: domain.EventSkippedDuplicate})
	m.Observe(domain.Event{Kind: domain.EventSkippedDuplicate})

	require.Equal(t, 1.0, testutil.ToFloat64(m.ticks.WithLabelValues("tick_published")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ticks.WithLabelValues("tick_skipped_duplicate")))
}

func TestQueueAndRefill(t *testing.T) {
	t.Parallel()

	m := New()
	m.SetQueueLength(7)
	m.AddRefill("image", 5)
	m.AddRefill("text", 2)
	m.AddRefill("image", 1)

	require.Equal(t, 7.0, testutil.ToFloat64(m.queueLen))
	require.Equal(t, 6.0, testutil.ToFloat64(m.refill.WithLabelValues("image")))

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["reddibot_queue_length"])
	require.True(t, names["reddibot_refill_items_total"])
}
