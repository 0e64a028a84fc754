// Package queue holds the not-yet-published items of the current batch.
package queue

import "github.com/salcido/reddibot/internal/domain"

// Queue is a FIFO buffer replaced wholesale on refill. It is owned by one
// scheduler and is not safe for concurrent use.
type Queue struct {
	items []domain.Item
}

func New() *Queue {
	return &Queue{}
}

func (q *Queue) Len() int { return len(q.items) }

// Replace discards whatever is queued and installs items in order.
func (q *Queue) Replace(items []domain.Item) {
	q.items = append([]domain.Item(nil), items...)
}

// Pop removes and returns the head.
func (q *Queue) Pop() (domain.Item, bool) {
	if len(q.items) == 0 {
		return domain.Item{}, false
	}
	head := q.items[0]
	q.items[0] = domain.Item{}
	q.items = q.items[1:]
	return head, true
}

func (q *Queue) Clear() {
	q.items = nil
}

// Snapshot returns a copy of the queued items, head first.
func (q *Queue) Snapshot() []domain.Item {
	return append([]domain.Item(nil), q.items...)
}
