// Package rank orders a refill batch before it enters the queue.
package rank

import (
	"sort"
	"strings"

	"github.com/salcido/reddibot/internal/domain"
)

// Rank returns a copy of items ordered by group key, case-insensitive and
// descending. Items sharing a group keep their input order. Popularity is not
// a key: walking groups interleaves communities instead of draining the most
// upvoted one first.
func Rank(items []domain.Item) []domain.Item {
	out := make([]domain.Item, len(items))
	copy(out, items)

	keys := make([]string, len(out))
	for i := range out {
		keys[i] = strings.ToLower(out[i].GroupKey)
	}

	sort.Stable(byGroupDesc{items: out, keys: keys})
	return out
}

type byGroupDesc struct {
	items []domain.Item
	keys  []string
}

func (b byGroupDesc) Len() int           { return len(b.items) }
func (b byGroupDesc) Less(i, j int) bool { return b.keys[i] > b.keys[j] }
func (b byGroupDesc) Swap(i, j int) {
	b.items[i], b.items[j] = b.items[j], b.items[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}
