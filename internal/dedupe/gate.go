// Package dedupe suppresses items that were already published recently.
package dedupe

import (
	"strings"

	"github.com/salcido/reddibot/internal/domain"
)

// DefaultPrefixLen is how many leading title characters identify a post.
const DefaultPrefixLen = 100

// Gate matches titles against published texts by prefix containment. Exact
// matching would miss posts because the published text carries a link and
// hashtag suffix.
type Gate struct {
	PrefixLen int
}

func NewGate(prefixLen int) Gate {
	if prefixLen <= 0 {
		prefixLen = DefaultPrefixLen
	}
	return Gate{PrefixLen: prefixLen}
}

// IsDuplicate reports whether any history text contains the item's title prefix.
func (g Gate) IsDuplicate(item domain.Item, history []string) bool {
	if len(history) == 0 {
		return false
	}
	prefix := Prefix(item.Title, g.PrefixLen)
	for _, text := range history {
		if strings.Contains(text, prefix) {
			return true
		}
	}
	return false
}

// Prefix returns the first n characters (runes) of s.
func Prefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
