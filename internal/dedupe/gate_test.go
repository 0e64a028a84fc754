package dedupe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salcido/reddibot/internal/domain"
)

func TestIsDuplicate(t *testing.T) {
	t.Parallel()

	g := NewGate(0)
	item := domain.Item{Title: "My dog learned to open the fridge"}

	require.False(t, g.IsDuplicate(item, nil))
	require.False(t, g.IsDuplicate(item, []string{}))
	require.False(t, g.IsDuplicate(item, []string{"Some other post https://redd.it/x \n#aww"}))
	require.True(t, g.IsDuplicate(item, []string{
		"unrelated",
		"My dog learned to open the fridge https://redd.it/abc \n#aww",
	}))
}

func TestIsDuplicateUsesHundredCharPrefix(t *testing.T) {
	t.Parallel()

	g := NewGate(DefaultPrefixLen)
	head := strings.Repeat("x", 100)

	// published text only carries the first 100 characters; the tail differs
	item := domain.Item{Title: head + " and then some"}
	require.True(t, g.IsDuplicate(item, []string{head + "… https://redd.it/q"}))

	// a difference inside the first 100 characters is not caught
	item = domain.Item{Title: "y" + head[1:] + " tail"}
	require.False(t, g.IsDuplicate(item, []string{head}))
}

func TestPrefixCountsRunes(t *testing.T) {
	t.Parallel()

	require.Equal(t, "héllo", Prefix("héllo wörld", 5))
	require.Equal(t, "short", Prefix("short", 100))
	require.Equal(t, "", Prefix("abc", 0))
}
