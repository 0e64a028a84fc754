package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItemCategoryEncodesByName(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(Item{ID: "a", Category: CategoryImage})
	require.NoError(t, err)
	require.Contains(t, string(raw), `"category":"image"`)

	var back Item
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, CategoryImage, back.Category)
}

func TestCategoryUnmarshalText(t *testing.T) {
	t.Parallel()

	for _, want := range []Category{CategoryRejected, CategoryImage, CategoryText} {
		var got Category
		require.NoError(t, got.UnmarshalText([]byte(want.String())))
		require.Equal(t, want, got)
	}

	var c Category
	require.Error(t, c.UnmarshalText([]byte("video")))
}
