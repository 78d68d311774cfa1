package pipeline

import (
	"testing"

	"budget-cart/internal/core/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(term string, titles ...string) CandidatePool {
	pool := CandidatePool{Term: term, Titles: titles}
	for i, title := range titles {
		pool.Records = append(pool.Records, catalog.Product{ID: string(rune('a' + i)), Title: title})
	}
	return pool
}

func TestResolvePicks(t *testing.T) {
	pool := testPool("butter", "Salted Butter", "Unsalted Butter", "Margarine Spread")

	t.Run("valid indices resolve to products", func(t *testing.T) {
		decision, warnings := resolvePicks(pool, []int{0, 1})
		assert.Empty(t, warnings)
		require.Len(t, decision.Products, 2)
		assert.Equal(t, "Salted Butter", decision.Products[0].Title)
		assert.Equal(t, "Unsalted Butter", decision.Products[1].Title)
	})

	t.Run("empty indices mean no confident title", func(t *testing.T) {
		decision, warnings := resolvePicks(pool, nil)
		assert.Empty(t, decision.Products)
		assert.Contains(t, warnings, WarnNoConfidentTitle)
	})

	t.Run("out of bounds indices are dropped silently", func(t *testing.T) {
		decision, warnings := resolvePicks(pool, []int{0, 99, -1})
		assert.Empty(t, warnings)
		require.Len(t, decision.Products, 1)
		assert.Equal(t, "Salted Butter", decision.Products[0].Title)
	})

	t.Run("all indices out of bounds", func(t *testing.T) {
		decision, warnings := resolvePicks(pool, []int{99, -1})
		assert.Empty(t, decision.Products)
		assert.Contains(t, warnings, WarnNoValidIndices)
	})

	t.Run("duplicate indices counted once", func(t *testing.T) {
		decision, _ := resolvePicks(pool, []int{1, 1, 1})
		assert.Len(t, decision.Products, 1)
	})
}

func TestResolveTitle(t *testing.T) {
	records := []catalog.Product{
		{ID: "1", Title: "Café Bustelo Espresso"},
		{ID: "2", Title: "Plain Coffee"},
	}

	t.Run("exact match first", func(t *testing.T) {
		rec, ok := resolveTitle(records, "Plain Coffee")
		require.True(t, ok)
		assert.Equal(t, "2", rec.ID)
	})

	t.Run("normalized match handles case and diacritics", func(t *testing.T) {
		rec, ok := resolveTitle(records, "cafe bustelo espresso")
		require.True(t, ok)
		assert.Equal(t, "1", rec.ID)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := resolveTitle(records, "Green Tea")
		assert.False(t, ok)
	})
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "cafe bustelo", normalizeTitle("Café  Bustelo!"))
	assert.Equal(t, "2 milk 64 oz", normalizeTitle("2% Milk, 64-oz"))
	assert.Equal(t, "", normalizeTitle("!!!"))
}
