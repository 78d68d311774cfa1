package pricing

import (
	"testing"

	"budget-cart/internal/core/catalog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(title, sizeText string, price float64) catalog.Product {
	return catalog.Product{
		ID:       "p1",
		Title:    title,
		SizeText: sizeText,
		Price:    decimal.NewFromFloat(price),
	}
}

func TestParseOfferWeight(t *testing.T) {
	t.Run("ounces stay as ounces", func(t *testing.T) {
		offer := ParseOffer(product("Butter", "16 oz", 4.00))
		require.Equal(t, UnitWeight, offer.Kind)
		assert.True(t, offer.Qty.Equal(decimal.NewFromInt(16)))
		assert.True(t, offer.UnitPrice.Equal(decimal.NewFromFloat(0.25)))
	})

	t.Run("pounds convert to ounces", func(t *testing.T) {
		offer := ParseOffer(product("Chicken Thighs", "2 lb", 8.00))
		require.Equal(t, UnitWeight, offer.Kind)
		assert.True(t, offer.Qty.Equal(decimal.NewFromInt(32)))
		assert.True(t, offer.UnitPrice.Equal(decimal.NewFromFloat(0.25)))
	})

	t.Run("grams convert to ounces", func(t *testing.T) {
		offer := ParseOffer(product("Spice", "100 g", 3.00))
		require.Equal(t, UnitWeight, offer.Kind)
		assert.InDelta(t, 3.527, offer.Qty.InexactFloat64(), 0.01)
	})
}

func TestParseOfferVolume(t *testing.T) {
	t.Run("fluid ounces", func(t *testing.T) {
		offer := ParseOffer(product("Milk", "64 fl oz", 3.20))
		require.Equal(t, UnitVolume, offer.Kind)
		assert.True(t, offer.Qty.Equal(decimal.NewFromInt(64)))
	})

	t.Run("liters and milliliters agree", func(t *testing.T) {
		// 2 L 與 2000 ml 是同一個量，單位價必須一致
		liters := ParseOffer(product("Juice", "2 l", 4.00))
		milliliters := ParseOffer(product("Juice", "2000 ml", 4.00))

		require.Equal(t, UnitVolume, liters.Kind)
		require.Equal(t, UnitVolume, milliliters.Kind)
		assert.InDelta(t, liters.Qty.InexactFloat64(), milliliters.Qty.InexactFloat64(), 0.05)
	})

	t.Run("fl oz is volume not weight", func(t *testing.T) {
		offer := ParseOffer(product("Soda", "12 fl oz", 1.00))
		assert.Equal(t, UnitVolume, offer.Kind)
	})
}

func TestParseOfferCount(t *testing.T) {
	t.Run("count token", func(t *testing.T) {
		offer := ParseOffer(product("Eggs", "12 ct", 3.60))
		require.Equal(t, UnitCount, offer.Kind)
		assert.True(t, offer.Qty.Equal(decimal.NewFromInt(12)))
		assert.True(t, offer.UnitPrice.Equal(decimal.NewFromFloat(0.30)))
	})

	t.Run("pack of N", func(t *testing.T) {
		offer := ParseOffer(product("Rolls", "pack of 8", 2.40))
		require.Equal(t, UnitCount, offer.Kind)
		assert.True(t, offer.Qty.Equal(decimal.NewFromInt(8)))
	})
}

func TestParseOfferMultipack(t *testing.T) {
	// 多件裝優先於單一數量：6 x 12 fl oz 是 72 fl oz，不是 6 件
	offer := ParseOffer(product("Soda", "6 x 12 fl oz", 4.32))
	require.Equal(t, UnitVolume, offer.Kind)
	assert.True(t, offer.Qty.Equal(decimal.NewFromInt(72)))
	assert.True(t, offer.UnitPrice.Equal(decimal.NewFromFloat(0.06)))
}

func TestParseOfferSourcePrecedence(t *testing.T) {
	t.Run("size text wins over title", func(t *testing.T) {
		offer := ParseOffer(product("Milk 1 gallon 128 oz", "64 fl oz", 3.20))
		require.Equal(t, UnitVolume, offer.Kind)
		assert.True(t, offer.Qty.Equal(decimal.NewFromInt(64)))
	})

	t.Run("raw record packaging field used when size text empty", func(t *testing.T) {
		p := product("Cheese", "", 5.00)
		p.RawRecord = []byte(`{"customerFacingSize":"8 oz"}`)
		offer := ParseOffer(p)
		require.Equal(t, UnitWeight, offer.Kind)
		assert.True(t, offer.Qty.Equal(decimal.NewFromInt(8)))
	})

	t.Run("title is the last resort", func(t *testing.T) {
		offer := ParseOffer(product("Yogurt 32 oz Tub", "", 4.00))
		require.Equal(t, UnitWeight, offer.Kind)
		assert.True(t, offer.Qty.Equal(decimal.NewFromInt(32)))
	})
}

func TestParseOfferUnparsable(t *testing.T) {
	offer := ParseOffer(product("Fresh Cilantro", "each", 0.99))
	assert.Equal(t, UnitNone, offer.Kind)
	assert.False(t, offer.HasUnitPrice())
	assert.True(t, offer.Price.Equal(decimal.NewFromFloat(0.99)))
}
