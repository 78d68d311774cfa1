package pricing

import (
	"testing"

	"budget-cart/internal/core/catalog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightOffer(retailer catalog.Retailer, price, unitPrice float64) *UnitOffer {
	return &UnitOffer{
		Product:   catalog.Product{Retailer: retailer},
		Price:     decimal.NewFromFloat(price),
		Kind:      UnitWeight,
		Qty:       decimal.NewFromInt(1),
		UnitPrice: decimal.NewFromFloat(unitPrice),
	}
}

func noUnitOffer(retailer catalog.Retailer, price float64) *UnitOffer {
	return &UnitOffer{
		Product: catalog.Product{Retailer: retailer},
		Price:   decimal.NewFromFloat(price),
		Kind:    UnitNone,
	}
}

func TestPickWinnerSingleSide(t *testing.T) {
	t.Run("only kroger has an offer", func(t *testing.T) {
		d := PickWinner("butter", weightOffer(catalog.RetailerKroger, 4.00, 0.25), nil)
		assert.Equal(t, catalog.RetailerKroger, d.Winner)
		assert.Equal(t, ReasonOnlyKroger, d.Reason)
	})

	t.Run("only walmart has an offer", func(t *testing.T) {
		d := PickWinner("butter", nil, weightOffer(catalog.RetailerWalmart, 4.00, 0.25))
		assert.Equal(t, catalog.RetailerWalmart, d.Winner)
		assert.Equal(t, ReasonOnlyWalmart, d.Reason)
	})

	t.Run("neither side has an offer", func(t *testing.T) {
		d := PickWinner("butter", nil, nil)
		assert.Empty(t, d.Winner)
		assert.Equal(t, ReasonNone, d.Reason)
		assert.Nil(t, d.Offer)
	})
}

func TestPickWinnerUnitPrice(t *testing.T) {
	t.Run("lower unit price wins even at higher absolute price", func(t *testing.T) {
		kroger := weightOffer(catalog.RetailerKroger, 5.00, 0.10)
		walmart := weightOffer(catalog.RetailerWalmart, 3.00, 0.12)

		d := PickWinner("butter", kroger, walmart)
		assert.Equal(t, catalog.RetailerKroger, d.Winner)
		assert.Equal(t, ReasonUnitPrice, d.Reason)
	})

	t.Run("unit price tie goes to kroger", func(t *testing.T) {
		d := PickWinner("butter",
			weightOffer(catalog.RetailerKroger, 4.00, 0.25),
			weightOffer(catalog.RetailerWalmart, 4.00, 0.25),
		)
		assert.Equal(t, catalog.RetailerKroger, d.Winner)
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		kroger := weightOffer(catalog.RetailerKroger, 5.00, 0.10)
		walmart := weightOffer(catalog.RetailerWalmart, 3.00, 0.12)

		first := PickWinner("butter", kroger, walmart)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, PickWinner("butter", kroger, walmart))
		}
	})
}

func TestPickWinnerPriceFallback(t *testing.T) {
	t.Run("mismatched unit kinds compare absolute price", func(t *testing.T) {
		kroger := weightOffer(catalog.RetailerKroger, 5.00, 0.10)
		volume := &UnitOffer{
			Product:   catalog.Product{Retailer: catalog.RetailerWalmart},
			Price:     decimal.NewFromFloat(3.00),
			Kind:      UnitVolume,
			Qty:       decimal.NewFromInt(64),
			UnitPrice: decimal.NewFromFloat(0.05),
		}

		d := PickWinner("milk", kroger, volume)
		assert.Equal(t, ReasonPriceFallback, d.Reason)
		assert.Equal(t, catalog.RetailerWalmart, d.Winner)
	})

	t.Run("no unit price on either side", func(t *testing.T) {
		d := PickWinner("cilantro",
			noUnitOffer(catalog.RetailerKroger, 0.99),
			noUnitOffer(catalog.RetailerWalmart, 1.09),
		)
		assert.Equal(t, ReasonPriceFallback, d.Reason)
		assert.Equal(t, catalog.RetailerKroger, d.Winner)
	})

	t.Run("absolute price tie goes to kroger", func(t *testing.T) {
		d := PickWinner("cilantro",
			noUnitOffer(catalog.RetailerKroger, 0.99),
			noUnitOffer(catalog.RetailerWalmart, 0.99),
		)
		assert.Equal(t, catalog.RetailerKroger, d.Winner)
	})
}

func TestBestOffer(t *testing.T) {
	t.Run("empty slice yields nil", func(t *testing.T) {
		assert.Nil(t, BestOffer(nil))
	})

	t.Run("same kind compares unit price", func(t *testing.T) {
		offers := []UnitOffer{
			*weightOffer(catalog.RetailerKroger, 4.00, 0.25),
			*weightOffer(catalog.RetailerKroger, 5.00, 0.20),
		}
		best := BestOffer(offers)
		require.NotNil(t, best)
		assert.True(t, best.UnitPrice.Equal(decimal.NewFromFloat(0.20)))
	})

	t.Run("mixed kinds compare absolute price", func(t *testing.T) {
		offers := []UnitOffer{
			*weightOffer(catalog.RetailerKroger, 4.00, 0.25),
			*noUnitOffer(catalog.RetailerKroger, 3.00),
		}
		best := BestOffer(offers)
		require.NotNil(t, best)
		assert.True(t, best.Price.Equal(decimal.NewFromFloat(3.00)))
	})

	t.Run("ties keep the first seen", func(t *testing.T) {
		first := *weightOffer(catalog.RetailerKroger, 4.00, 0.25)
		first.Product.ID = "first"
		second := *weightOffer(catalog.RetailerKroger, 4.00, 0.25)
		second.Product.ID = "second"

		best := BestOffer([]UnitOffer{first, second})
		require.NotNil(t, best)
		assert.Equal(t, "first", best.Product.ID)
	})
}
