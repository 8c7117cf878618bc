package service

import (
	"testing"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	stock string
	units map[string]valueobject.Unit
}

func (c stubCatalog) StockUnit() string { return c.stock }

func (c stubCatalog) UnitFor(code string) (valueobject.Unit, bool) {
	if code == c.stock {
		return valueobject.MustNewUnit(code, decimal.NewFromInt(1)), true
	}
	u, ok := c.units[code]
	return u, ok
}

func TestUOMNormalizer_Normalize(t *testing.T) {
	catalog := stubCatalog{
		stock: "PCS",
		units: map[string]valueobject.Unit{
			"BOX": valueobject.MustNewUnit("BOX", decimal.NewFromInt(24)),
		},
	}
	n := NewUOMNormalizer(4)

	t.Run("stock unit passes through", func(t *testing.T) {
		out, err := n.Normalize(catalog, "", decimal.NewFromInt(5), nil)
		require.NoError(t, err)
		assert.True(t, out.Qty.Equal(decimal.NewFromInt(5)))
		assert.False(t, out.HasRate)
	})

	t.Run("outward boxes keep their sign", func(t *testing.T) {
		rate := decimal.NewFromInt(48)
		out, err := n.Normalize(catalog, "BOX", decimal.NewFromInt(-2), &rate)
		require.NoError(t, err)
		assert.True(t, out.Qty.Equal(decimal.NewFromInt(-48)))
		assert.True(t, out.Rate.Equal(decimal.NewFromInt(2)))
		assert.Equal(t, "PCS", out.StockUnit)
	})

	t.Run("unknown unit is a validation error", func(t *testing.T) {
		_, err := n.Normalize(catalog, "PALLET", decimal.NewFromInt(1), nil)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("zero quantity is a no-op", func(t *testing.T) {
		_, err := n.Normalize(catalog, "BOX", decimal.Zero, nil)
		assert.ErrorIs(t, err, shared.ErrNoOpMovement)
	})

	t.Run("negative rate rejected", func(t *testing.T) {
		rate := decimal.NewFromInt(-1)
		_, err := n.Normalize(catalog, "", decimal.NewFromInt(1), &rate)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}
