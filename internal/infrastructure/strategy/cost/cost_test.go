package cost

import (
	"testing"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func inward(t *testing.T, s strategy.CostCalculationStrategy, st strategy.CostState, qty, rate string) strategy.CostState {
	t.Helper()
	out, err := s.Inward(st, strategy.InwardRequest{EntryID: uuid.New(), Qty: d(qty), Rate: d(rate)})
	require.NoError(t, err)
	return out.State
}

func TestStrategies_Identity(t *testing.T) {
	tests := []struct {
		s      strategy.CostCalculationStrategy
		name   string
		method strategy.CostMethod
	}{
		{NewFIFOCostStrategy(4), "fifo", strategy.CostMethodFIFO},
		{NewLIFOCostStrategy(4), "lifo", strategy.CostMethodLIFO},
		{NewMovingAverageCostStrategy(4), "moving_average", strategy.CostMethodMovingAverage},
		{NewStandardCostStrategy(4), "standard", strategy.CostMethodStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.s.Name())
			assert.Equal(t, strategy.StrategyTypeCost, tt.s.Type())
			assert.Equal(t, tt.method, tt.s.Method())
			assert.NotEmpty(t, tt.s.Description())
		})
	}
}

func TestFIFOCostStrategy(t *testing.T) {
	s := NewFIFOCostStrategy(4)
	st := strategy.NewCostState(strategy.CostMethodFIFO)
	st = inward(t, s, st, "10", "5")
	st = inward(t, s, st, "5", "8")

	t.Run("outward consumes the oldest layer", func(t *testing.T) {
		out, err := s.Outward(st, strategy.OutwardRequest{Qty: d("4")})
		require.NoError(t, err)
		assertDecimal(t, "5", out.Rate)
		assertDecimal(t, "11", out.State.Qty)
		assertDecimal(t, "70", out.State.Value)
		assertDecimal(t, "-20", out.ValueDelta)
		require.Len(t, out.State.Layers, 2)
		assertDecimal(t, "6", out.State.Layers[0].Qty)
	})

	t.Run("outward across layers blends the rate", func(t *testing.T) {
		out, err := s.Outward(st, strategy.OutwardRequest{Qty: d("12")})
		require.NoError(t, err)
		// 10@5 + 2@8 = 66 / 12
		assertDecimal(t, "5.5", out.Rate)
		assertDecimal(t, "3", out.State.Qty)
		assertDecimal(t, "24", out.State.Value)
	})

	t.Run("shortfall is insufficient stock", func(t *testing.T) {
		_, err := s.Outward(st, strategy.OutwardRequest{Qty: d("16")})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})

	t.Run("negative stock still rejected under reject policy", func(t *testing.T) {
		_, err := s.Outward(st, strategy.OutwardRequest{
			Qty:            d("16"),
			AllowNegative:  true,
			NegativePolicy: strategy.NegativeStockReject,
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})

	t.Run("caller state is not mutated", func(t *testing.T) {
		_, err := s.Outward(st, strategy.OutwardRequest{Qty: d("10")})
		require.NoError(t, err)
		assertDecimal(t, "15", st.Qty)
		require.Len(t, st.Layers, 2)
		assertDecimal(t, "10", st.Layers[0].Qty)
	})
}

func TestFIFOCostStrategy_LastRateNegativeLayer(t *testing.T) {
	s := NewFIFOCostStrategy(4)
	st := inward(t, s, strategy.NewCostState(strategy.CostMethodFIFO), "2", "5")

	out, err := s.Outward(st, strategy.OutwardRequest{
		Qty:            d("5"),
		AllowNegative:  true,
		NegativePolicy: strategy.NegativeStockLastRate,
	})
	require.NoError(t, err)
	assertDecimal(t, "5", out.Rate)
	assertDecimal(t, "-3", out.State.Qty)
	assertDecimal(t, "-15", out.State.Value)

	// the next receipt settles the negative layer before opening a new one
	st = inward(t, s, out.State, "4", "6")
	assertDecimal(t, "1", st.Qty)
	assertDecimal(t, "6", st.Value)
	require.Len(t, st.Layers, 1)
	assertDecimal(t, "6", st.Layers[0].UnitCost)
}

func TestLIFOCostStrategy(t *testing.T) {
	s := NewLIFOCostStrategy(4)
	st := strategy.NewCostState(strategy.CostMethodLIFO)
	st = inward(t, s, st, "10", "5")
	st = inward(t, s, st, "5", "8")

	out, err := s.Outward(st, strategy.OutwardRequest{Qty: d("6")})
	require.NoError(t, err)
	// 5@8 + 1@5 = 45 / 6
	assertDecimal(t, "7.5", out.Rate)
	assertDecimal(t, "9", out.State.Qty)
	assertDecimal(t, "45", out.State.Value)
	assertDecimal(t, "5", out.State.Rate)
}

func TestMovingAverageCostStrategy(t *testing.T) {
	s := NewMovingAverageCostStrategy(4)
	st := strategy.NewCostState(strategy.CostMethodMovingAverage)

	st = inward(t, s, st, "10", "5")
	assertDecimal(t, "10", st.Qty)
	assertDecimal(t, "5", st.Rate)
	assertDecimal(t, "50", st.Value)

	st = inward(t, s, st, "10", "7")
	assertDecimal(t, "20", st.Qty)
	assertDecimal(t, "6", st.Rate)
	assertDecimal(t, "120", st.Value)

	out, err := s.Outward(st, strategy.OutwardRequest{Qty: d("5")})
	require.NoError(t, err)
	assertDecimal(t, "6", out.Rate)
	assertDecimal(t, "15", out.State.Qty)
	assertDecimal(t, "6", out.State.Rate)
	assertDecimal(t, "90", out.State.Value)
	assertDecimal(t, "-30", out.ValueDelta)

	t.Run("insufficient without negative stock", func(t *testing.T) {
		_, err := s.Outward(out.State, strategy.OutwardRequest{Qty: d("16")})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})

	t.Run("negative stock keeps the rate and receipt resets it", func(t *testing.T) {
		neg, err := s.Outward(out.State, strategy.OutwardRequest{Qty: d("20"), AllowNegative: true})
		require.NoError(t, err)
		assertDecimal(t, "-5", neg.State.Qty)
		assertDecimal(t, "-30", neg.State.Value)

		back := inward(t, s, neg.State, "10", "8")
		assertDecimal(t, "5", back.Qty)
		assertDecimal(t, "8", back.Rate)
		assertDecimal(t, "40", back.Value)
	})

	t.Run("issuing everything clears rounding residue", func(t *testing.T) {
		st := inward(t, s, strategy.NewCostState(strategy.CostMethodMovingAverage), "3", "1")
		st = inward(t, s, st, "3", "2")
		// 9 / 6 = 1.5
		all, err := s.Outward(st, strategy.OutwardRequest{Qty: d("6")})
		require.NoError(t, err)
		assert.True(t, all.State.Value.IsZero())
	})
}

func TestStandardCostStrategy(t *testing.T) {
	s := NewStandardCostStrategy(4)
	st := strategy.NewCostState(strategy.CostMethodStandard)

	in, err := s.Inward(st, strategy.InwardRequest{Qty: d("5"), Rate: d("12"), StandardRate: d("10")})
	require.NoError(t, err)
	assertDecimal(t, "10", in.Rate)
	assertDecimal(t, "50", in.State.Value)
	assertDecimal(t, "10", in.Variance)

	out, err := s.Outward(in.State, strategy.OutwardRequest{Qty: d("2"), StandardRate: d("10")})
	require.NoError(t, err)
	assertDecimal(t, "10", out.Rate)
	assertDecimal(t, "3", out.State.Qty)
	assertDecimal(t, "30", out.State.Value)
}

func TestRebase(t *testing.T) {
	fifo := NewFIFOCostStrategy(4)
	avg := NewMovingAverageCostStrategy(4)

	t.Run("layers collapse into an average", func(t *testing.T) {
		st := inward(t, fifo, strategy.NewCostState(strategy.CostMethodFIFO), "10", "5")
		st = inward(t, fifo, st, "10", "7")

		rebased := avg.Rebase(st)
		assert.Equal(t, strategy.CostMethodMovingAverage, rebased.Method)
		assert.Empty(t, rebased.Layers)
		assertDecimal(t, "20", rebased.Qty)
		assertDecimal(t, "120", rebased.Value)
		assertDecimal(t, "6", rebased.Rate)
	})

	t.Run("an average becomes one layer", func(t *testing.T) {
		st := inward(t, avg, strategy.NewCostState(strategy.CostMethodMovingAverage), "10", "6")

		rebased := fifo.Rebase(st)
		assert.Equal(t, strategy.CostMethodFIFO, rebased.Method)
		require.Len(t, rebased.Layers, 1)
		assertDecimal(t, "10", rebased.Layers[0].Qty)
		assertDecimal(t, "6", rebased.Layers[0].UnitCost)
		assertDecimal(t, "60", rebased.Value)
	})
}
