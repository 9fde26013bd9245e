package rebalance

import (
	"errors"
	"testing"

	"momentum/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func Test_PlanAllocation(t *testing.T) {
	t.Run("splits cash equally across new names", func(t *testing.T) {
		plan, err := PlanAllocation(PlanInput{
			New: []Entry{
				{Symbol: "AAA", Price: 100},
				{Symbol: "BBB", Price: 50},
			},
			Cash: decimal.NewFromInt(1000),
		})
		require.NoError(t, err)

		require.Len(t, plan.Trades, 2)
		require.Equal(t, domain.TradeSide_Buy, plan.Trades[0].Side)
		require.Equal(t, "AAA", plan.Trades[0].Symbol)
		require.Equal(t, int64(5), plan.Trades[0].Quantity)
		require.Equal(t, "BBB", plan.Trades[1].Symbol)
		require.Equal(t, int64(10), plan.Trades[1].Quantity)
		require.InDelta(t, 0, plan.Leftover.InexactFloat64(), 1e-9)
	})

	t.Run("sells come before buys", func(t *testing.T) {
		plan, err := PlanAllocation(PlanInput{
			Removed: []Entry{{Symbol: "OLD", Price: 100, Quantity: 10}},
			New:     []Entry{{Symbol: "NEW", Price: 100}},
			Cash:    decimal.Zero,
		})
		require.NoError(t, err)

		require.Equal(t, domain.TradeSide_Sell, plan.Trades[0].Side)
		require.Equal(t, "OLD", plan.Trades[0].Symbol)
		require.Equal(t, domain.TradeSide_Buy, plan.Trades[1].Side)
		require.Equal(t, "NEW", plan.Trades[1].Symbol)
		require.Equal(t, int64(10), plan.Trades[1].Quantity)
	})

	t.Run("held positions only topped up, never trimmed", func(t *testing.T) {
		plan, err := PlanAllocation(PlanInput{
			Held: []Entry{{Symbol: "AAA", Price: 10, Quantity: 10}},
			New:  []Entry{{Symbol: "BBB", Price: 10}},
			Cash: decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		// cap per name is (100 + 100) / 2 = 100; AAA already sits at cap
		require.Len(t, plan.Trades, 1)
		require.Equal(t, "BBB", plan.Trades[0].Symbol)
		require.Equal(t, int64(10), plan.Trades[0].Quantity)
	})

	t.Run("leftover drips one share at a time to the smallest position", func(t *testing.T) {
		plan, err := PlanAllocation(PlanInput{
			New: []Entry{
				{Symbol: "AAA", Price: 30},
				{Symbol: "BBB", Price: 30},
			},
			Cash: decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		// 50 per name buys 1 share each, the 40 leftover funds one more
		// share for AAA (symbol tie-break at equal value)
		quantities := map[string]int64{}
		for _, trade := range plan.Trades {
			quantities[trade.Symbol] = trade.Quantity
		}
		require.Equal(t, int64(2), quantities["AAA"])
		require.Equal(t, int64(1), quantities["BBB"])
		require.InDelta(t, 10, plan.Leftover.InexactFloat64(), 1e-9)
	})

	t.Run("unfundable name fails the whole plan", func(t *testing.T) {
		_, err := PlanAllocation(PlanInput{
			New: []Entry{
				{Symbol: "AAA", Price: 10},
				{Symbol: "BBB", Price: 500},
			},
			Cash: decimal.NewFromInt(100),
		})
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrInsufficientCapital))
	})

	t.Run("transaction costs reduce usable capital", func(t *testing.T) {
		plan, err := PlanAllocation(PlanInput{
			New:                 []Entry{{Symbol: "AAA", Price: 99}},
			Cash:                decimal.NewFromInt(1000),
			TransactionCostRate: 0.01,
		})
		require.NoError(t, err)

		// 1000 - 10 cost leaves 990, exactly 10 shares
		require.Equal(t, int64(10), plan.Trades[0].Quantity)
		require.InDelta(t, 10, plan.TransactionCost.InexactFloat64(), 1e-9)
	})

	t.Run("liquidation sweeps freed cash into the cash equivalent", func(t *testing.T) {
		plan, err := PlanAllocation(PlanInput{
			Removed:   []Entry{{Symbol: "OLD", Price: 10, Quantity: 10}},
			Cash:      decimal.Zero,
			CashSweep: &Entry{Symbol: "LIQUID", Price: 99},
		})
		require.NoError(t, err)

		require.Len(t, plan.Trades, 2)
		sweep := plan.Trades[1]
		require.Equal(t, "LIQUID", sweep.Symbol)
		require.Equal(t, domain.TradeSide_Buy, sweep.Side)
		require.Equal(t, int64(1), sweep.Quantity)
		require.InDelta(t, 1, plan.Leftover.InexactFloat64(), 1e-9)
	})

	t.Run("duplicate symbol rejected", func(t *testing.T) {
		_, err := PlanAllocation(PlanInput{
			Held: []Entry{{Symbol: "AAA", Price: 10, Quantity: 5}},
			New:  []Entry{{Symbol: "AAA", Price: 10}},
			Cash: decimal.NewFromInt(100),
		})
		require.Error(t, err)
	})

	t.Run("nothing to plan rejected", func(t *testing.T) {
		_, err := PlanAllocation(PlanInput{Cash: decimal.NewFromInt(100)})
		require.Error(t, err)
	})
}
