package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func Test_WeightTriple(t *testing.T) {
	t.Run("valid triple", func(t *testing.T) {
		w, err := NewWeightTriple(0.3, 0.3, 0.4)
		require.NoError(t, err)
		require.NoError(t, w.Validate())
	})
	t.Run("sum within tolerance accepted", func(t *testing.T) {
		_, err := NewWeightTriple(0.3, 0.3, 0.4+1e-12)
		require.NoError(t, err)
	})
	t.Run("sum off by more than tolerance rejected", func(t *testing.T) {
		_, err := NewWeightTriple(0.3, 0.3, 0.5)
		require.Error(t, err)
	})
	t.Run("negative weight rejected even when sum is 1", func(t *testing.T) {
		_, err := NewWeightTriple(-0.2, 0.6, 0.6)
		require.Error(t, err)
	})
}

func Test_PriceTable(t *testing.T) {
	d1 := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	d3 := d1.AddDate(0, 0, 2)

	table := PriceTable{
		"AAA": {
			{Date: d3, Close: 120},
			{Date: d1, Close: 100},
			{Date: d2, Close: 110},
		},
	}
	table.Normalize()

	t.Run("through is inclusive", func(t *testing.T) {
		bars := table.Through("AAA", d2)
		require.Len(t, bars, 2)
		require.Equal(t, 110.0, bars[1].Close)
	})
	t.Run("close on exact day only", func(t *testing.T) {
		close, ok := table.CloseOn("AAA", d2)
		require.True(t, ok)
		require.Equal(t, 110.0, close)

		_, ok = table.CloseOn("AAA", d1.AddDate(0, 0, 10))
		require.False(t, ok)
	})
	t.Run("unknown symbol", func(t *testing.T) {
		require.Empty(t, table.Through("ZZZ", d3))
	})
}

func Test_Portfolio(t *testing.T) {
	portfolio := NewPortfolio(decimal.NewFromInt(1000))
	portfolio.Positions["BBB"] = &Position{Symbol: "BBB", Quantity: 10, AvgCost: decimal.NewFromInt(50)}
	portfolio.Positions["AAA"] = &Position{Symbol: "AAA", Quantity: 5, AvgCost: decimal.NewFromInt(20)}

	t.Run("held symbols sorted", func(t *testing.T) {
		require.Equal(t, []string{"AAA", "BBB"}, portfolio.HeldSymbols())
	})

	t.Run("market value falls back to avg cost", func(t *testing.T) {
		value := portfolio.MarketValue(map[string]float64{"AAA": 30})
		// 1000 cash + 5*30 + 10*50 (no print for BBB)
		require.InDelta(t, 1650, value, 1e-9)
	})

	t.Run("deep copy does not alias positions", func(t *testing.T) {
		copied := portfolio.DeepCopy()
		copied.Positions["AAA"].Quantity = 99
		require.Equal(t, int64(5), portfolio.Positions["AAA"].Quantity)
	})
}

func Test_RebalanceDecision_Empty(t *testing.T) {
	require.True(t, RebalanceDecision{Holds: []string{"AAA"}}.Empty())
	require.False(t, RebalanceDecision{Sells: []string{"AAA"}}.Empty())
	require.False(t, RebalanceDecision{Buys: []BuyTarget{{Symbol: "AAA"}}}.Empty())
}

func Test_Restriction_Excluded(t *testing.T) {
	require.True(t, Restriction{Symbol: "AAA", LongTerm: true}.Excluded())
	require.True(t, Restriction{Symbol: "AAA", Stage: 2}.Excluded())
	require.False(t, Restriction{Symbol: "AAA", Stage: 1}.Excluded())
}
