package rebalance

import (
	"fmt"
	"testing"
	"time"

	"momentum/internal/domain"
	"momentum/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func rankedFixture(n int) []domain.RankedSymbol {
	ranked := make([]domain.RankedSymbol, n)
	for i := range ranked {
		ranked[i] = domain.RankedSymbol{
			Symbol:    fmt.Sprintf("S%02d", i+1),
			Composite: 1 - float64(i)*0.01,
			Rank:      i + 1,
		}
	}
	return ranked
}

func portfolioWith(symbols ...string) domain.Portfolio {
	portfolio := domain.NewPortfolio(decimal.NewFromInt(1000))
	for _, symbol := range symbols {
		portfolio.Positions[symbol] = &domain.Position{
			Symbol:   symbol,
			Quantity: 10,
			AvgCost:  decimal.NewFromInt(100),
		}
	}
	return *portfolio
}

var testDate = time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)

func Test_Reconcile(t *testing.T) {
	cfg := Config{TopN: 5, Band: 2}

	t.Run("band keeps rank 6, sells rank 8", func(t *testing.T) {
		decision, err := Reconcile(ReconcileInput{
			Portfolio: portfolioWith("S01", "S02", "S03", "S06", "S08"),
			Ranked:    rankedFixture(20),
			Date:      testDate,
			Config:    cfg,
		})
		require.NoError(t, err)

		require.Equal(t, []string{"S08"}, decision.Sells)
		require.Equal(t, []string{"S01", "S02", "S03", "S06"}, decision.Holds)
		require.Len(t, decision.Buys, 1)
		require.Equal(t, "S04", decision.Buys[0].Symbol)
		require.InDelta(t, 0.2, decision.Buys[0].TargetWeight, 1e-9)
		require.Equal(t, util.IntPointer(4), decision.Buys[0].Rank)
	})

	t.Run("applying the decision yields an empty follow-up", func(t *testing.T) {
		decision, err := Reconcile(ReconcileInput{
			Portfolio: portfolioWith("S01", "S02", "S03", "S04", "S06"),
			Ranked:    rankedFixture(20),
			Date:      testDate,
			Config:    cfg,
		})
		require.NoError(t, err)
		require.True(t, decision.Empty())
		require.Len(t, decision.Holds, 5)
	})

	t.Run("identical inputs produce identical decisions", func(t *testing.T) {
		in := ReconcileInput{
			Portfolio: portfolioWith("S01", "S02", "S03", "S06", "S08"),
			Ranked:    rankedFixture(20),
			Date:      testDate,
			Config:    cfg,
		}
		first, err := Reconcile(in)
		require.NoError(t, err)
		second, err := Reconcile(in)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(first, second))
	})

	t.Run("unfilled slots go to the cash equivalent", func(t *testing.T) {
		withCash := cfg
		withCash.CashSymbol = "LIQUID"
		decision, err := Reconcile(ReconcileInput{
			Portfolio: portfolioWith(),
			Ranked:    rankedFixture(3),
			Date:      testDate,
			Config:    withCash,
		})
		require.NoError(t, err)

		require.Len(t, decision.Buys, 4)
		last := decision.Buys[len(decision.Buys)-1]
		require.Equal(t, "LIQUID", last.Symbol)
		require.InDelta(t, 0.4, last.TargetWeight, 1e-9)
		require.Nil(t, last.Rank)
		require.NotEmpty(t, decision.Warnings)
	})

	t.Run("held cash redeploys when equity buys exist", func(t *testing.T) {
		withCash := cfg
		withCash.CashSymbol = "LIQUID"
		decision, err := Reconcile(ReconcileInput{
			Portfolio: portfolioWith("LIQUID"),
			Ranked:    rankedFixture(20),
			Date:      testDate,
			Config:    withCash,
		})
		require.NoError(t, err)
		require.Contains(t, decision.Sells, "LIQUID")
		require.Len(t, decision.Buys, 5)
	})

	t.Run("band holding more than top-n never buys", func(t *testing.T) {
		// six names held at ranks 2..7, all inside TopN+Band=7: the book
		// is already over target size, so no slot is free
		decision, err := Reconcile(ReconcileInput{
			Portfolio: portfolioWith("S02", "S03", "S04", "S05", "S06", "S07"),
			Ranked:    rankedFixture(20),
			Date:      testDate,
			Config:    cfg,
		})
		require.NoError(t, err)

		require.Empty(t, decision.Buys)
		require.Empty(t, decision.Sells)
		require.Len(t, decision.Holds, 6)
		require.True(t, decision.Empty())
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		_, err := Reconcile(ReconcileInput{Config: Config{TopN: 0}})
		require.Error(t, err)
	})
}

func Test_Reconcile_weakMarket(t *testing.T) {
	cfg := Config{TopN: 5, Band: 2, CashSymbol: "LIQUID"}

	t.Run("liquidates everything into cash", func(t *testing.T) {
		decision, err := Reconcile(ReconcileInput{
			Portfolio:  portfolioWith("S01", "S02"),
			Ranked:     rankedFixture(20),
			Date:       testDate,
			WeakMarket: true,
			Config:     cfg,
		})
		require.NoError(t, err)

		require.True(t, decision.WeakMarket)
		require.Equal(t, []string{"S01", "S02"}, decision.Sells)
		require.Len(t, decision.Buys, 1)
		require.Equal(t, "LIQUID", decision.Buys[0].Symbol)
		require.InDelta(t, 1.0, decision.Buys[0].TargetWeight, 1e-9)
	})

	t.Run("already parked stays put", func(t *testing.T) {
		decision, err := Reconcile(ReconcileInput{
			Portfolio:  portfolioWith("LIQUID"),
			Ranked:     rankedFixture(20),
			Date:       testDate,
			WeakMarket: true,
			Config:     cfg,
		})
		require.NoError(t, err)
		require.True(t, decision.Empty())
		require.Equal(t, []string{"LIQUID"}, decision.Holds)
	})
}

func Test_Reconcile_jumpFilter(t *testing.T) {
	cfg := Config{TopN: 5, Band: 0, JumpThreshold: 0.15}

	prices := domain.PriceTable{
		"S04": {
			{Date: testDate.AddDate(0, 0, -1), Close: 100},
			{Date: testDate, Close: 120},
		},
	}

	decision, err := Reconcile(ReconcileInput{
		Portfolio: portfolioWith(),
		Ranked:    rankedFixture(5),
		Prices:    prices,
		Date:      testDate,
		Config:    cfg,
	})
	require.NoError(t, err)

	// S04 jumped 20% on the day: skipped, and its slot is NOT backfilled
	symbols := []string{}
	for _, buy := range decision.Buys {
		symbols = append(symbols, buy.Symbol)
	}
	require.Equal(t, []string{"S01", "S02", "S03", "S05"}, symbols)
	require.Len(t, decision.Warnings, 1)
	require.Contains(t, decision.Warnings[0], "S04")
}
