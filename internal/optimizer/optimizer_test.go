package optimizer

import (
	"context"
	"fmt"
	"math"
	"testing"

	"momentum/internal/domain"

	"github.com/stretchr/testify/require"
)

func Test_Optimize(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		GridStep:         0.5,
		MaxDrawdownFloor: -30,
		Workers:          3,
	}

	// deterministic stand-in for a backtest: return weight pays off,
	// all-proximity blows through the drawdown floor, all-RSI errors
	eval := func(_ context.Context, w domain.WeightTriple) (float64, float64, error) {
		if w.RSI == 1 {
			return 0, 0, fmt.Errorf("synthetic backtest failure")
		}
		drawdown := -5.0
		if w.Proximity == 1 {
			drawdown = -40
		}
		return 10*w.Return + 5*w.RSI + w.Proximity, drawdown, nil
	}

	t.Run("picks the best feasible candidate", func(t *testing.T) {
		report, err := Optimize(ctx, eval, cfg)
		require.NoError(t, err)

		require.NotNil(t, report.Best)
		require.Equal(t, domain.WeightTriple{Return: 1, RSI: 0, Proximity: 0}, report.Best.Weights)
		require.InDelta(t, 10, report.Best.CAGRPct, 1e-9)
		require.Equal(t, 6, report.Evaluations)
	})

	t.Run("orders candidates by cagr with failures last", func(t *testing.T) {
		report, err := Optimize(ctx, eval, cfg)
		require.NoError(t, err)
		require.Len(t, report.Candidates, 6)

		for i := 1; i < len(report.Candidates); i++ {
			prev, curr := report.Candidates[i-1], report.Candidates[i]
			if curr.FailureReason != "" {
				continue
			}
			require.Empty(t, prev.FailureReason)
			require.GreaterOrEqual(t, prev.CAGRPct, curr.CAGRPct)
		}
		require.NotEmpty(t, report.Candidates[len(report.Candidates)-1].FailureReason)
	})

	t.Run("drawdown breach is reported but never selected", func(t *testing.T) {
		report, err := Optimize(ctx, eval, cfg)
		require.NoError(t, err)

		for _, candidate := range report.Candidates {
			if candidate.Weights.Proximity == 1 {
				require.False(t, candidate.Feasible)
			}
		}
		require.NotEqual(t, 1.0, report.Best.Weights.Proximity)
	})

	t.Run("all infeasible leaves best nil", func(t *testing.T) {
		deepDrawdown := func(_ context.Context, w domain.WeightTriple) (float64, float64, error) {
			return 10, -90, nil
		}
		report, err := Optimize(ctx, deepDrawdown, cfg)
		require.NoError(t, err)
		require.Nil(t, report.Best)
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		bad := cfg
		bad.Workers = 0
		_, err := Optimize(ctx, eval, bad)
		require.Error(t, err)
	})
}

func Test_Optimize_refine(t *testing.T) {
	ctx := context.Background()

	// smooth objective peaking at (0.6, 0.2, 0.2), well off the coarse
	// lattice, so refinement must beat the grid winner
	eval := func(_ context.Context, w domain.WeightTriple) (float64, float64, error) {
		cagr := 50 - 100*(math.Pow(w.Return-0.6, 2)+math.Pow(w.RSI-0.2, 2))
		return cagr, -5, nil
	}

	cfg := Config{
		GridStep:         0.5,
		MaxDrawdownFloor: -30,
		Workers:          2,
		Refine:           true,
		RefineMaxEvals:   200,
		RefineTolerance:  1e-6,
	}

	report, err := Optimize(ctx, eval, cfg)
	require.NoError(t, err)
	require.NotNil(t, report.Best)

	// grid winner (0.5, 0, 0.5) scores 45; the descent gets closer to
	// the true peak
	require.Greater(t, report.Best.CAGRPct, 45.0)
	require.NoError(t, report.Best.Weights.Validate())
	require.Greater(t, report.Evaluations, 6)
}
