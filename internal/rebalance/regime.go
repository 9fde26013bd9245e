package rebalance

import (
	"fmt"
	"time"

	"momentum/internal/domain"
	"momentum/internal/indicators"
)

// RegimeConfig gates rebalancing on overall market strength. When the
// market is weak the strategy liquidates into the cash equivalent
// instead of rotating names.
type RegimeConfig struct {
	Enabled          bool    `yaml:"enabled"`
	BenchmarkSymbol  string  `yaml:"benchmark_symbol"`
	BreadthThreshold float64 `yaml:"breadth_threshold"`
	BreadthSMAPeriod int     `yaml:"breadth_sma_period"`
}

func DefaultRegimeConfig(benchmark string) RegimeConfig {
	return RegimeConfig{
		Enabled:          true,
		BenchmarkSymbol:  benchmark,
		BreadthThreshold: 0.4,
		BreadthSMAPeriod: 44,
	}
}

// MarketStrong reports whether the market regime allows fresh equity
// exposure. Weak when the benchmark closes below its 22, 44, and 66 day
// EMAs, or when breadth (share of universe above its SMA) is under the
// threshold. A benchmark with under 66 bars counts as weak rather than
// erroring, so thin warm-up data fails safe.
func MarketStrong(table domain.PriceTable, universeSymbols []string, asOf time.Time, cfg RegimeConfig) (bool, error) {
	if !cfg.Enabled {
		return true, nil
	}

	benchmarkBars := table.Through(cfg.BenchmarkSymbol, asOf)
	if len(benchmarkBars) == 0 {
		return false, fmt.Errorf("benchmark %s has no price data through %s", cfg.BenchmarkSymbol, asOf.Format(time.DateOnly))
	}
	if len(benchmarkBars) < 66 {
		return false, nil
	}

	latestClose := benchmarkBars[len(benchmarkBars)-1].Close
	belowAll := true
	for _, period := range []int{22, 44, 66} {
		ema, err := indicators.EMA(benchmarkBars, period)
		if err != nil {
			return false, fmt.Errorf("failed to compute %d-day ema for %s: %w", period, cfg.BenchmarkSymbol, err)
		}
		if latestClose >= ema {
			belowAll = false
		}
	}
	if belowAll {
		return false, nil
	}

	breadth := breadthRatio(table, universeSymbols, asOf, cfg.BreadthSMAPeriod)
	return breadth >= cfg.BreadthThreshold, nil
}

// breadthRatio is the fraction of universe symbols trading above their
// period-day SMA as of the date. Symbols with too little history are
// left out of both numerator and denominator.
func breadthRatio(table domain.PriceTable, symbols []string, asOf time.Time, period int) float64 {
	above := 0
	total := 0
	for _, symbol := range symbols {
		bars := table.Through(symbol, asOf)
		sma, err := indicators.SMA(bars, period)
		if err != nil {
			continue
		}
		if bars[len(bars)-1].Close > sma {
			above++
		}
		total++
	}
	if total == 0 {
		return 0
	}
	return float64(above) / float64(total)
}
