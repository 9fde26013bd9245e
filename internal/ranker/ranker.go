// Package ranker turns price history into the composite momentum
// ranking: multi-timeframe return, multi-timeframe RSI, and proximity
// to the 52-week high, each ranked across the eligible universe and
// combined with a configured weight triple.
package ranker

import (
	"fmt"
	"sort"
	"time"

	"momentum/internal/domain"
	"momentum/internal/indicators"
)

const (
	returnWindow1 = 22
	returnWindow2 = 44
	returnWindow3 = 66
	highLookback  = 252
)

type Config struct {
	Weights domain.WeightTriple

	// Quality and liquidity gates, applied before any scoring. A symbol
	// failing a gate is excluded for the date, not scored as zero.
	MinHistoryBars       int
	MinClose             float64
	MaxClose             float64 // 0 disables
	LiquidityWindow      int
	MinMedianTradedValue float64
	MinAvgVolume         float64
}

/// DefaultConfig carries the gates the strategy runs with in production:
// a full year of history, no penny stocks, and enough traded value to
// get filled without moving the market.
func DefaultConfig(weights domain.WeightTriple) Config {
	return Config{
		Weights:              weights,
		MinHistoryBars:       252,
		MinClose:             100,
		MaxClose:             0,
		LiquidityWindow:      22,
		MinMedianTradedValue: 10_000_000,
		MinAvgVolume:         10_000,
	}
}

func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.MinHistoryBars < highLookback {
		return fmt.Errorf("min history bars must cover the %d-day high lookback, got %d", highLookback, c.MinHistoryBars)
	}
	if c.LiquidityWindow <= 0 {
		return fmt.Errorf("liquidity window must be positive, got %d", c.LiquidityWindow)
	}
	return nil
}

// Snapshot computes the factor inputs for one symbol from its bars up
// to and including asOf. Returns an indicators.InsufficientDataError if
// any lookback window is not covered.
func Snapshot(symbol string, bars []domain.Bar, asOf time.Time) (*domain.SymbolSnapshot, error) {
	snapshot := &domain.SymbolSnapshot{
		Symbol: symbol,
		AsOf:   asOf,
	}
	if len(bars) == 0 {
		return nil, indicators.InsufficientDataError{Err: fmt.Errorf("no bars for %s through %s", symbol, asOf.Format(time.DateOnly))}
	}
	snapshot.Close = bars[len(bars)-1].Close

	var err error
	for _, c := range []struct {
		out    *float64
		window int
		f      func([]domain.Bar, int) (float64, error)
	}{
		{&snapshot.Return22, returnWindow1, indicators.TrailingReturn},
		{&snapshot.Return44, returnWindow2, indicators.TrailingReturn},
		{&snapshot.Return66, returnWindow3, indicators.TrailingReturn},
		{&snapshot.RSI22, returnWindow1, indicators.RSI},
		{&snapshot.RSI44, returnWindow2, indicators.RSI},
		{&snapshot.RSI66, returnWindow3, indicators.RSI},
		{&snapshot.PctOf52WeekHigh, highLookback, indicators.HighProximity},
	} {
		*c.out, err = c.f(bars, c.window)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot %s: %w", symbol, err)
		}
	}

	return snapshot, nil
}

// Rank scores every eligible symbol as of the given date and returns
// the full ordering, best first. Symbols without enough history or
// failing a liquidity gate are dropped silently; the caller compares
// len(result) against its top-N to decide whether to warn. Ties at
// every stage break by ascending symbol, which makes identical inputs
// produce bit-identical output.
func Rank(table domain.PriceTable, eligible []string, asOf time.Time, cfg Config) ([]domain.RankedSymbol, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ranker config: %w", err)
	}

	symbols := append([]string{}, eligible...)
	sort.Strings(symbols)

	snapshots := []*domain.SymbolSnapshot{}
	for _, symbol := range symbols {
		bars := table.Through(symbol, asOf)
		if len(bars) < cfg.MinHistoryBars {
			continue
		}

		latestClose := bars[len(bars)-1].Close
		if latestClose < cfg.MinClose {
			continue
		}
		if cfg.MaxClose > 0 && latestClose >= cfg.MaxClose {
			continue
		}

		medianValue, err := indicators.MedianTradedValue(bars, cfg.LiquidityWindow)
		if err != nil || medianValue < cfg.MinMedianTradedValue {
			continue
		}
		avgVolume, err := indicators.AvgVolume(bars, cfg.LiquidityWindow)
		if err != nil || avgVolume < cfg.MinAvgVolume {
			continue
		}

		snapshot, err := Snapshot(symbol, bars, asOf)
		if err != nil {
			if indicators.IsInsufficientData(err) {
				continue
			}
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	if len(snapshots) == 0 {
		return []domain.RankedSymbol{}, nil
	}

	returnScores := map[string]float64{}
	rsiScores := map[string]float64{}
	proximityScores := map[string]float64{}
	for _, s := range snapshots {
		returnScores[s.Symbol] = s.ReturnScore()
		rsiScores[s.Symbol] = s.RSIScore()
		proximityScores[s.Symbol] = s.ProximityScore()
	}

	returnRanks := normalizedRanks(returnScores)
	rsiRanks := normalizedRanks(rsiScores)
	proximityRanks := normalizedRanks(proximityScores)

	ranked := make([]domain.RankedSymbol, 0, len(snapshots))
	for _, s := range snapshots {
		ranked = append(ranked, domain.RankedSymbol{
			Symbol:        s.Symbol,
			ReturnRank:    returnRanks[s.Symbol],
			RSIRank:       rsiRanks[s.Symbol],
			ProximityRank: proximityRanks[s.Symbol],
			Composite: cfg.Weights.Return*returnRanks[s.Symbol] +
				cfg.Weights.RSI*rsiRanks[s.Symbol] +
				cfg.Weights.Proximity*proximityRanks[s.Symbol],
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite > ranked[j].Composite
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked, nil
}

// normalizedRanks converts raw factor values into [0, 1] sub-ranks
// where 1 is the best symbol. Higher raw value is always better here;
// proximity feeds in as percent-of-high, so closer to the high scores
// higher. Ties break by ascending symbol.
func normalizedRanks(scores map[string]float64) map[string]float64 {
	symbols := make([]string, 0, len(scores))
	for symbol := range scores {
		symbols = append(symbols, symbol)
	}
	sort.Slice(symbols, func(i, j int) bool {
		if scores[symbols[i]] != scores[symbols[j]] {
			return scores[symbols[i]] > scores[symbols[j]]
		}
		return symbols[i] < symbols[j]
	})

	n := len(symbols)
	ranks := make(map[string]float64, n)
	if n == 1 {
		ranks[symbols[0]] = 1
		return ranks
	}
	for i, symbol := range symbols {
		ranks[symbol] = float64(n-1-i) / float64(n-1)
	}
	return ranks
}
