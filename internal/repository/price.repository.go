package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"momentum/internal/domain"
	"momentum/internal/logger"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

// PriceRepository supplies daily close history for a set of symbols.
// Implementations must return bars sorted ascending by date.
type PriceRepository interface {
	GetPrices(ctx context.Context, symbols []string, start, end time.Time) (domain.PriceTable, error)
}

func NewYahooPriceRepository() PriceRepository {
	return &yahooPriceRepositoryHandler{}
}

type yahooPriceRepositoryHandler struct{}

func (h yahooPriceRepositoryHandler) GetPrices(ctx context.Context, symbols []string, start, end time.Time) (domain.PriceTable, error) {
	log := logger.FromContext(ctx)

	table := domain.PriceTable{}
	failed := []string{}
	for _, symbol := range symbols {
		bars, err := h.fetchSymbol(symbol, start, end)
		if err != nil {
			log.Warnf("failed to fetch prices for %s: %v", symbol, err)
			failed = append(failed, symbol)
			continue
		}
		table[symbol] = bars
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("failed to fetch prices for all %d symbols, first failure on %s", len(symbols), failed[0])
	}
	if len(failed) > 0 {
		log.Warnw("price fetch incomplete", "failed", len(failed), "requested", len(symbols))
	}

	table.Normalize()
	return table, nil
}

func (h yahooPriceRepositoryHandler) fetchSymbol(symbol string, start, end time.Time) ([]domain.Bar, error) {
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	bars := []domain.Bar{}
	for iter.Next() {
		bar := iter.Bar()
		bars = append(bars, domain.Bar{
			Date:   time.Unix(int64(bar.Timestamp), 0).UTC().Truncate(24 * time.Hour),
			Close:  bar.AdjClose.InexactFloat64(),
			Volume: float64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars returned for %s between %s and %s",
			symbol, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return bars, nil
}

// NewInMemoryPriceRepository wraps a pre-built table, mostly for tests
// and for replaying cached data without a network round trip.
func NewInMemoryPriceRepository(table domain.PriceTable) PriceRepository {
	table.Normalize()
	return &inMemoryPriceRepositoryHandler{table: table}
}

type inMemoryPriceRepositoryHandler struct {
	table domain.PriceTable
}

func (h inMemoryPriceRepositoryHandler) GetPrices(_ context.Context, symbols []string, start, end time.Time) (domain.PriceTable, error) {
	out := domain.PriceTable{}
	missing := []string{}
	for _, symbol := range symbols {
		bars, ok := h.table[symbol]
		if !ok {
			missing = append(missing, symbol)
			continue
		}
		window := []domain.Bar{}
		for _, bar := range bars {
			if !bar.Date.Before(start) && !bar.Date.After(end) {
				window = append(window, bar)
			}
		}
		if len(window) > 0 {
			out[symbol] = window
		}
	}
	if len(out) == 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("no price data for any of %d requested symbols", len(symbols))
	}
	return out, nil
}
