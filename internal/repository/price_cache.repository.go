package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"momentum/internal/domain"
	"momentum/internal/logger"

	"github.com/gocarina/gocsv"
)

// priceCSVRow is the on-disk layout of one cached bar.
type priceCSVRow struct {
	Date   string  `csv:"date"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

// NewCachedPriceRepository wraps another price source with a per-symbol
// CSV cache on disk. A symbol whose cached file covers the requested
// window is served locally; everything else falls through to the
// underlying source and is written back.
func NewCachedPriceRepository(underlying PriceRepository, cacheDir string) (PriceRepository, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create price cache dir %s: %w", cacheDir, err)
	}
	return &cachedPriceRepositoryHandler{
		underlying: underlying,
		cacheDir:   cacheDir,
	}, nil
}

type cachedPriceRepositoryHandler struct {
	underlying PriceRepository
	cacheDir   string
}

func (h cachedPriceRepositoryHandler) GetPrices(ctx context.Context, symbols []string, start, end time.Time) (domain.PriceTable, error) {
	log := logger.FromContext(ctx)

	table := domain.PriceTable{}
	misses := []string{}
	for _, symbol := range symbols {
		bars, err := h.readCache(symbol, start, end)
		if err != nil {
			log.Warnf("price cache read failed for %s, refetching: %v", symbol, err)
			misses = append(misses, symbol)
			continue
		}
		if bars == nil {
			misses = append(misses, symbol)
			continue
		}
		table[symbol] = bars
	}

	if len(misses) > 0 {
		fetched, err := h.underlying.GetPrices(ctx, misses, start, end)
		if err != nil {
			if len(table) == 0 {
				return nil, err
			}
			log.Warnw("serving partial price table from cache", "cached", len(table), "unavailable", len(misses))
		}
		for symbol, bars := range fetched {
			table[symbol] = bars
			if err := h.writeCache(symbol, bars); err != nil {
				log.Warnf("failed to cache prices for %s: %v", symbol, err)
			}
		}
	}

	table.Normalize()
	return table, nil
}

// readCache returns nil bars with nil error on a cache miss.
func (h cachedPriceRepositoryHandler) readCache(symbol string, start, end time.Time) ([]domain.Bar, error) {
	f, err := os.Open(h.cachePath(symbol))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows := []priceCSVRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse cached prices for %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	bars := make([]domain.Bar, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(time.DateOnly, row.Date)
		if err != nil {
			return nil, fmt.Errorf("bad date %q in cached prices for %s: %w", row.Date, symbol, err)
		}
		bars = append(bars, domain.Bar{Date: date, Close: row.Close, Volume: row.Volume})
	}

	// treat a file that does not span the request as a miss so stale
	// caches refresh instead of silently shortening history
	if bars[0].Date.After(start.Add(7*24*time.Hour)) || bars[len(bars)-1].Date.Before(end.Add(-7*24*time.Hour)) {
		return nil, nil
	}

	window := []domain.Bar{}
	for _, bar := range bars {
		if !bar.Date.Before(start) && !bar.Date.After(end) {
			window = append(window, bar)
		}
	}
	return window, nil
}

func (h cachedPriceRepositoryHandler) writeCache(symbol string, bars []domain.Bar) error {
	rows := make([]priceCSVRow, 0, len(bars))
	for _, bar := range bars {
		rows = append(rows, priceCSVRow{
			Date:   bar.Date.Format(time.DateOnly),
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}

	f, err := os.Create(h.cachePath(symbol))
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&rows, f)
}

func (h cachedPriceRepositoryHandler) cachePath(symbol string) string {
	return filepath.Join(h.cacheDir, symbol+".csv")
}
