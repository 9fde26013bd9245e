package domain

import (
	"sort"
	"time"
)

// Bar is one daily observation for a symbol. Volume may be zero for
// index symbols, which never pass the liquidity gates anyway.
type Bar struct {
	Date   time.Time
	Close  float64
	Volume float64
}

// PriceTable maps a symbol to its daily bars, ascending by date. It is
// the read-only contract between the price provider and everything
// downstream; concurrent readers are fine, nothing mutates it mid-run.
type PriceTable map[string][]Bar

// Normalize sorts every series ascending by date. Providers call this
// once before handing the table out.
func (t PriceTable) Normalize() {
	for _, bars := range t {
		sort.Slice(bars, func(i, j int) bool {
			return bars[i].Date.Before(bars[j].Date)
		})
	}
}

// Through returns the bars for symbol up to and including date.
func (t PriceTable) Through(symbol string, date time.Time) []Bar {
	bars := t[symbol]
	i := sort.Search(len(bars), func(i int) bool {
		return bars[i].Date.After(date)
	})
	return bars[:i]
}

// CloseOn returns the close for symbol on exactly the given date.
func (t PriceTable) CloseOn(symbol string, date time.Time) (float64, bool) {
	bars := t[symbol]
	i := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Date.Before(date)
	})
	if i < len(bars) && sameDay(bars[i].Date, date) {
		return bars[i].Close, true
	}
	return 0, false
}

// Symbols returns the table's symbols in ascending order.
func (t PriceTable) Symbols() []string {
	symbols := make([]string, 0, len(t))
	for symbol := range t {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
