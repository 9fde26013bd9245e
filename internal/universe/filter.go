// Package universe narrows the base symbol list to what is actually
// tradeable on a date. Restriction data comes from a collaborator; the
// filter itself is a pure function so backtest and live runs share it.
package universe

import (
	"sort"

	"momentum/internal/domain"
)

// Filter returns the symbols eligible for trading given the
// restrictions in force, plus the symbols that were removed. Both
// slices come back sorted ascending.
func Filter(symbols []string, restrictions []domain.Restriction) (eligible, excluded []string) {
	excludedSet := map[string]bool{}
	for _, r := range restrictions {
		if r.Excluded() {
			excludedSet[r.Symbol] = true
		}
	}

	eligible = []string{}
	excluded = []string{}
	for _, symbol := range symbols {
		if excludedSet[symbol] {
			excluded = append(excluded, symbol)
		} else {
			eligible = append(eligible, symbol)
		}
	}
	sort.Strings(eligible)
	sort.Strings(excluded)

	return eligible, excluded
}
