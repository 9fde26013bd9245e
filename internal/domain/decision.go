package domain

import "time"

// BuyTarget is a symbol the reconciler wants opened (or topped up),
// with its equal-weight share of the portfolio. Rank is nil for the
// cash-equivalent placeholder.
type BuyTarget struct {
	Symbol       string
	TargetWeight float64
	Rank         *int
}

// RebalanceDecision is the reconciler's full answer for one date. It is
// produced once and consumed exactly once, by either the live order
// path or the simulator ledger.
type RebalanceDecision struct {
	Date  time.Time
	Sells []string
	Holds []string
	Buys  []BuyTarget

	// Warnings carries coverage shortfalls (fewer eligible names than
	// requested) and per-symbol exclusions worth surfacing.
	Warnings []string

	// WeakMarket marks a regime-gated decision: everything sold, cash
	// equivalent bought.
	WeakMarket bool
}

// Empty reports whether the decision changes the portfolio. Holds alone
// do not count.
func (d RebalanceDecision) Empty() bool {
	return len(d.Sells) == 0 && len(d.Buys) == 0
}

type Restriction struct {
	Symbol string
	// LongTerm restrictions are indefinite bans; short-term ones carry a
	// surveillance stage and only stage >= 2 excludes a symbol.
	LongTerm bool
	Stage    int
}

// Excluded reports whether the restriction removes the symbol from the
// eligible universe. Short-term stage I names are still tradeable; they
// tend to be exactly the momentum names this strategy wants.
func (r Restriction) Excluded() bool {
	return r.LongTerm || r.Stage >= 2
}
