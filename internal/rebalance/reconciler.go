// Package rebalance converts a momentum ranking plus current holdings
// into a minimal-churn order plan: the band rule decides what to hold,
// sell, and buy; the planner sizes the buys in whole shares.
package rebalance

import (
	"fmt"
	"sort"
	"time"

	"momentum/internal/domain"
)

type Config struct {
	// TopN is the target number of names; Band is how far below the
	// cutoff a held name may drift before it is sold. A held symbol
	// ranked within TopN+Band stays, which is what keeps churn down
	// when ranks wobble around the cutoff.
	TopN int
	Band int

	// CashSymbol is the cash-equivalent placeholder. It absorbs any
	// slot the ranking cannot fill and the whole portfolio in a weak
	// market.
	CashSymbol string

	// JumpThreshold skips a new entry whose day-over-day return exceeds
	// it (circuit-jump protection). 0 disables the gate.
	JumpThreshold float64

	Regime RegimeConfig
}

func (c Config) Validate() error {
	if c.TopN <= 0 {
		return fmt.Errorf("top-n must be positive, got %d", c.TopN)
	}
	if c.Band < 0 {
		return fmt.Errorf("band must be non-negative, got %d", c.Band)
	}
	if c.JumpThreshold < 0 {
		return fmt.Errorf("jump threshold must be non-negative, got %f", c.JumpThreshold)
	}
	return nil
}

type ReconcileInput struct {
	Portfolio domain.Portfolio
	Ranked    []domain.RankedSymbol
	Date      time.Time

	// Prices feeds the jump filter; nil disables it for the call.
	Prices domain.PriceTable

	// WeakMarket is the regime gate's verdict, computed by the caller
	// so the reconciler stays a pure function of its inputs.
	WeakMarket bool

	Config Config
}

// Reconcile produces the rebalance decision for one date. Identical
// inputs always yield an identical decision, and applying a decision
// then reconciling again yields an empty one.
func Reconcile(in ReconcileInput) (*domain.RebalanceDecision, error) {
	cfg := in.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reconciler config: %w", err)
	}

	decision := &domain.RebalanceDecision{
		Date:  in.Date,
		Sells: []string{},
		Holds: []string{},
		Buys:  []domain.BuyTarget{},
	}

	held := in.Portfolio.HeldSymbols()

	if in.WeakMarket {
		return reconcileWeakMarket(decision, held, cfg), nil
	}

	rankBySymbol := map[string]int{}
	topN := []string{}
	for _, r := range in.Ranked {
		rankBySymbol[r.Symbol] = r.Rank
		if r.Rank <= cfg.TopN {
			topN = append(topN, r.Symbol)
		}
	}

	if len(in.Ranked) < cfg.TopN {
		decision.Warnings = append(decision.Warnings,
			fmt.Sprintf("only %d of %d requested names are eligible", len(in.Ranked), cfg.TopN))
	}

	cashHeld := false
	for _, symbol := range held {
		if symbol == cfg.CashSymbol {
			cashHeld = true
			continue
		}
		rank, ok := rankBySymbol[symbol]
		if ok && rank <= cfg.TopN+cfg.Band {
			decision.Holds = append(decision.Holds, symbol)
		} else {
			// fell out of the band or dropped out of the eligible
			// universe entirely
			decision.Sells = append(decision.Sells, symbol)
		}
	}

	heldSet := map[string]bool{}
	for _, symbol := range decision.Holds {
		heldSet[symbol] = true
	}

	// the band can retain more names than TopN; no slot is free then
	freeSlots := cfg.TopN - len(decision.Holds)
	if freeSlots < 0 {
		freeSlots = 0
	}
	candidates := []string{}
	for _, symbol := range topN {
		if len(candidates) >= freeSlots {
			break
		}
		if !heldSet[symbol] {
			candidates = append(candidates, symbol)
		}
	}

	targetWeight := 1.0 / float64(cfg.TopN)
	for _, symbol := range candidates {
		if skipped, dayReturn := jumpExceeded(in.Prices, symbol, in.Date, cfg.JumpThreshold); skipped {
			decision.Warnings = append(decision.Warnings,
				fmt.Sprintf("skipping %s: %.1f%% single-day jump exceeds threshold", symbol, dayReturn*100))
			continue
		}
		rank := rankBySymbol[symbol]
		decision.Buys = append(decision.Buys, domain.BuyTarget{
			Symbol:       symbol,
			TargetWeight: targetWeight,
			Rank:         &rank,
		})
	}

	// the cash equivalent redeploys when equity buys exist, and absorbs
	// whatever slot weight the ranking could not fill
	if cashHeld && len(decision.Buys) > 0 {
		decision.Sells = append(decision.Sells, cfg.CashSymbol)
	}
	unfilled := cfg.TopN - len(decision.Holds) - len(decision.Buys)
	if unfilled > 0 && cfg.CashSymbol != "" && !cashHeld {
		decision.Buys = append(decision.Buys, domain.BuyTarget{
			Symbol:       cfg.CashSymbol,
			TargetWeight: float64(unfilled) * targetWeight,
		})
	}
	if cashHeld && len(decision.Buys) == 0 {
		decision.Holds = append(decision.Holds, cfg.CashSymbol)
	}

	sort.Strings(decision.Sells)
	sort.Strings(decision.Holds)
	return decision, nil
}

func reconcileWeakMarket(decision *domain.RebalanceDecision, held []string, cfg Config) *domain.RebalanceDecision {
	decision.WeakMarket = true
	cashHeld := false
	for _, symbol := range held {
		if symbol == cfg.CashSymbol {
			cashHeld = true
			continue
		}
		decision.Sells = append(decision.Sells, symbol)
	}
	if cfg.CashSymbol != "" {
		if cashHeld {
			decision.Holds = append(decision.Holds, cfg.CashSymbol)
		} else if len(decision.Sells) > 0 || len(held) == 0 {
			decision.Buys = append(decision.Buys, domain.BuyTarget{
				Symbol:       cfg.CashSymbol,
				TargetWeight: 1,
			})
		}
	}
	sort.Strings(decision.Sells)
	return decision
}

// jumpExceeded reports whether symbol's day-over-day return on date
// breaches the threshold. Missing data counts as no jump; the entry
// gets its chance.
func jumpExceeded(table domain.PriceTable, symbol string, date time.Time, threshold float64) (bool, float64) {
	if threshold == 0 || table == nil {
		return false, 0
	}
	bars := table.Through(symbol, date)
	if len(bars) < 2 {
		return false, 0
	}
	last := bars[len(bars)-1]
	if !last.Date.Equal(date) && last.Date.Format(time.DateOnly) != date.Format(time.DateOnly) {
		return false, 0
	}
	prev := bars[len(bars)-2]
	dayReturn := last.Close/prev.Close - 1
	return dayReturn > threshold, dayReturn
}
