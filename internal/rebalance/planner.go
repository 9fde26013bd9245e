package rebalance

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"momentum/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrInsufficientCapital means the equal-weight allocation could not
// fund at least one share of every target name. The caller skips the
// rebalance rather than holding a lopsided book.
var ErrInsufficientCapital = errors.New("insufficient capital to fund every target position")

// Entry is one symbol in an allocation request. Quantity is the
// currently held share count (zero for new entries). Rank is nil for
// the cash equivalent.
type Entry struct {
	Symbol   string
	Price    float64
	Rank     *int
	Quantity int64
}

type PlanInput struct {
	Held    []Entry
	New     []Entry
	Removed []Entry

	Cash                decimal.Decimal
	TransactionCostRate float64

	// CashSweep, when set, receives whatever capital is left after the
	// equal-weight pass, in whole shares of the cash equivalent.
	CashSweep *Entry
}

type Plan struct {
	// Trades lists sells before buys, each group sorted by symbol.
	Trades          []domain.ProposedTrade
	TransactionCost decimal.Decimal
	Leftover        decimal.Decimal
}

// PlanAllocation sizes a rebalance in whole shares: sell the removed
// names, then spread freed capital equally across held + new names up
// to a per-name cap, topping up the least-invested names first, and
// finally drip leftover capital one share at a time. Held positions are
// only ever added to, never trimmed.
func PlanAllocation(in PlanInput) (*Plan, error) {
	if err := validatePlanInput(in); err != nil {
		return nil, err
	}

	sellValue := 0.0
	for _, e := range in.Removed {
		sellValue += float64(e.Quantity) * e.Price
	}
	freedCapital := in.Cash.InexactFloat64() + sellValue

	plan := &Plan{Trades: []domain.ProposedTrade{}}
	for _, e := range sortedEntries(in.Removed) {
		plan.Trades = append(plan.Trades, domain.ProposedTrade{
			Symbol:        e.Symbol,
			Side:          domain.TradeSide_Sell,
			Quantity:      e.Quantity,
			Rank:          e.Rank,
			ExpectedPrice: e.Price,
		})
	}

	targets := append(sortedEntries(in.Held), sortedEntries(in.New)...)
	if len(targets) == 0 {
		// liquidation or parking plan: no equity targets, everything
		// freed goes to cash, swept into the cash equivalent if one is
		// configured
		cost := sellValue * in.TransactionCostRate
		leftover := freedCapital - cost
		leftover = sweepIntoCashEquivalent(plan, in.CashSweep, leftover)
		plan.TransactionCost = decimal.NewFromFloat(cost)
		plan.Leftover = decimal.NewFromFloat(leftover)
		return plan, nil
	}

	if freedCapital <= 0 {
		plan.Leftover = decimal.NewFromFloat(freedCapital)
		return plan, nil
	}

	// buys are assumed to consume all freed capital, so both sides of
	// the churn pay the cost rate
	transactionCost := (sellValue + freedCapital) * in.TransactionCostRate
	usableCapital := freedCapital - transactionCost

	heldCapital := 0.0
	for _, e := range in.Held {
		heldCapital += float64(e.Quantity) * e.Price
	}
	capPerName := (heldCapital + usableCapital) / float64(len(targets))

	allocations, leftover := allocateEqually(targets, usableCapital, capPerName)
	allocations, leftover = distributeLeftover(allocations, leftover)

	for _, a := range allocations {
		if a.Quantity == 0 {
			return nil, fmt.Errorf("%w: cannot fund %s at %.2f", ErrInsufficientCapital, a.Symbol, a.Price)
		}
	}

	previousQuantity := map[string]int64{}
	for _, e := range targets {
		previousQuantity[e.Symbol] = e.Quantity
	}

	for _, a := range sortedEntries(allocations) {
		additional := a.Quantity - previousQuantity[a.Symbol]
		if additional > 0 {
			plan.Trades = append(plan.Trades, domain.ProposedTrade{
				Symbol:        a.Symbol,
				Side:          domain.TradeSide_Buy,
				Quantity:      additional,
				Rank:          a.Rank,
				ExpectedPrice: a.Price,
			})
		}
	}

	leftover = sweepIntoCashEquivalent(plan, in.CashSweep, leftover)

	plan.TransactionCost = decimal.NewFromFloat(transactionCost)
	plan.Leftover = decimal.NewFromFloat(leftover)
	return plan, nil
}

// sweepIntoCashEquivalent converts leftover capital into whole shares
// of the cash-equivalent placeholder, appending the buy to the plan.
func sweepIntoCashEquivalent(plan *Plan, sweep *Entry, leftover float64) float64 {
	if sweep == nil || sweep.Price <= 0 {
		return leftover
	}
	shares := int64(math.Floor(leftover / sweep.Price))
	if shares <= 0 {
		return leftover
	}
	plan.Trades = append(plan.Trades, domain.ProposedTrade{
		Symbol:        sweep.Symbol,
		Side:          domain.TradeSide_Buy,
		Quantity:      shares,
		ExpectedPrice: sweep.Price,
	})
	return leftover - float64(shares)*sweep.Price
}

// allocateEqually gives zero-quantity names an equal slice first (so
// new entries always get funded), then tops every name up toward the
// per-name cap, least-invested first.
func allocateEqually(targets []Entry, usableCapital, capPerName float64) ([]Entry, float64) {
	allocated := 0.0
	updated := make([]Entry, len(targets))
	copy(updated, targets)

	zeroCount := 0
	for _, e := range updated {
		if e.Quantity == 0 {
			zeroCount++
		}
	}
	if zeroCount > 0 {
		perName := math.Min(usableCapital/float64(zeroCount), capPerName)
		for i, e := range updated {
			if e.Quantity != 0 {
				continue
			}
			shares := int64(math.Floor(perName / e.Price))
			updated[i].Quantity = shares
			allocated += float64(shares) * e.Price
		}
	}

	// top-ups, least invested first so underweight winners catch up
	order := make([]int, len(updated))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va := float64(updated[order[a]].Quantity) * updated[order[a]].Price
		vb := float64(updated[order[b]].Quantity) * updated[order[b]].Price
		if va != vb {
			return va < vb
		}
		return updated[order[a]].Symbol < updated[order[b]].Symbol
	})

	for _, i := range order {
		currentValue := float64(updated[i].Quantity) * updated[i].Price
		need := math.Max(0, capPerName-currentValue)
		available := math.Min(need, usableCapital-allocated)
		if available <= 0 {
			continue
		}
		shares := int64(math.Floor(available / updated[i].Price))
		updated[i].Quantity += shares
		allocated += float64(shares) * updated[i].Price
	}

	return updated, usableCapital - allocated
}

// distributeLeftover drips remaining capital one share per round into
// whichever name has the smallest invested value, until nothing is
// affordable.
func distributeLeftover(allocations []Entry, leftover float64) ([]Entry, float64) {
	if leftover <= 0 || len(allocations) == 0 {
		return allocations, leftover
	}

	for {
		best := -1
		bestValue := math.Inf(1)
		for i, a := range allocations {
			if leftover < a.Price {
				continue
			}
			value := float64(a.Quantity) * a.Price
			if value < bestValue || (value == bestValue && best >= 0 && a.Symbol < allocations[best].Symbol) {
				best = i
				bestValue = value
			}
		}
		if best < 0 {
			return allocations, leftover
		}
		allocations[best].Quantity++
		leftover -= allocations[best].Price
	}
}

func validatePlanInput(in PlanInput) error {
	if in.TransactionCostRate < 0 || in.TransactionCostRate >= 1 {
		return fmt.Errorf("transaction cost rate must be in [0, 1), got %f", in.TransactionCostRate)
	}
	if len(in.Held) == 0 && len(in.New) == 0 && len(in.Removed) == 0 && in.CashSweep == nil {
		return fmt.Errorf("nothing to plan: held, new, and removed are all empty")
	}

	seen := map[string]string{}
	check := func(entries []Entry, category string, wantZeroQuantity bool) error {
		for _, e := range entries {
			if e.Symbol == "" {
				return fmt.Errorf("%s entry has empty symbol", category)
			}
			if e.Price <= 0 {
				return fmt.Errorf("%s entry %s has non-positive price %f", category, e.Symbol, e.Price)
			}
			if wantZeroQuantity && e.Quantity != 0 {
				return fmt.Errorf("new entry %s should have zero quantity, got %d", e.Symbol, e.Quantity)
			}
			if !wantZeroQuantity && e.Quantity <= 0 {
				return fmt.Errorf("%s entry %s should have positive quantity, got %d", category, e.Symbol, e.Quantity)
			}
			if prev, ok := seen[e.Symbol]; ok {
				return fmt.Errorf("%s appears in both %s and %s", e.Symbol, prev, category)
			}
			seen[e.Symbol] = category
		}
		return nil
	}

	if err := check(in.Held, "held", false); err != nil {
		return err
	}
	if err := check(in.New, "new", true); err != nil {
		return err
	}
	return check(in.Removed, "removed", false)
}

func sortedEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
