// Package backtest replays the momentum decision process over
// historical data: rank, filter, reconcile, and settle against a
// simulated ledger on every rebalance date, marking to market daily in
// between.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"momentum/internal/domain"
	"momentum/internal/logger"
	"momentum/internal/ranker"
	"momentum/internal/rebalance"
	"momentum/internal/universe"
	"momentum/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Frequency string

const (
	Frequency_Weekly  Frequency = "W"
	Frequency_Monthly Frequency = "M"
)

// DefaultWarmupDays is the calendar-day buffer of price history the
// provider must supply before the start date so every lookback window
// resolves on the first rebalance.
const DefaultWarmupDays = 400

type Config struct {
	InitialCapital      float64
	Start               time.Time
	End                 time.Time
	Frequency           Frequency
	RebalanceWeekday    time.Weekday
	TransactionCostRate float64
	WarmupDays          int

	Ranker     ranker.Config
	Reconciler rebalance.Config
}

func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %f", c.InitialCapital)
	}
	if !c.Start.Before(c.End) {
		return fmt.Errorf("start %s must precede end %s", c.Start.Format(time.DateOnly), c.End.Format(time.DateOnly))
	}
	if c.Frequency != Frequency_Weekly && c.Frequency != Frequency_Monthly {
		return fmt.Errorf("unknown rebalance frequency %q", c.Frequency)
	}
	if c.TransactionCostRate < 0 || c.TransactionCostRate >= 1 {
		return fmt.Errorf("transaction cost rate must be in [0, 1), got %f", c.TransactionCostRate)
	}
	if err := c.Ranker.Validate(); err != nil {
		return err
	}
	return c.Reconciler.Validate()
}

// RestrictionSource supplies the regulatory restriction list for a
// date. The zero value of StaticRestrictions means nothing restricted.
type RestrictionSource interface {
	GetRestrictions(ctx context.Context, date time.Time) ([]domain.Restriction, error)
}

type StaticRestrictions []domain.Restriction

func (s StaticRestrictions) GetRestrictions(_ context.Context, _ time.Time) ([]domain.Restriction, error) {
	return s, nil
}

type Input struct {
	// Prices must cover the warm-up window before Config.Start.
	Prices   domain.PriceTable
	Universe []string

	// Restrictions may be nil when no restriction feed applies.
	Restrictions RestrictionSource
}

type DailyValuation struct {
	Date     time.Time        `json:"date"`
	Value    float64          `json:"value"`
	Cash     decimal.Decimal  `json:"cash"`
	Holdings map[string]int64 `json:"holdings"`
}

// Result is created fresh per run and never mutated afterwards.
type Result struct {
	RunID     uuid.UUID                  `json:"runId"`
	Weights   domain.WeightTriple        `json:"weights"`
	Daily     []DailyValuation           `json:"daily"`
	Decisions []domain.RebalanceDecision `json:"decisions"`
	Trades    []domain.FilledTrade       `json:"trades"`
	Warnings  []string                   `json:"warnings"`
	Summary   *Summary                   `json:"summary"`
}

// Run executes one full backtest. A rebalance date that cannot be
// acted on (no eligible names, missing closes, unfundable plan) is
// skipped with a warning and the portfolio carries forward; a run that
// never produces a daily valuation series is a hard error.
func Run(ctx context.Context, in Input, cfg Config) (*Result, error) {
	log := logger.FromContext(ctx)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	if len(in.Universe) == 0 {
		return nil, fmt.Errorf("cannot backtest an empty universe")
	}

	rebalanceDates := map[string]bool{}
	switch cfg.Frequency {
	case Frequency_Weekly:
		for _, d := range util.WeekdaysBetween(cfg.Start, cfg.End, cfg.RebalanceWeekday) {
			rebalanceDates[d.Format(time.DateOnly)] = true
		}
	case Frequency_Monthly:
		for _, d := range util.MonthEndsBetween(cfg.Start, cfg.End) {
			rebalanceDates[d.Format(time.DateOnly)] = true
		}
	}

	tradingDays := tradingDays(in.Prices, in.Universe, cfg)
	if len(tradingDays) == 0 {
		return nil, fmt.Errorf("no price data for any trading day between %s and %s",
			cfg.Start.Format(time.DateOnly), cfg.End.Format(time.DateOnly))
	}

	result := &Result{
		RunID:     uuid.New(),
		Weights:   cfg.Ranker.Weights,
		Daily:     []DailyValuation{},
		Decisions: []domain.RebalanceDecision{},
		Warnings:  []string{},
	}

	// a rebalance date with no trading day at all still gets a warning
	tradingSet := map[string]bool{}
	for _, day := range tradingDays {
		tradingSet[day.Format(time.DateOnly)] = true
	}
	missed := []string{}
	for dateStr := range rebalanceDates {
		if !tradingSet[dateStr] {
			missed = append(missed, dateStr)
		}
	}
	sort.Strings(missed)
	for _, dateStr := range missed {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no trading data on rebalance date, carrying portfolio forward", dateStr))
	}

	ledger := NewLedger(decimal.NewFromFloat(cfg.InitialCapital))
	totalCost := decimal.Zero
	rebalanceCount := 0

	for _, day := range tradingDays {
		if rebalanceDates[day.Format(time.DateOnly)] {
			decision, cost, warnings, err := runRebalance(ctx, ledger, in, day, cfg)
			if err != nil {
				return nil, fmt.Errorf("rebalance on %s failed: %w", day.Format(time.DateOnly), err)
			}
			result.Warnings = append(result.Warnings, warnings...)
			if decision != nil {
				result.Decisions = append(result.Decisions, *decision)
				rebalanceCount++
				totalCost = totalCost.Add(cost)
			}
		}

		priceMap := closesOn(in.Prices, in.Universe, cfg, day)
		result.Daily = append(result.Daily, DailyValuation{
			Date:     day,
			Value:    ledger.MarketValue(priceMap),
			Cash:     ledger.Cash(),
			Holdings: holdingsSnapshot(ledger.Portfolio()),
		})
	}

	summary, err := Summarize(result.Daily, cfg.InitialCapital, totalCost, len(ledger.Trades()), rebalanceCount)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize backtest: %w", err)
	}
	result.Summary = summary
	result.Trades = ledger.Trades()

	log.Infow("backtest finished",
		"runId", result.RunID,
		"weights", cfg.Ranker.Weights.String(),
		"cagrPct", summary.CAGRPct,
		"maxDrawdownPct", summary.MaxDrawdownPct,
		"rebalances", rebalanceCount,
		"warnings", len(result.Warnings),
	)
	return result, nil
}

// runRebalance executes the full decision pipeline for one date. A nil
// decision with warnings means the date was skipped and the portfolio
// carried forward unchanged.
func runRebalance(ctx context.Context, ledger *Ledger, in Input, day time.Time, cfg Config) (*domain.RebalanceDecision, decimal.Decimal, []string, error) {
	dateStr := day.Format(time.DateOnly)
	warnings := []string{}

	restrictions := []domain.Restriction{}
	if in.Restrictions != nil {
		var err error
		restrictions, err = in.Restrictions.GetRestrictions(ctx, day)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: restriction list unavailable, carrying portfolio forward: %v", dateStr, err))
			return nil, decimal.Zero, warnings, nil
		}
	}
	eligible, excluded := universe.Filter(in.Universe, restrictions)
	if len(excluded) > 0 {
		warnings = append(warnings, fmt.Sprintf("%s: %d symbols excluded by restrictions", dateStr, len(excluded)))
	}

	strong := true
	if cfg.Reconciler.Regime.Enabled {
		var err error
		strong, err = rebalance.MarketStrong(in.Prices, eligible, day, cfg.Reconciler.Regime)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: regime check failed, carrying portfolio forward: %v", dateStr, err))
			return nil, decimal.Zero, warnings, nil
		}
	}

	ranked := []domain.RankedSymbol{}
	if strong {
		var err error
		ranked, err = ranker.Rank(in.Prices, eligible, day, cfg.Ranker)
		if err != nil {
			return nil, decimal.Zero, warnings, err
		}
		if len(ranked) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s: no rankable symbols, carrying portfolio forward", dateStr))
			return nil, decimal.Zero, warnings, nil
		}
	}

	decision, err := rebalance.Reconcile(rebalance.ReconcileInput{
		Portfolio:  ledger.Portfolio(),
		Ranked:     ranked,
		Prices:     in.Prices,
		Date:       day,
		WeakMarket: !strong,
		Config:     cfg.Reconciler,
	})
	if err != nil {
		return nil, decimal.Zero, warnings, err
	}
	warnings = append(warnings, decision.Warnings...)
	if decision.Empty() {
		return decision, decimal.Zero, warnings, nil
	}

	planInput, planWarnings := buildPlanInput(ledger.Portfolio(), *decision, in.Prices, day, cfg)
	warnings = append(warnings, planWarnings...)

	// every symbol the decision touches was dropped for missing closes
	if len(planInput.Removed) == 0 && len(planInput.Held) == 0 && len(planInput.New) == 0 && len(planWarnings) > 0 {
		warnings = append(warnings, fmt.Sprintf("%s: no prices for any decision symbol, carrying portfolio forward", dateStr))
		return nil, decimal.Zero, warnings, nil
	}

	plan, err := rebalance.PlanAllocation(planInput)
	if err != nil {
		if errors.Is(err, rebalance.ErrInsufficientCapital) {
			warnings = append(warnings, fmt.Sprintf("%s: %v, carrying portfolio forward", dateStr, err))
			return nil, decimal.Zero, warnings, nil
		}
		return nil, decimal.Zero, warnings, err
	}

	for _, trade := range plan.Trades {
		if err := ledger.Apply(trade, day); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: order not executed: %v", dateStr, err))
		}
	}

	return decision, plan.TransactionCost, warnings, nil
}

// buildPlanInput translates a decision into allocation entries at the
// day's closes. A symbol without a close that day is left alone with a
// warning; it stays in the book but outside the plan.
func buildPlanInput(portfolio domain.Portfolio, decision domain.RebalanceDecision, table domain.PriceTable, day time.Time, cfg Config) (rebalance.PlanInput, []string) {
	dateStr := day.Format(time.DateOnly)
	warnings := []string{}
	cashSymbol := cfg.Reconciler.CashSymbol

	planInput := rebalance.PlanInput{
		Cash:                portfolio.Cash,
		TransactionCostRate: cfg.TransactionCostRate,
	}

	entry := func(symbol string, quantity int64) (rebalance.Entry, bool) {
		price, ok := table.CloseOn(symbol, day)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s: no close for %s, leaving position untouched", dateStr, symbol))
			return rebalance.Entry{}, false
		}
		return rebalance.Entry{Symbol: symbol, Price: price, Quantity: quantity}, true
	}

	for _, symbol := range decision.Sells {
		position, held := portfolio.Positions[symbol]
		if !held {
			continue
		}
		if e, ok := entry(symbol, position.Quantity); ok {
			planInput.Removed = append(planInput.Removed, e)
		}
	}
	for _, symbol := range decision.Holds {
		if symbol == cashSymbol {
			continue
		}
		position, held := portfolio.Positions[symbol]
		if !held {
			continue
		}
		if e, ok := entry(symbol, position.Quantity); ok {
			planInput.Held = append(planInput.Held, e)
		}
	}
	for _, buy := range decision.Buys {
		if buy.Symbol == cashSymbol {
			if price, ok := table.CloseOn(cashSymbol, day); ok {
				planInput.CashSweep = &rebalance.Entry{Symbol: cashSymbol, Price: price}
			} else {
				warnings = append(warnings, fmt.Sprintf("%s: no close for %s, leaving position untouched", dateStr, cashSymbol))
			}
			continue
		}
		if e, ok := entry(buy.Symbol, 0); ok {
			e.Rank = buy.Rank
			planInput.New = append(planInput.New, e)
		}
	}
	// leftover always parks in the cash equivalent when it trades
	if planInput.CashSweep == nil && cashSymbol != "" {
		if price, ok := table.CloseOn(cashSymbol, day); ok {
			planInput.CashSweep = &rebalance.Entry{Symbol: cashSymbol, Price: price}
		}
	}

	return planInput, warnings
}

// tradingDays derives the daily grid from the benchmark series when
// present, otherwise from the union of universe dates.
func tradingDays(table domain.PriceTable, baseSymbols []string, cfg Config) []time.Time {
	benchmark := cfg.Reconciler.Regime.BenchmarkSymbol
	if benchmark != "" {
		if bars, ok := table[benchmark]; ok {
			days := []time.Time{}
			for _, bar := range bars {
				if util.DateLte(cfg.Start, bar.Date) && util.DateLte(bar.Date, cfg.End) {
					days = append(days, bar.Date)
				}
			}
			return days
		}
	}

	seen := map[string]time.Time{}
	for _, symbol := range baseSymbols {
		for _, bar := range table[symbol] {
			if util.DateLte(cfg.Start, bar.Date) && util.DateLte(bar.Date, cfg.End) {
				seen[bar.Date.Format(time.DateOnly)] = bar.Date
			}
		}
	}
	days := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func closesOn(table domain.PriceTable, baseSymbols []string, cfg Config, day time.Time) map[string]float64 {
	symbols := append([]string{}, baseSymbols...)
	if s := cfg.Reconciler.CashSymbol; s != "" {
		symbols = append(symbols, s)
	}
	if s := cfg.Reconciler.Regime.BenchmarkSymbol; s != "" {
		symbols = append(symbols, s)
	}

	priceMap := map[string]float64{}
	for _, symbol := range symbols {
		if price, ok := table.CloseOn(symbol, day); ok {
			priceMap[symbol] = price
		}
	}
	return priceMap
}

func holdingsSnapshot(portfolio domain.Portfolio) map[string]int64 {
	holdings := map[string]int64{}
	for symbol, position := range portfolio.Positions {
		holdings[symbol] = position.Quantity
	}
	return holdings
}
