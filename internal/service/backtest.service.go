// Package service wires the decision engine to the outside world:
// price and restriction feeds on the way in, the broker, database, and
// CSV exports on the way out.
package service

import (
	"context"
	"fmt"
	"time"

	"momentum/internal/backtest"
	"momentum/internal/domain"
	"momentum/internal/logger"
	"momentum/internal/optimizer"
	"momentum/internal/repository"
)

type BacktestService interface {
	Run(ctx context.Context, cfg backtest.Config, universe []string) (*backtest.Result, error)
	OptimizeWeights(ctx context.Context, cfg backtest.Config, universe []string, optCfg optimizer.Config) (*optimizer.Report, error)
}

func NewBacktestService(
	priceRepository repository.PriceRepository,
	restrictionRepository repository.RestrictionRepository,
	backtestRunRepository repository.BacktestRunRepository,
) BacktestService {
	return backtestServiceHandler{
		PriceRepository:       priceRepository,
		RestrictionRepository: restrictionRepository,
		BacktestRunRepository: backtestRunRepository,
	}
}

type backtestServiceHandler struct {
	PriceRepository       repository.PriceRepository
	RestrictionRepository repository.RestrictionRepository

	// BacktestRunRepository may be nil; runs are then not persisted.
	BacktestRunRepository repository.BacktestRunRepository
}

func (h backtestServiceHandler) Run(ctx context.Context, cfg backtest.Config, universe []string) (*backtest.Result, error) {
	log := logger.FromContext(ctx)

	table, err := h.loadPrices(ctx, cfg, universe)
	if err != nil {
		return nil, err
	}

	result, err := backtest.Run(ctx, backtest.Input{
		Prices:       table,
		Universe:     universe,
		Restrictions: h.restrictionSource(),
	}, cfg)
	if err != nil {
		return nil, err
	}

	if h.BacktestRunRepository != nil {
		if err := h.BacktestRunRepository.Save(ctx, result); err != nil {
			log.Errorf("failed to persist backtest run %s: %v", result.RunID, err)
		}
	}
	return result, nil
}

// OptimizeWeights fetches price history once and replays the backtest
// per candidate triple, so the search cost is pure computation.
func (h backtestServiceHandler) OptimizeWeights(ctx context.Context, cfg backtest.Config, universe []string, optCfg optimizer.Config) (*optimizer.Report, error) {
	table, err := h.loadPrices(ctx, cfg, universe)
	if err != nil {
		return nil, err
	}
	restrictions := h.restrictionSource()

	eval := func(ctx context.Context, weights domain.WeightTriple) (float64, float64, error) {
		candidateCfg := cfg
		candidateCfg.Ranker.Weights = weights
		result, err := backtest.Run(ctx, backtest.Input{
			Prices:       table,
			Universe:     universe,
			Restrictions: restrictions,
		}, candidateCfg)
		if err != nil {
			return 0, 0, err
		}
		return result.Summary.CAGRPct, result.Summary.MaxDrawdownPct, nil
	}

	return optimizer.Optimize(ctx, eval, optCfg)
}

func (h backtestServiceHandler) loadPrices(ctx context.Context, cfg backtest.Config, universe []string) (domain.PriceTable, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("universe is empty")
	}

	warmup := cfg.WarmupDays
	if warmup <= 0 {
		warmup = backtest.DefaultWarmupDays
	}
	fetchStart := cfg.Start.AddDate(0, 0, -warmup)

	symbols := append([]string{}, universe...)
	if s := cfg.Reconciler.CashSymbol; s != "" {
		symbols = append(symbols, s)
	}
	if s := cfg.Reconciler.Regime.BenchmarkSymbol; s != "" {
		symbols = append(symbols, s)
	}

	table, err := h.PriceRepository.GetPrices(ctx, symbols, fetchStart, cfg.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices %s to %s: %w",
			fetchStart.Format(time.DateOnly), cfg.End.Format(time.DateOnly), err)
	}
	return table, nil
}

func (h backtestServiceHandler) restrictionSource() backtest.RestrictionSource {
	if h.RestrictionRepository == nil {
		return nil
	}
	return restrictionSourceAdapter{h.RestrictionRepository}
}

type restrictionSourceAdapter struct {
	repo repository.RestrictionRepository
}

func (a restrictionSourceAdapter) GetRestrictions(ctx context.Context, date time.Time) ([]domain.Restriction, error) {
	return a.repo.GetRestrictions(ctx, date)
}
