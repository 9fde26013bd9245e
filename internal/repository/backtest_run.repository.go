package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"momentum/internal/backtest"
	"momentum/internal/domain"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// BacktestRunRepository persists completed backtest runs so weight
// experiments can be compared later without replaying them.
type BacktestRunRepository interface {
	Save(ctx context.Context, result *backtest.Result) error
	Get(ctx context.Context, runID uuid.UUID) (*BacktestRunRecord, error)
	List(ctx context.Context, limit int) ([]BacktestRunRecord, error)
}

type BacktestRunRecord struct {
	RunID     uuid.UUID
	CreatedAt time.Time
	Weights   domain.WeightTriple

	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	FinalValue     float64
	CAGRPct        float64
	MaxDrawdownPct float64
	SharpeRatio    float64
	TotalTrades    int
	RebalanceCount int
}

func NewBacktestRunRepository(db *sql.DB) BacktestRunRepository {
	return &backtestRunRepositoryHandler{db: db}
}

type backtestRunRepositoryHandler struct {
	db *sql.DB
}

func (h backtestRunRepositoryHandler) Save(ctx context.Context, result *backtest.Result) error {
	if result.Summary == nil {
		return fmt.Errorf("cannot save backtest run %s without a summary", result.RunID)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	s := result.Summary
	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_run (
			run_id, created_at,
			weight_return, weight_rsi, weight_proximity,
			start_date, end_date, initial_capital, final_value,
			cagr_pct, max_drawdown_pct, sharpe_ratio,
			total_trades, rebalance_count
		) VALUES ($1, now(), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		result.RunID,
		result.Weights.Return, result.Weights.RSI, result.Weights.Proximity,
		s.StartDate, s.EndDate, s.InitialCapital, s.FinalValue,
		s.CAGRPct, s.MaxDrawdownPct, s.SharpeRatio,
		s.TotalTrades, s.RebalanceCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert backtest run %s: %w", result.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_run_valuation (run_id, date, value, cash)
		VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("failed to prepare valuation insert: %w", err)
	}
	defer stmt.Close()
	for _, d := range result.Daily {
		if _, err := stmt.ExecContext(ctx, result.RunID, d.Date, d.Value, d.Cash); err != nil {
			return fmt.Errorf("failed to insert valuation for %s on %s: %w",
				result.RunID, d.Date.Format(time.DateOnly), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit backtest run %s: %w", result.RunID, err)
	}
	return nil
}

const backtestRunColumns = `
	run_id, created_at,
	weight_return, weight_rsi, weight_proximity,
	start_date, end_date, initial_capital, final_value,
	cagr_pct, max_drawdown_pct, sharpe_ratio,
	total_trades, rebalance_count`

func (h backtestRunRepositoryHandler) Get(ctx context.Context, runID uuid.UUID) (*BacktestRunRecord, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT `+backtestRunColumns+` FROM backtest_run WHERE run_id = $1`, runID)
	record, err := scanBacktestRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("backtest run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest run %s: %w", runID, err)
	}
	return record, nil
}

func (h backtestRunRepositoryHandler) List(ctx context.Context, limit int) ([]BacktestRunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT `+backtestRunColumns+` FROM backtest_run ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list backtest runs: %w", err)
	}
	defer rows.Close()

	records := []BacktestRunRecord{}
	for rows.Next() {
		record, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBacktestRun(row rowScanner) (*BacktestRunRecord, error) {
	record := &BacktestRunRecord{}
	err := row.Scan(
		&record.RunID, &record.CreatedAt,
		&record.Weights.Return, &record.Weights.RSI, &record.Weights.Proximity,
		&record.StartDate, &record.EndDate, &record.InitialCapital, &record.FinalValue,
		&record.CAGRPct, &record.MaxDrawdownPct, &record.SharpeRatio,
		&record.TotalTrades, &record.RebalanceCount,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}
