package service

import (
	"fmt"
	"io"
	"time"

	"momentum/internal/backtest"

	"github.com/gocarina/gocsv"
)

// ExportService writes backtest output as CSV for spreadsheet review.
type ExportService interface {
	ExportDailyValues(result *backtest.Result, w io.Writer) error
	ExportTrades(result *backtest.Result, w io.Writer) error
}

func NewExportService() ExportService {
	return exportServiceHandler{}
}

type exportServiceHandler struct{}

type dailyValueRow struct {
	Date  string  `csv:"date"`
	Value float64 `csv:"portfolio_value"`
	Cash  string  `csv:"cash"`
}

type tradeRow struct {
	Date      string `csv:"date"`
	Symbol    string `csv:"symbol"`
	Side      string `csv:"side"`
	Quantity  int64  `csv:"quantity"`
	FillPrice string `csv:"fill_price"`
	CashAfter string `csv:"cash_after"`
}

func (h exportServiceHandler) ExportDailyValues(result *backtest.Result, w io.Writer) error {
	rows := make([]dailyValueRow, 0, len(result.Daily))
	for _, d := range result.Daily {
		rows = append(rows, dailyValueRow{
			Date:  d.Date.Format(time.DateOnly),
			Value: d.Value,
			Cash:  d.Cash.StringFixed(2),
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to export daily values for run %s: %w", result.RunID, err)
	}
	return nil
}

func (h exportServiceHandler) ExportTrades(result *backtest.Result, w io.Writer) error {
	rows := make([]tradeRow, 0, len(result.Trades))
	for _, t := range result.Trades {
		rows = append(rows, tradeRow{
			Date:      t.FilledAt.Format(time.DateOnly),
			Symbol:    t.Symbol,
			Side:      string(t.Side),
			Quantity:  t.Quantity,
			FillPrice: fmt.Sprintf("%.2f", t.FillPrice),
			CashAfter: t.CashAfter.StringFixed(2),
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to export trades for run %s: %w", result.RunID, err)
	}
	return nil
}
