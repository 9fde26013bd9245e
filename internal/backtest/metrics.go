package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

// riskFreeRatePct feeds the Sharpe ratio. Matches the assumption the
// strategy has always been evaluated against.
const riskFreeRatePct = 6.0

type Summary struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`

	InitialCapital float64 `json:"initialCapital"`
	FinalValue     float64 `json:"finalValue"`

	TotalReturnPct float64 `json:"totalReturnPct"`
	CAGRPct        float64 `json:"cagrPct"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
	VolatilityPct  float64 `json:"volatilityPct"`
	SharpeRatio    float64 `json:"sharpeRatio"`

	// Adjusted figures net out accumulated transaction costs, which the
	// ledger itself does not deduct.
	AdjustedFinalValue float64 `json:"adjustedFinalValue"`
	AdjustedCAGRPct    float64 `json:"adjustedCagrPct"`

	TotalTrades          int             `json:"totalTrades"`
	RebalanceCount       int             `json:"rebalanceCount"`
	TotalTransactionCost decimal.Decimal `json:"totalTransactionCost"`
}

// Summarize derives the performance summary from the daily valuation
// series. Needs at least two days, a full run with fewer is a data
// coverage failure upstream.
func Summarize(daily []DailyValuation, initialCapital float64, transactionCost decimal.Decimal, trades, rebalances int) (*Summary, error) {
	if len(daily) < 2 {
		return nil, fmt.Errorf("cannot summarize %d daily valuations, need at least 2", len(daily))
	}

	start := daily[0]
	end := daily[len(daily)-1]

	returns := make([]float64, 0, len(daily)-1)
	for i := 1; i < len(daily); i++ {
		if daily[i-1].Value > 0 {
			returns = append(returns, (daily[i].Value-daily[i-1].Value)/daily[i-1].Value)
		}
	}
	// a sample stdev needs two observations; a two-day run has one return
	volatilityPct := 0.0
	if len(returns) >= 2 {
		stdev, err := stats.StandardDeviationSample(returns)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate return stdev: %w", err)
		}
		volatilityPct = stdev * math.Sqrt(252) * 100
	}

	years := end.Date.Sub(start.Date).Hours() / 24 / 365.25
	cagrPct := 0.0
	adjustedCAGRPct := 0.0
	adjustedFinal := end.Value - transactionCost.InexactFloat64()
	if years > 0 {
		cagrPct = (math.Pow(end.Value/initialCapital, 1/years) - 1) * 100
		adjustedCAGRPct = (math.Pow(adjustedFinal/initialCapital, 1/years) - 1) * 100
	}

	runningMax := daily[0].Value
	maxDrawdownPct := 0.0
	for _, d := range daily {
		if d.Value > runningMax {
			runningMax = d.Value
		}
		drawdown := (d.Value - runningMax) / runningMax * 100
		if drawdown < maxDrawdownPct {
			maxDrawdownPct = drawdown
		}
	}

	sharpe := 0.0
	if volatilityPct > 0 {
		sharpe = (cagrPct - riskFreeRatePct) / volatilityPct
	}

	return &Summary{
		StartDate:            start.Date,
		EndDate:              end.Date,
		InitialCapital:       initialCapital,
		FinalValue:           end.Value,
		TotalReturnPct:       (end.Value/initialCapital - 1) * 100,
		CAGRPct:              cagrPct,
		MaxDrawdownPct:       maxDrawdownPct,
		VolatilityPct:        volatilityPct,
		SharpeRatio:          sharpe,
		AdjustedFinalValue:   adjustedFinal,
		AdjustedCAGRPct:      adjustedCAGRPct,
		TotalTrades:          trades,
		RebalanceCount:       rebalances,
		TotalTransactionCost: transactionCost,
	}, nil
}
