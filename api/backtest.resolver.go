package api

import (
	"context"
	"fmt"
	"time"

	"momentum/internal/backtest"
	"momentum/internal/logger"

	"github.com/gin-gonic/gin"
)

type BacktestRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`

	// Weights override the configured triple when all three are given.
	Weights *struct {
		Return    float64 `json:"return"`
		RSI       float64 `json:"rsi"`
		Proximity float64 `json:"proximity"`
	} `json:"weights"`

	InitialCapital *float64 `json:"initialCapital"`
}

type BacktestResponse struct {
	RunID    string            `json:"runId"`
	Summary  *backtest.Summary `json:"summary"`
	Warnings []string          `json:"warnings"`

	Daily []dailyValue `json:"daily"`
}

type dailyValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func (m ApiHandler) backtest(c *gin.Context) {
	ctx := logger.AddToContext(context.Background(), logger.New())

	var req BacktestRequest
	if err := c.BindJSON(&req); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to parse backtest request: %w", err), c, 400)
		return
	}

	cfg, err := m.backtestConfigFromRequest(req)
	if err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	result, err := m.BacktestService.Run(ctx, cfg, m.Config.Universe)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	response := BacktestResponse{
		RunID:    result.RunID.String(),
		Summary:  result.Summary,
		Warnings: result.Warnings,
		Daily:    make([]dailyValue, 0, len(result.Daily)),
	}
	for _, d := range result.Daily {
		response.Daily = append(response.Daily, dailyValue{
			Date:  d.Date.Format(time.DateOnly),
			Value: d.Value,
		})
	}
	c.JSON(200, response)
}

func (m ApiHandler) backtestConfigFromRequest(req BacktestRequest) (backtest.Config, error) {
	cfg, err := m.Config.BacktestRunConfig()
	if err != nil {
		return backtest.Config{}, err
	}

	if req.Start != "" {
		start, err := time.Parse(time.DateOnly, req.Start)
		if err != nil {
			return backtest.Config{}, fmt.Errorf("bad start date %q: %w", req.Start, err)
		}
		cfg.Start = start
	}
	if req.End != "" {
		end, err := time.Parse(time.DateOnly, req.End)
		if err != nil {
			return backtest.Config{}, fmt.Errorf("bad end date %q: %w", req.End, err)
		}
		cfg.End = end
	}
	if req.InitialCapital != nil {
		cfg.InitialCapital = *req.InitialCapital
	}
	if req.Weights != nil {
		cfg.Ranker.Weights.Return = req.Weights.Return
		cfg.Ranker.Weights.RSI = req.Weights.RSI
		cfg.Ranker.Weights.Proximity = req.Weights.Proximity
		if err := cfg.Ranker.Weights.Validate(); err != nil {
			return backtest.Config{}, err
		}
	}
	return cfg, nil
}
