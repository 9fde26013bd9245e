package api

import (
	"context"

	"momentum/internal/logger"
	"momentum/internal/optimizer"

	"github.com/gin-gonic/gin"
)

type OptimizeRequest struct {
	GridStep         *float64 `json:"gridStep"`
	MaxDrawdownFloor *float64 `json:"maxDrawdownFloor"`
	Refine           *bool    `json:"refine"`
}

type OptimizeResponse struct {
	Best        *optimizer.Candidate  `json:"best"`
	Candidates  []optimizer.Candidate `json:"candidates"`
	Evaluations int                   `json:"evaluations"`
}

// optimize runs the full weight search synchronously. With a fine grid
// this takes minutes; callers are expected to know that.
func (m ApiHandler) optimize(c *gin.Context) {
	ctx := logger.AddToContext(context.Background(), logger.New())

	var req OptimizeRequest
	if err := c.BindJSON(&req); err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	optCfg := m.Config.OptimizerConfig()
	if req.GridStep != nil {
		optCfg.GridStep = *req.GridStep
	}
	if req.MaxDrawdownFloor != nil {
		optCfg.MaxDrawdownFloor = *req.MaxDrawdownFloor
	}
	if req.Refine != nil {
		optCfg.Refine = *req.Refine
	}

	cfg, err := m.Config.BacktestRunConfig()
	if err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	report, err := m.BacktestService.OptimizeWeights(ctx, cfg, m.Config.Universe, optCfg)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, OptimizeResponse{
		Best:        report.Best,
		Candidates:  report.Candidates,
		Evaluations: report.Evaluations,
	})
}
