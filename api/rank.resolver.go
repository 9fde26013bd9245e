package api

import (
	"context"
	"fmt"
	"time"

	"momentum/internal/logger"

	"github.com/gin-gonic/gin"
)

type RankResponse struct {
	AsOf    string         `json:"asOf"`
	Symbols []rankedSymbol `json:"symbols"`
}

type rankedSymbol struct {
	Symbol        string  `json:"symbol"`
	Rank          int     `json:"rank"`
	Composite     float64 `json:"composite"`
	ReturnRank    float64 `json:"returnRank"`
	RSIRank       float64 `json:"rsiRank"`
	ProximityRank float64 `json:"proximityRank"`
}

// rank returns today's composite ranking, or for ?asOf=YYYY-MM-DD any
// date the price history covers.
func (m ApiHandler) rank(c *gin.Context) {
	ctx := logger.AddToContext(context.Background(), logger.New())

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := c.Query("asOf"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			returnErrorJsonCode(fmt.Errorf("bad asOf date %q: %w", raw, err), c, 400)
			return
		}
		asOf = parsed
	}

	ranked, err := m.TradingService.Rank(ctx, asOf)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	response := RankResponse{
		AsOf:    asOf.Format(time.DateOnly),
		Symbols: make([]rankedSymbol, 0, len(ranked)),
	}
	for _, r := range ranked {
		response.Symbols = append(response.Symbols, rankedSymbol{
			Symbol:        r.Symbol,
			Rank:          r.Rank,
			Composite:     r.Composite,
			ReturnRank:    r.ReturnRank,
			RSIRank:       r.RSIRank,
			ProximityRank: r.ProximityRank,
		})
	}
	c.JSON(200, response)
}
