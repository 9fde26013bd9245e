// Package api exposes the decision engine over HTTP: rank the universe
// on demand, run backtests, and kick off weight searches.
package api

import (
	"fmt"

	"momentum/internal/config"
	"momentum/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ApiHandler struct {
	Config          *config.Config
	BacktestService service.BacktestService
	TradingService  service.TradingService
	ExportService   service.ExportService
}

func (m ApiHandler) StartApi(port int) error {
	router := gin.Default()
	router.Use(cors.Default())

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "momentum decision engine"})
	})
	router.GET("/rank", m.rank)
	router.POST("/backtest", m.backtest)
	router.POST("/optimize", m.optimize)

	return router.Run(fmt.Sprintf(":%d", port))
}

func returnErrorJson(err error, c *gin.Context) {
	zap.S().Error(err.Error())
	c.AbortWithStatusJSON(500, gin.H{
		"error": err.Error(),
	})
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	zap.S().Error(err.Error())
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}
