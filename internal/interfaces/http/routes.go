package http

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api/v1")
	{
		api.POST("/sessions", handler.OpenSession)
		api.DELETE("/sessions/:id", handler.CloseSession)

		api.GET("/portfolios", handler.ListPortfolios)
		api.GET("/portfolios/:id", handler.GetPortfolio)
		api.POST("/portfolios/:id/trades", handler.ExecuteTrade)
		api.POST("/portfolios/:id/trades/batch", handler.ExecuteTradesBatch)
		api.GET("/portfolios/:id/trades", handler.ListTrades)

		api.GET("/assets", handler.ListAssets)
		api.POST("/prices/refresh", handler.RefreshPrices)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
