package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/macross-trading/macross/internal/alpaca"
	"github.com/macross-trading/macross/internal/bot"
	"github.com/macross-trading/macross/internal/cache"
)

// New builds the gin engine with all routes registered
func New(logger *zap.Logger, manager *bot.Manager, client *alpaca.Client, dataCache *cache.Cache) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	botHandler := &BotHandler{Manager: manager, Logger: logger.With(zap.String("component", "bot_handler"))}
	botHandler.Register(engine)

	marketHandler := &MarketHandler{Client: client, Cache: dataCache, Logger: logger.With(zap.String("component", "market_handler"))}
	marketHandler.Register(engine)

	return engine
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
