package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/macross-trading/macross/internal/alpaca"
	"github.com/macross-trading/macross/internal/cache"
	"github.com/macross-trading/macross/internal/models"
)

// MarketHandler exposes read-mostly passthrough routes to the brokerage
// for the dashboard. These do not participate in the bot lifecycle.
type MarketHandler struct {
	Client *alpaca.Client
	Cache  *cache.Cache
	Logger *zap.Logger
}

// Register mounts the passthrough routes
func (h *MarketHandler) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/balance", h.balance)
	api.GET("/portfolio", h.portfolio)
	api.GET("/historical/:symbol", h.historical)
	api.GET("/news", h.news)
	api.GET("/orders", h.orders)
	api.POST("/order", h.placeOrder)
}

func (h *MarketHandler) balance(c *gin.Context) {
	account, err := h.Client.GetAccount(c.Request.Context())
	if err != nil {
		h.Logger.Error("failed to fetch balance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cash":         account.Cash,
		"buying_power": account.BuyingPower,
		"equity":       account.Equity,
	})
}

func (h *MarketHandler) portfolio(c *gin.Context) {
	positions, err := h.Client.GetPositions(c.Request.Context())
	if err != nil {
		h.Logger.Error("failed to fetch portfolio", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch portfolio"})
		return
	}

	c.JSON(http.StatusOK, positions)
}

func (h *MarketHandler) historical(c *gin.Context) {
	symbol := c.Param("symbol")
	cacheKey := "historical:" + symbol

	if cached, found := h.Cache.Get(cacheKey); found {
		c.JSON(http.StatusOK, cached)
		return
	}

	bars, err := h.Client.GetBars(c.Request.Context(), symbol, "1Day", 0)
	if err != nil {
		h.Logger.Error("failed to fetch historical data", zap.String("symbol", symbol), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch historical data"})
		return
	}

	payload := gin.H{"bars": bars}
	h.Cache.Set(cacheKey, payload)
	c.JSON(http.StatusOK, payload)
}

func (h *MarketHandler) news(c *gin.Context) {
	if cached, found := h.Cache.Get("news"); found {
		c.JSON(http.StatusOK, cached)
		return
	}

	news, err := h.Client.GetNews(c.Request.Context())
	if err != nil {
		h.Logger.Error("failed to fetch news", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch market news"})
		return
	}

	h.Cache.Set("news", news)
	c.JSON(http.StatusOK, news)
}

func (h *MarketHandler) orders(c *gin.Context) {
	orders, err := h.Client.GetOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.Logger.Error("failed to fetch orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (h *MarketHandler) placeOrder(c *gin.Context) {
	var req models.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order request: " + err.Error()})
		return
	}

	order, err := h.Client.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		h.Logger.Error("failed to place order", zap.String("symbol", req.Symbol), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to place order"})
		return
	}

	c.JSON(http.StatusOK, order)
}
