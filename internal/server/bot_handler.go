package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/macross-trading/macross/internal/bot"
)

// BotHandler exposes the bot lifecycle control surface
type BotHandler struct {
	Manager *bot.Manager
	Logger  *zap.Logger
}

// Register mounts the bot routes
func (h *BotHandler) Register(r *gin.Engine) {
	api := r.Group("/api/bot")
	api.POST("/start", h.start)
	api.POST("/stop", h.stop)
	api.GET("/status", h.status)
}

func (h *BotHandler) start(c *gin.Context) {
	var params bot.StartParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body: " + err.Error()})
		return
	}

	message, err := h.Manager.Start(c.Request.Context(), params)
	if err != nil {
		status := http.StatusInternalServerError
		if isClientError(err) {
			status = http.StatusBadRequest
		} else {
			h.Logger.Error("bot start failed", zap.Error(err))
		}
		c.JSON(status, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

func (h *BotHandler) stop(c *gin.Context) {
	if err := h.Manager.Stop(c.Request.Context()); err != nil {
		if errors.Is(err, bot.ErrNotRunning) {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		h.Logger.Error("bot stop failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "bot stopped successfully"})
}

func (h *BotHandler) status(c *gin.Context) {
	snapshot, err := h.Manager.Status(c.Request.Context())
	if err != nil {
		h.Logger.Error("bot status failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	// The dashboard contract: a bare false when nothing is running
	if snapshot == nil {
		c.JSON(http.StatusOK, false)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// isClientError reports whether err is the caller's fault (400) rather
// than ours (500)
func isClientError(err error) bool {
	var verr *bot.ValidationError
	var serr *bot.InvalidSymbolError
	return errors.As(err, &verr) ||
		errors.As(err, &serr) ||
		errors.Is(err, bot.ErrAlreadyRunning) ||
		errors.Is(err, bot.ErrNotRunning)
}
