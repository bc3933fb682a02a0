package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/magicwardrobe/history"
	mw "github.com/kasuganosora/magicwardrobe/middleware"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryHandler serves confirmed outfits.
type HistoryHandler struct {
	hist   *history.Service
	logger *zap.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(hist *history.Service, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{hist: hist, logger: logger}
}

// List handles GET /api/outfits?limit=N, newest first.
func (h *HistoryHandler) List(c *gin.Context) {
	limit := defaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	owner := mw.GetAccountID(c)
	entries, err := h.hist.List(c.Request.Context(), owner, limit)
	if err != nil {
		h.logger.Error("list outfits", zap.Int64("account_id", owner), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outfits": entries})
}
