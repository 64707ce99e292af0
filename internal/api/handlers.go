package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hustariz/rascarobingo/internal/id"
	"github.com/hustariz/rascarobingo/internal/lifecycle"
	"github.com/hustariz/rascarobingo/internal/models"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusRequest is the body of POST /trades/:id/status.
type StatusRequest struct {
	Status     string   `json:"status" binding:"required"`
	ProfitLoss *float64 `json:"profitLoss"`
	ExitPrice  *float64 `json:"exitPrice"`
}

// Handler serves the journal endpoints on behalf of the authenticated user.
type Handler struct {
	logger *zap.Logger
	coord  *lifecycle.Coordinator
}

func (h *Handler) CreateTrade(c *gin.Context) {
	var in lifecycle.NewTrade
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, fmt.Errorf("%w: %w", lifecycle.ErrValidation, err))
		return
	}
	trade, err := h.coord.CreateTrade(c.Request.Context(), userID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (h *Handler) ListTrades(c *gin.Context) {
	trades, err := h.coord.ListTrades(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	c.JSON(http.StatusOK, trades)
}

func (h *Handler) GetTrade(c *gin.Context) {
	tradeID, ok := h.tradeID(c)
	if !ok {
		return
	}
	trade, err := h.coord.GetTrade(c.Request.Context(), tradeID, userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (h *Handler) DeleteTrade(c *gin.Context) {
	tradeID, ok := h.tradeID(c)
	if !ok {
		return
	}
	if err := h.coord.DeleteTrade(c.Request.Context(), tradeID, userID(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CloseTrade moves a trade to TARGET_HIT, STOPLOSS_HIT or CLOSED.
func (h *Handler) CloseTrade(c *gin.Context) {
	tradeID, ok := h.tradeID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %w", lifecycle.ErrValidation, err))
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		h.fail(c, fmt.Errorf("%w: %w", lifecycle.ErrInvalidStatus, err))
		return
	}

	res, err := h.coord.CloseTrade(c.Request.Context(), tradeID, userID(c), lifecycle.CloseRequest{
		Status:     status,
		ProfitLoss: req.ProfitLoss,
		ExitPrice:  req.ExitPrice,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.coord.GetProfile(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) Recalculate(c *gin.Context) {
	profile, err := h.coord.Recalculate(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// tradeID returns the :id path parameter. A malformed id is answered with 404.
func (h *Handler) tradeID(c *gin.Context) (string, bool) {
	tradeID := c.Param("id")
	if !id.Valid(tradeID) {
		h.fail(c, fmt.Errorf("trade %q: %w", tradeID, lifecycle.ErrNotFound))
		return "", false
	}
	return tradeID, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := httpStatus(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed, nothing was changed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("user_id", userID(c)),
			zap.Error(err))
		msg = "internal error, nothing was changed"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Code: lifecycle.Code(err), Message: msg})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrDailyLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, lifecycle.ErrInvalidStatus), errors.Is(err, lifecycle.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
