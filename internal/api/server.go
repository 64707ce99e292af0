package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hustariz/rascarobingo/internal/lifecycle"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires the journal routes. Everything but /health and /metrics needs a bearer token.
func NewRouter(logger *zap.Logger, coord *lifecycle.Coordinator, jwtSecret []byte, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	logger = logger.Named("api")

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(logger, gin.Mode() == gin.DebugMode))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &Handler{logger: logger, coord: coord}
	authed := r.Group("/", Auth(jwtSecret))
	{
		authed.POST("/trades", h.CreateTrade)
		authed.GET("/trades", h.ListTrades)
		authed.GET("/trades/:id", h.GetTrade)
		authed.DELETE("/trades/:id", h.DeleteTrade)
		authed.POST("/trades/:id/status", h.CloseTrade)
		authed.GET("/risk-management", h.GetProfile)
		authed.POST("/risk-management/recalculate", h.Recalculate)
	}
	return r
}
