package devserver

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"mesa/internal/metrics"
)

func NewRouter(store *Store, logger *slog.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	reg := prometheus.NewRegistry()
	serverMetrics := metrics.NewServerMetrics(reg)

	r := gin.New()
	r.Use(Recovery(), Logging(logger), CountRequests(serverMetrics))

	h := NewHandler(store)
	r.GET("/api/orders", h.List)
	r.GET("/api/orders/:id", h.Get)
	r.PATCH("/api/orders/:id/state", h.UpdateState)
	r.DELETE("/api/orders/:id", h.Delete)

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/metrics", gin.WrapH(metrics.Handler(reg)))

	return r
}
