package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
)

// NewRouter builds the route tree: the update triggers, status, health, and
// the prometheus scrape endpoint.
func NewRouter(mode string, h *Handlers, log logging.Logger) *gin.Engine {
	gin.SetMode(ginMode(mode))
	r := gin.New()
	r.Use(requestLogging(log), gin.Recovery())

	r.POST("/update", h.Update)
	r.POST("/update-lean", h.UpdateLean)
	r.GET("/status", h.Status)
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func ginMode(mode string) string {
	switch mode {
	case "debug":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}

// requestLogging logs every request with method, path, status, and latency.
// Health and metrics probes are skipped to keep the log readable.
func requestLogging(log logging.Logger) gin.HandlerFunc {
	logger := log.Named("http")
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/healthz" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("latency", time.Since(start)),
			logging.String("client_ip", c.ClientIP()),
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Error("request failed", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("request rejected", fields...)
		default:
			logger.Info("request served", fields...)
		}
	}
}
