package http_api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/core-coin/vaultminter/internal/dispatcher"
)

// HealthResponse reports the state of every dependency check.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// StatsResponse wraps the per-queue job counters.
type StatsResponse struct {
	Queues map[string]dispatcher.QueueStats `json:"queues"`
}

// healthz is a handler for the /healthz endpoint.
// It answers 503 when any dependency check fails.
func (s *HTTPServer) healthz(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK

	for _, check := range s.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
		err := check.Check(ctx)
		cancel()

		if err != nil {
			s.logger.Warnw("Health check failed", "check", check.Name, "error", err)
			resp.Checks[check.Name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	c.JSON(status, resp)
}

// stats is a handler for the /api/v1/stats endpoint.
func (s *HTTPServer) stats(c *gin.Context) {
	if s.statsProvider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, StatsResponse{Queues: s.statsProvider.Stats()})
}
