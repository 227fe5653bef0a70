package http_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/core-coin/vaultminter/internal/dispatcher"
	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/logger"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 10 * time.Second
	// HealthCheckTimeout bounds each dependency check of /healthz
	HealthCheckTimeout = 3 * time.Second
)

// StatsProvider exposes the job counters served by /api/v1/stats.
type StatsProvider interface {
	Stats() map[string]dispatcher.QueueStats
}

// HealthCheck is a named dependency check reported by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HTTPServer is the HTTP server struct that will serve the ops API
type HTTPServer struct {
	// logger is the logger instance
	logger *logger.Logger

	// router is the HTTP router
	router *gin.Engine
	// port is the port on which the server will listen
	port int

	// server is the underlying HTTP server
	server *http.Server

	statsProvider StatsProvider
	checks        []HealthCheck
}

// corsMiddleware adds CORS headers to all responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// NewHTTPServer creates a new HTTP server instance
func NewHTTPServer(stats StatsProvider, port int, logger *logger.Logger, checks ...HealthCheck) models.APIServer {
	return newHTTPServer(stats, port, logger, checks...)
}

func newHTTPServer(stats StatsProvider, port int, logger *logger.Logger, checks ...HealthCheck) *HTTPServer {
	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware())

	server := &HTTPServer{
		router:        router,
		port:          port,
		logger:        logger,
		statsProvider: stats,
		checks:        checks,
	}

	// Define routes
	server.routes()

	return server
}

// Start starts the HTTP server
func (s *HTTPServer) Start() {
	addr := fmt.Sprintf("0.0.0.0:%v", s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Infow("Starting HTTP server", "address", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Fatal("Failed to start the HTTP server: ", err)
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}
