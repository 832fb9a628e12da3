// Package api serves the ops HTTP surface: health, status, budget, and
// goal endpoints plus the Prometheus scrape target.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/director"
	"github.com/maestrohq/maestro/pkg/events"
	"github.com/maestrohq/maestro/pkg/health"
	"github.com/maestrohq/maestro/pkg/queue"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// Deps bundles the server's collaborators. Pool, Director, and Bus are
// optional; their endpoints degrade gracefully when nil.
type Deps struct {
	Config   *config.Config
	WS       workspace.Workspace
	Tracker  *budget.Tracker
	Monitor  *health.Monitor
	Pool     *queue.WorkerPool
	Director *director.Director
	Bus      *events.Bus
}

// Server is the ops HTTP API.
type Server struct {
	deps Deps
	http *http.Server
	log  *slog.Logger
}

// NewServer creates the server and registers its routes.
func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		deps: deps,
		log:  slog.With("component", "api"),
	}

	v1 := router.Group("/api/v1")
	v1.GET("/health", s.handleHealth)
	v1.GET("/status", s.handleStatus)
	v1.GET("/budget", s.handleBudget)
	v1.GET("/goals", s.handleListGoals)
	v1.GET("/goals/:id", s.handleGetGoal)
	v1.POST("/goals", s.handleCreateGoal)
	v1.POST("/events", s.handleEmitEvent)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.http = &http.Server{
		Addr:              deps.Config.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown. Blocks; run it on its own goroutine.
func (s *Server) Start() error {
	s.log.Info("API server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for httptest-based tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// requestLogger logs one line per request at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
