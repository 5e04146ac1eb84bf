package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"paperdigest/internal/domain"
)

const cronKeyHeader = "x-cron-key"

// Runner executes one ingestion pass; implemented by the usecase pipeline.
type Runner interface {
	Run(ctx context.Context, now time.Time, reason string) (domain.RunResult, error)
}

// Server exposes the manual trigger endpoint over HTTP.
type Server struct {
	engine  *gin.Engine
	runner  Runner
	cronKey string
	logger  *slog.Logger
}

// NewServer builds the gin engine and registers routes. An empty cronKey
// disables trigger authentication. Gin's global mode is left to the caller.
func NewServer(runner Runner, cronKey string, logger *slog.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, runner: runner, cronKey: cronKey, logger: logger}
	s.registerRoutes()
	return s
}

// Handler exposes the underlying http.Handler for the app and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.health)
	s.engine.POST("/api/ingest/run", s.runIngest)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// runIngest triggers one pipeline run. Auth is rejected before any work
// begins, so a bad key leaves no partial side effects.
func (s *Server) runIngest(c *gin.Context) {
	if s.cronKey != "" && c.GetHeader(cronKeyHeader) != s.cronKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	// The body is optional; a missing or malformed one is not an error.
	_ = c.ShouldBindJSON(&body)

	result, err := s.runner.Run(c.Request.Context(), time.Now(), body.Reason)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("ingestion run failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}
