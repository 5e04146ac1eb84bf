package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	_ "github.com/lib/pq"

	"paperdigest/internal/config"
	"paperdigest/internal/infrastructure/httpapi"
	"paperdigest/internal/infrastructure/parser"
	"paperdigest/internal/infrastructure/revalidate"
	"paperdigest/internal/infrastructure/scheduler"
	"paperdigest/internal/infrastructure/storage"
	"paperdigest/internal/logging"
	"paperdigest/internal/ports"
	"paperdigest/internal/scanner"
	"paperdigest/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	scheduler *usecase.Scheduler
	server    *http.Server
}

// New builds a runnable application instance: store, sources, pipeline,
// scheduler, and HTTP trigger, constructed once and passed down.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := storage.NewPostgresStore(db, baseLogger.With("component", "storage"))

	httpClient := &http.Client{Timeout: 30 * time.Second}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivScanner(httpClient, clock.WallClock, parser.ArxivOptions{
		PageSize:  cfg.Fetch.PageSize,
		Delay:     cfg.Fetch.Delay(),
		UserAgent: cfg.Fetch.UserAgent,
	}, baseLogger.With("component", "scanner.arxiv")))
	registry.Register(parser.NewRSSScanner(httpClient, clock.WallClock, cfg.Fetch.UserAgent,
		baseLogger.With("component", "scanner.rss")))

	source := parser.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))

	var revalidator ports.Revalidator
	if cfg.Revalidate.URL != "" {
		revalidator = revalidate.NewClient(cfg.Revalidate.URL, cfg.Revalidate.Secret)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:           source,
		Store:            store,
		Revalidator:      revalidator,
		Logger:           baseLogger.With("component", "pipeline"),
		Location:         cfg.Scheduler.Location(),
		FetchWindow:      cfg.Fetch.Window(),
		PopularityWindow: cfg.Digest.PopularityWindow(),
		PerTopicLimit:    cfg.Digest.PerTopicLimit,
	})

	cronDriver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	sched := usecase.NewScheduler(cronDriver, pipeline, baseLogger.With("component", "scheduler"))

	gin.SetMode(gin.ReleaseMode)
	api := httpapi.NewServer(pipeline, cfg.Server.CronKey, baseLogger.With("component", "http"))
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		scheduler: sched,
		server:    server,
	}, nil
}

// Run starts the cron scheduler and the HTTP trigger, then blocks until the
// context is cancelled and tears both down.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.Server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown failed", "error", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop failed", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close failed", "error", err)
	}

	return nil
}
