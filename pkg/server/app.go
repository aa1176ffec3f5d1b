package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"FinDash/internal/handler/ws"
	"FinDash/internal/usecase"
	"FinDash/pkg/cache"
	"FinDash/pkg/config"
	xhttp "FinDash/pkg/http"
	applogger "FinDash/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	store       *usecase.DashboardStore
	scheduler   *usecase.Scheduler
	broadcaster *ws.Broadcaster
	exporter    *usecase.EventExporter
	cache       cache.Service
	httpServer  *xhttp.Server
}

// New creates a new App instance with all dependencies.
// exporter and cache may be nil.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	store *usecase.DashboardStore,
	scheduler *usecase.Scheduler,
	broadcaster *ws.Broadcaster,
	exporter *usecase.EventExporter,
	c cache.Service,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		scheduler:   scheduler,
		broadcaster: broadcaster,
		exporter:    exporter,
		cache:       c,
		httpServer:  httpServer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is cancelled.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.exporter != nil {
		a.exporter.Start(runCtx)
		a.logger.Info("event export started", applogger.String("topic", a.cfg.Kafka.Topic))
	}

	if _, err := a.store.LoadInitialData(runCtx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	// Ticks start only once the first snapshot exists
	go a.scheduler.Run(runCtx)

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		cancel()
		_ = a.shutdown()
		return err
	}
	a.logger.Info("findash started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
	)

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops components in dependency order: intake first, then workers, then sinks.
func (a *App) shutdown() error {
	a.logger.Info("shutting down...")
	timeout := a.httpServer.ShutdownTimeout()

	httpCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.httpServer.Stop(httpCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	a.broadcaster.Shutdown()

	taskCtx, cancelTasks := context.WithTimeout(context.Background(), timeout)
	defer cancelTasks()
	if err := a.scheduler.Shutdown(taskCtx); err != nil {
		a.logger.Warn("pending tasks abandoned", applogger.Error(err))
	}

	if a.exporter != nil {
		exportCtx, cancelExport := context.WithTimeout(context.Background(), timeout)
		defer cancelExport()
		if err := a.exporter.Stop(exportCtx); err != nil {
			a.logger.Warn("event exporter stop error", applogger.Error(err))
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("cache close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
