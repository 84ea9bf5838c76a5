// Package app wires the admin console together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/bissquit/finance-admin/internal/config"
	sessionredis "github.com/bissquit/finance-admin/internal/session/redis"
	settingspostgres "github.com/bissquit/finance-admin/internal/settings/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// App owns the console's listeners and the optional backends behind them.
type App struct {
	config *config.Config
	logger *slog.Logger

	// nil unless the matching backend is configured
	db          *pgxpool.Pool
	settingsDB  *settingspostgres.Repository
	revocations *sessionredis.Store

	// readiness probe of the finance API; apiBase is the root the apiclient resolved
	upstream *http.Client
	apiBase  string

	server        *http.Server
	metricsServer *http.Server
	stopWorkers   context.CancelFunc
}

// New builds the console from cfg. Configured backends are dialled here,
// so New fails fast when redis or postgres is unreachable.
func New(cfg *config.Config) (*App, error) {
	workers, stop := context.WithCancel(context.Background())

	a := &App{
		config:      cfg,
		logger:      newLogger(cfg.Log),
		stopWorkers: stop,
		upstream: &http.Client{
			Timeout:   2 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	handler, err := a.setupRouter(workers)
	if err != nil {
		stop()
		_ = a.closeBackends()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	a.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	return a, nil
}

// Router exposes the console handler to in-process tests.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Run serves the console until Shutdown. A metrics listener failure is
// logged but does not stop the console.
func (a *App) Run() error {
	go func() {
		a.logger.Info("metrics listener starting", "addr", a.metricsServer.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics listener failed", "error", err)
		}
	}()

	a.logger.Info("console starting", "addr", a.server.Addr, "api", a.config.API.BaseURL)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve console: %w", err)
	}
	return nil
}

// Shutdown drains both listeners, then closes the backends.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("console shutting down")
	a.stopWorkers()

	var g errgroup.Group
	g.Go(func() error {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown console: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown metrics: %w", err)
		}
		return nil
	})

	return errors.Join(g.Wait(), a.closeBackends())
}

// newLogger installs the process-wide logger. Unknown levels fall back to info.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
