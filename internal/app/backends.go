package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/finance-admin/internal/pkg/metrics"
	"github.com/bissquit/finance-admin/internal/pkg/postgres"
	"github.com/bissquit/finance-admin/internal/session"
	sessionredis "github.com/bissquit/finance-admin/internal/session/redis"
	"github.com/bissquit/finance-admin/internal/settings"
	settingspostgres "github.com/bissquit/finance-admin/internal/settings/postgres"
)

const (
	redisDialTimeout = 10 * time.Second
	poolStatsEvery   = 15 * time.Second
)

// revocationStore picks where revoked session IDs live. Memory is per
// replica; redis shares revocations across replicas.
func (a *App) revocationStore(ctx context.Context) (session.RevocationStore, error) {
	cfg := a.config.Session

	if cfg.Revocation.Backend != "redis" {
		a.logger.Info("session revocations kept in memory")
		return session.NewMemoryStore(cfg.MaxAge), nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()

	store, err := sessionredis.Connect(dialCtx, cfg.Revocation.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.revocations = store
	a.logger.Info("session revocations kept in redis")
	return store, nil
}

// settingsRepository returns the in-memory repository unless postgres is
// configured, in which case the schema is migrated before the pool opens.
func (a *App) settingsRepository(ctx context.Context) (settings.Repository, error) {
	cfg := a.config

	if cfg.Settings.Backend != "postgres" {
		return settings.NewMemoryRepository(), nil
	}

	if err := settingspostgres.Migrate(cfg.Database.URL); err != nil {
		return nil, fmt.Errorf("migrate settings database: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()

	pool, err := postgres.Connect(dialCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to settings database: %w", err)
	}
	a.db = pool
	a.settingsDB = settingspostgres.NewRepository(pool)

	go a.reportPoolStats(ctx)

	return a.settingsDB, nil
}

func (a *App) reportPoolStats(ctx context.Context) {
	ticker := time.NewTicker(poolStatsEvery)
	defer ticker.Stop()

	for {
		metrics.RecordDBPoolMetrics(a.db)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) closeBackends() error {
	var errs []error
	if a.revocations != nil {
		if err := a.revocations.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	return errors.Join(errs...)
}
