// Package app wires the stores, caches and services shared by the binaries.
package app

import (
	"context"
	"time"

	"github.com/jason-s-yu/heartline/internal/cache"
	"github.com/jason-s-yu/heartline/internal/config"
	"github.com/jason-s-yu/heartline/internal/database"
	"github.com/jason-s-yu/heartline/internal/lobby"
	"github.com/jason-s-yu/heartline/internal/memstore"
	"github.com/jason-s-yu/heartline/internal/snapshot"
	"github.com/jason-s-yu/heartline/internal/worker"
	"github.com/sirupsen/logrus"
)

// refreshTimeout bounds one background snapshot refresh.
const refreshTimeout = 10 * time.Second

// App holds the wired services. Close releases them in reverse order.
type App struct {
	Store     lobby.Store
	Snapshots *snapshot.Service
	Lobbies   *lobby.Service
	Pool      *worker.Pool

	closers []func()
}

// Build opens the configured backends. A postgres backend without a
// DATABASE_URL starts in a degraded mode where every store call reports
// BackendUnavailable.
func Build(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*App, error) {
	a := &App{}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using the in-memory store; data is lost on exit")
		a.Store = memstore.New()
	default:
		if cfg.DatabaseURL == "" {
			logger.Warn("DATABASE_URL is not set; store calls will fail with BACKEND_UNAVAILABLE")
			a.Store = database.NewStore(nil)
			break
		}
		pool, err := database.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		store := database.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Store = store
	}

	var snapshots snapshot.Cache
	switch cfg.CacheBackend {
	case config.BackendMemory:
		snapshots = cache.NewMemorySnapshotCache()
	default:
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		snapshots = cache.NewRedisSnapshotCache(rdb, cfg.CachePrefix)
		logger.WithField("addr", cfg.RedisAddr).Info("connected to redis")
	}

	a.Pool = worker.New(logger.WithField("component", "refresh"), cfg.RefreshWorkers, cfg.RefreshQueueSize, refreshTimeout)
	a.closers = append(a.closers, a.Pool.Stop)

	recon := snapshot.NewReconciler(a.Store, cfg.MaxLives, cfg.HistoryFeedLimit)
	a.Snapshots = snapshot.NewService(recon, snapshots, a.Pool, snapshot.NewHub(), logger, cfg.AllowDebugSnapshot)
	a.Lobbies = lobby.NewService(a.Store, a.Snapshots, logger, lobby.Options{
		MaxLives:     cfg.MaxLives,
		HistoryLimit: cfg.HistoryFeedLimit,
	})
	return a, nil
}

// Close stops the refresh pool and closes the backends.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
