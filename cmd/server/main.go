// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/heartline/internal/app"
	"github.com/jason-s-yu/heartline/internal/auth"
	"github.com/jason-s-yu/heartline/internal/config"
	"github.com/jason-s-yu/heartline/internal/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := newSessions(cfg)
	if err != nil {
		logger.Fatalf("failed to initialise session keys: %v", err)
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	srv := handlers.NewServer(handlers.Deps{
		Lobbies:        a.Lobbies,
		Snapshots:      a.Snapshots,
		Actors:         auth.NewResolver(a.Store),
		Tokens:         sessions,
		Logger:         logger,
		WatchPollEvery: cfg.WatchPollEvery,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", cfg.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server exited: %v", err)
		}
	case <-ctx.Done():
		logger.Info("terminating")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown failed: %v", err)
	}
	a.Pool.Drain()
}

// newSessions loads the signing keys from disk, or generates ephemeral ones
// when no key paths are configured.
func newSessions(cfg config.Config) (*auth.Sessions, error) {
	if cfg.JWTPrivateKeyPath != "" {
		return auth.NewSessionsFromPath(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenExpiry)
	}
	return auth.NewSessions(cfg.TokenExpiry)
}
