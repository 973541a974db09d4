// cmd/worker/main.go runs the season cron jobs: expired season sweeps, weekly
// ante accrual and weekly target evaluation.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/heartline/internal/app"
	"github.com/jason-s-yu/heartline/internal/config"
	"github.com/jason-s-yu/heartline/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.NewLogger()
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("the worker shares no state with the server when both use the in-memory store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	sched, err := scheduler.New(a.Lobbies, scheduler.Intervals{
		SweepEvery: cfg.SweepEvery,
		AnteEvery:  cfg.AnteEvery,
	}, logger)
	if err != nil {
		logger.Fatalf("failed to schedule jobs: %v", err)
	}
	sched.Start()
	logger.WithField("jobs", sched.JobNames()).Info("scheduler started")

	<-ctx.Done()
	logger.Info("terminating")
	if err := sched.Shutdown(); err != nil {
		logger.Warnf("scheduler shutdown failed: %v", err)
	}
	a.Pool.Drain()
}
