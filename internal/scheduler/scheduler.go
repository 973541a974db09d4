// Package scheduler registers the season cron jobs with gocron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Jobs are the scheduled lobby operations. Each returns how many lobbies it changed.
type Jobs interface {
	CompleteExpiredSeasons(ctx context.Context) (int, error)
	AccrueWeeklyAnte(ctx context.Context) (int, error)
	EvaluateWeeklyTargets(ctx context.Context) (int, error)
}

// Intervals sets how often each job runs. Zero values default to SweepEvery
// of five minutes and AnteEvery of one hour.
type Intervals struct {
	SweepEvery time.Duration
	AnteEvery  time.Duration
	// RunTimeout bounds one execution of a job.
	RunTimeout time.Duration
}

type Scheduler struct {
	sched  gocron.Scheduler
	logger logrus.FieldLogger
}

// New builds a scheduler with every job registered. Nothing runs before Start.
func New(jobs Jobs, iv Intervals, logger logrus.FieldLogger, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	if iv.SweepEvery <= 0 {
		iv.SweepEvery = 5 * time.Minute
	}
	if iv.AnteEvery <= 0 {
		iv.AnteEvery = time.Hour
	}
	if iv.RunTimeout <= 0 {
		iv.RunTimeout = time.Minute
	}
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s := &Scheduler{sched: sched, logger: logger}

	defs := []struct {
		name  string
		every time.Duration
		run   func(context.Context) (int, error)
	}{
		{"complete_expired_seasons", iv.SweepEvery, jobs.CompleteExpiredSeasons},
		{"evaluate_weekly_targets", iv.SweepEvery, jobs.EvaluateWeeklyTargets},
		{"accrue_weekly_ante", iv.AnteEvery, jobs.AccrueWeeklyAnte},
	}
	for _, d := range defs {
		_, err := sched.NewJob(
			gocron.DurationJob(d.every),
			gocron.NewTask(s.wrap(d.name, iv.RunTimeout, d.run)),
			gocron.WithName(d.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to register %s: %w", d.name, err)
		}
	}
	return s, nil
}

// wrap turns a job into a gocron task that logs its outcome.
func (s *Scheduler) wrap(name string, timeout time.Duration, run func(context.Context) (int, error)) func(context.Context) {
	return func(parent context.Context) {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		start := time.Now()
		n, err := run(ctx)
		log := s.logger.WithFields(logrus.Fields{
			"job":      name,
			"lobbies":  n,
			"duration": time.Since(start),
		})
		if err != nil {
			log.WithError(err).Error("scheduled job failed")
			return
		}
		if n > 0 {
			log.Info("scheduled job applied")
		} else {
			log.Debug("scheduled job found nothing to do")
		}
	}
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown stops scheduling and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	var names []string
	for _, j := range s.sched.Jobs() {
		names = append(names, j.Name())
	}
	return names
}
