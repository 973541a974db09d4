package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJobs struct {
	mu    sync.Mutex
	calls map[string]int
	fail  error
}

func (c *countingJobs) hit(name string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[name]++
	return 1, c.fail
}

func (c *countingJobs) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *countingJobs) CompleteExpiredSeasons(context.Context) (int, error) { return c.hit("complete") }
func (c *countingJobs) AccrueWeeklyAnte(context.Context) (int, error)       { return c.hit("ante") }
func (c *countingJobs) EvaluateWeeklyTargets(context.Context) (int, error)  { return c.hit("evaluate") }

func TestJobsRunOnStart(t *testing.T) {
	jobs := &countingJobs{}
	logger, _ := test.NewNullLogger()
	s, err := New(jobs, Intervals{SweepEvery: time.Hour, AnteEvery: time.Hour}, logger)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"complete_expired_seasons", "evaluate_weekly_targets", "accrue_weekly_ante"}, s.JobNames())

	s.Start()
	defer func() { require.NoError(t, s.Shutdown()) }()

	assert.Eventually(t, func() bool {
		return jobs.count("complete") == 1 && jobs.count("ante") == 1 && jobs.count("evaluate") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJobFailureIsLogged(t *testing.T) {
	jobs := &countingJobs{fail: errors.New("store down")}
	logger, hook := test.NewNullLogger()
	s, err := New(jobs, Intervals{SweepEvery: time.Hour, AnteEvery: time.Hour}, logger)
	require.NoError(t, err)
	s.Start()
	defer func() { require.NoError(t, s.Shutdown()) }()

	assert.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.ErrorLevel && e.Data["job"] == "accrue_weekly_ante" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
