package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAndDrains(t *testing.T) {
	p := New(logrus.New(), 2, 8, time.Second)
	defer p.Stop()

	var n atomic.Int32
	for _, key := range []string{"a", "b", "c"} {
		require.True(t, p.Enqueue(key, func(context.Context) error {
			n.Add(1)
			return nil
		}))
	}
	p.Drain()
	assert.Equal(t, int32(3), n.Load())
}

func TestPoolCoalescesQueuedKeys(t *testing.T) {
	p := New(logrus.New(), 1, 8, 0)
	defer p.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.Enqueue("block", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	var n atomic.Int32
	inc := func(context.Context) error { n.Add(1); return nil }
	assert.True(t, p.Enqueue("lobby", inc))
	assert.False(t, p.Enqueue("lobby", inc), "a queued key is not queued twice")

	close(release)
	p.Drain()
	assert.Equal(t, int32(1), n.Load())

	// once it ran the key can be queued again
	assert.True(t, p.Enqueue("lobby", inc))
	p.Drain()
	assert.Equal(t, int32(2), n.Load())
}

func TestPoolLogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := New(logger, 1, 4, 0)
	defer p.Stop()

	p.Enqueue("bad", func(context.Context) error { return errors.New("boom") })
	p.Enqueue("panic", func(context.Context) error { panic("oops") })
	p.Drain()

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.WarnLevel, hook.AllEntries()[0].Level)
	assert.Equal(t, logrus.ErrorLevel, hook.AllEntries()[1].Level)
}

func TestPoolRejectsAfterStop(t *testing.T) {
	p := New(logrus.New(), 1, 1, 0)
	p.Stop()
	assert.False(t, p.Enqueue("x", func(context.Context) error { return nil }))
	p.Drain()
}
