// Package worker runs fire-and-forget background tasks on a fixed pool of
// goroutines. Tasks are keyed; a key already waiting in the queue is not
// queued twice.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is a unit of background work. Its error is logged and dropped.
type Task func(ctx context.Context) error

type job struct {
	key  string
	task Task
}

// Pool is a coalescing worker pool.
type Pool struct {
	logger  logrus.FieldLogger
	timeout time.Duration
	queue   chan job

	mu       sync.Mutex
	idle     *sync.Cond
	pending  map[string]bool
	inflight int
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts workers goroutines reading from a queue of size queueSize.
// Each task runs under timeout, zero meaning no limit.
func New(logger logrus.FieldLogger, workers, queueSize int, timeout time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		logger:  logger,
		timeout: timeout,
		queue:   make(chan job, queueSize),
		pending: make(map[string]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
	p.idle = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

// Enqueue schedules task under key. It returns false when the key is already
// queued, the queue is full, or the pool is stopped. It never blocks.
func (p *Pool) Enqueue(key string, task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if p.pending[key] {
		return false
	}
	select {
	case p.queue <- job{key: key, task: task}:
	default:
		p.logger.WithField("key", key).Warn("refresh queue full, dropping task")
		return false
	}
	p.pending[key] = true
	p.inflight++
	return true
}

// Drain blocks until every queued and running task has finished.
func (p *Pool) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.inflight > 0 {
		p.idle.Wait()
	}
}

// Stop cancels running tasks, discards queued ones and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for j := range p.queue {
		p.mu.Lock()
		delete(p.pending, j.key)
		p.mu.Unlock()

		if p.ctx.Err() == nil {
			p.run(j)
		}

		p.mu.Lock()
		p.inflight--
		if p.inflight == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

func (p *Pool) run(j job) {
	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{"key": j.key, "panic": r}).Error("background task panicked")
		}
	}()
	if err := j.task(ctx); err != nil {
		p.logger.WithError(err).WithField("key", j.key).Warn("background task failed")
	}
}
