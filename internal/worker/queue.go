// Package worker runs post-commit jobs on a bounded pool of goroutines.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by Shutdown when called twice.
var ErrClosed = errors.New("worker queue closed")

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Queue is a fixed-size worker pool fed by a bounded buffer.
type Queue struct {
	jobs       chan job
	workers    int
	jobTimeout time.Duration
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Config sizes the pool.
type Config struct {
	Workers    int
	Buffer     int
	JobTimeout time.Duration
}

// NewQueue creates a queue and starts its workers.
func NewQueue(cfg Config, logger *zap.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:       make(chan job, cfg.Buffer),
		workers:    cfg.Workers,
		jobTimeout: cfg.JobTimeout,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Enqueue hands a job to the pool without blocking. It returns false when the buffer is
// full or the queue is shut down.
func (q *Queue) Enqueue(name string, run func(ctx context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.jobs <- job{name: name, run: run}:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. If ctx expires first the
// running jobs are cancelled.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.run(j)
	}
}

func (q *Queue) run(j job) {
	ctx, cancel := context.WithTimeout(q.ctx, q.jobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := j.run(ctx); err != nil {
		q.logger.Error("job failed", zap.String("job", j.name), zap.Error(err))
		return
	}
	q.logger.Debug("job done", zap.String("job", j.name), zap.Duration("took", time.Since(start)))
}
