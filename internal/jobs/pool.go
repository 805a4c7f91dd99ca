// Package jobs runs background work on a fixed set of in-process workers.
//
// LIFECYCLE:
//  1. NewPool allocates the bounded queue; nothing runs yet
//  2. Start launches the workers, which pull jobs until the queue closes
//  3. Submit enqueues without blocking and fails fast when the queue is full
//  4. Stop cancels the shared context, closes the queue and waits
//
// On Stop a running job sees its ctx cancelled and is expected to return
// promptly. Jobs still waiting in the queue never run: their Drop hook is
// called instead, so the owner can record that the work was abandoned.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrQueueFull = errors.New("jobs: queue is full")
	ErrStopped   = errors.New("jobs: pool is stopped")
)

// Job is one unit of background work. ctx is cancelled when the pool stops.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
	// Drop, if set, is called instead of Run when the job is still queued at
	// shutdown.
	Drop func()
}

// Pool executes submitted jobs on a fixed number of worker goroutines.
// Jobs wait in a bounded queue; Submit never blocks.
type Pool struct {
	workers int
	logger  *slog.Logger
	queue   chan Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	started   bool
	stopped   bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool returns a stopped pool with workers goroutines and room for
// queueSize waiting jobs. Values below 1 are raised to 1.
func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		logger:  logger,
		queue:   make(chan Job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.stopped {
			return
		}
		p.started = true

		p.logger.Info("starting job pool", slog.Int("workers", p.workers))
		for i := range p.workers {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Submit queues job for execution. It returns ErrQueueFull when every slot is
// taken and ErrStopped after Stop; in both cases the job will never run.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cancels running jobs, drops queued ones and waits for the workers to
// exit or ctx to expire.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.logger.Info("shutting down job pool")
		p.mu.Lock()
		p.stopped = true
		started := p.started
		p.mu.Unlock()
		p.cancel()
		close(p.queue)

		// Without workers nobody else drains the queue.
		if !started {
			for job := range p.queue {
				p.drop(job)
			}
		}
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jobs: waiting for workers: %w", ctx.Err())
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.queue {
		if p.ctx.Err() != nil {
			p.drop(job)
			continue
		}
		p.run(id, job)
	}
}

func (p *Pool) drop(job Job) {
	p.logger.Warn("dropping queued job on shutdown", slog.String("job", job.Name))
	if job.Drop == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job drop hook panicked", slog.String("job", job.Name), slog.Any("panic", r))
		}
	}()
	job.Drop()
}

func (p *Pool) run(worker int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				slog.String("job", job.Name),
				slog.Int("worker", worker),
				slog.Any("panic", r),
			)
		}
	}()

	if err := job.Run(p.ctx); err != nil {
		p.logger.Error("job failed",
			slog.String("job", job.Name),
			slog.Int("worker", worker),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.Debug("job finished", slog.String("job", job.Name), slog.Int("worker", worker))
}
