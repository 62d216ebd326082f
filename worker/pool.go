// Package worker provides the task execution pool the dispatcher submits
// work to — a fixed set of goroutines draining a shared task queue.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Sentinel errors returned by Submit.
var (
	// ErrPoolClosed is returned when submitting to a pool that has not
	// been started or has been stopped.
	ErrPoolClosed = errors.New("worker: pool closed")

	// ErrQueueFull is returned by non-blocking submission when the task
	// queue is at capacity.
	ErrQueueFull = errors.New("worker: task queue full")
)

// Pool runs submitted tasks on a fixed number of worker goroutines.
// Tasks are executed in no particular order relative to each other; callers
// that need ordering serialize on their side before submitting.
type Pool struct {
	size      int
	queueSize int
	blocking  bool
	logger    *slog.Logger

	tasks chan func()
	wg    sync.WaitGroup

	// mu guards running and, as a read lock, keeps Stop from closing the
	// task channel while a Submit is mid-send.
	mu      sync.RWMutex
	running bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithSize sets the number of worker goroutines.
func WithSize(n int) Option {
	return func(p *Pool) { p.size = n }
}

// WithQueueCapacity sets the task queue buffer size.
func WithQueueCapacity(n int) Option {
	return func(p *Pool) { p.queueSize = n }
}

// WithNonBlockingSubmit makes Submit return ErrQueueFull instead of
// blocking when the task queue is at capacity.
func WithNonBlockingSubmit() Option {
	return func(p *Pool) { p.blocking = false }
}

// New creates a Pool. Call Start before submitting tasks.
func New(logger *slog.Logger, opts ...Option) *Pool {
	p := &Pool{
		size:      10,
		queueSize: 256,
		blocking:  true,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the worker goroutines. It returns immediately and is a
// no-op if the pool is already running.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.tasks = make(chan func(), p.queueSize)

	p.logger.Info("worker pool starting",
		slog.Int("size", p.size),
		slog.Int("queue_capacity", p.queueSize),
	)

	for range p.size {
		p.wg.Add(1)
		go p.run()
	}

	return nil
}

// Stop closes the pool to new submissions and waits for queued tasks to
// drain. If the context expires first, Stop returns the context error while
// remaining tasks finish in the background. Safe to call multiple times.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.tasks)
	p.mu.Unlock()

	p.logger.Info("worker pool stopping")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out")
		return ctx.Err()
	}
}

// Submit hands a task to the pool. It returns ErrPoolClosed if the pool is
// not running. In blocking mode (the default) it waits for queue space; with
// WithNonBlockingSubmit it returns ErrQueueFull instead.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return ErrPoolClosed
	}

	if !p.blocking {
		select {
		case p.tasks <- task:
			return nil
		default:
			return ErrQueueFull
		}
	}

	p.tasks <- task
	return nil
}

// run is the loop executed by each worker goroutine.
func (p *Pool) run() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.execute(task)
	}
}

// execute runs a single task, containing panics to that task.
func (p *Pool) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	task()
}
