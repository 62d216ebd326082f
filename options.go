package sequent

import (
	"context"
	"log/slog"

	"github.com/xraph/sequent/ext"
	"github.com/xraph/sequent/limit"
	"github.com/xraph/sequent/middleware"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// Executor accepts units of work and runs them on an unspecified goroutine
// at an unspecified future time; it may run multiple submitted units
// concurrently. worker.Pool is the canonical implementation.
type Executor interface {
	// Submit hands a task to the executor, fire-and-forget. An error
	// means the task was not accepted and will never run.
	Submit(task func()) error
}

// runner is an internal interface for executor lifecycle. Executors that
// implement it (worker.Pool does) are started and stopped alongside the
// Dispatcher.
type runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// WithConfig replaces the dispatcher's configuration.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) error {
		d.config = cfg
		return nil
	}
}

// WithExecutor sets the executor that runs dispatched work. Required.
func WithExecutor(e Executor) Option {
	return func(d *Dispatcher) error {
		if e == nil {
			return ErrNoExecutor
		}
		d.executor = e
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = logger
		return nil
	}
}

// WithMiddleware appends middleware wrapped around every handler
// invocation. Middleware are applied right-to-left: the first listed is
// the outermost wrapper.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(d *Dispatcher) error {
		d.mws = append(d.mws, mws...)
		return nil
	}
}

// WithExtension registers a lifecycle extension.
func WithExtension(e ext.Extension) Option {
	return func(d *Dispatcher) error {
		d.pendingExts = append(d.pendingExts, e)
		return nil
	}
}

// WithUnkeyedGate limits fully concurrent dispatch with the given gate.
// Events routed into per-key queues are unaffected.
func WithUnkeyedGate(g *limit.Gate) Option {
	return func(d *Dispatcher) error {
		d.gate = g
		return nil
	}
}
