package sequent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/sequent/event"
	"github.com/xraph/sequent/ext"
	"github.com/xraph/sequent/limit"
	"github.com/xraph/sequent/middleware"
)

// Dispatcher is the sequence registry: it routes each submitted event either
// into the serial queue for its sequence key (creating one when none is
// live) or directly to the executor for fully concurrent processing.
//
// Create one with New and functional options. Submit is safe for concurrent
// use from any number of goroutines.
type Dispatcher struct {
	listener   event.Listener
	policy     event.Policy
	executor   Executor
	extensions *ext.Registry
	gate       *limit.Gate
	logger     *slog.Logger
	config     Config

	// handle is the listener's Handle wrapped in the middleware chain.
	handle func(ctx context.Context, e event.Event) error

	// sequences maps a sequence key to its live *scheduler. Mutated only
	// via LoadOrStore and CompareAndDelete keyed on the scheduler
	// instance, never by blind overwrite.
	sequences sync.Map

	mws         []middleware.Middleware
	pendingExts []ext.Extension

	mu      sync.Mutex
	started bool
}

// New creates a Dispatcher for the given listener. WithExecutor is
// required; the listener's sequencing policy is read once, here.
func New(listener event.Listener, opts ...Option) (*Dispatcher, error) {
	if listener == nil {
		return nil, ErrNilListener
	}

	d := &Dispatcher{
		listener: listener,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	if d.executor == nil {
		return nil, ErrNoExecutor
	}
	d.policy = listener.SequencingPolicy()
	if d.policy == nil {
		return nil, ErrNilPolicy
	}

	d.extensions = ext.NewRegistry(d.logger)
	for _, e := range d.pendingExts {
		d.extensions.Register(e)
	}
	d.pendingExts = nil

	chain := middleware.Chain(d.mws...)
	d.handle = func(ctx context.Context, e event.Event) error {
		return chain(ctx, e, func(ctx context.Context) error {
			return d.listener.Handle(ctx, e)
		})
	}

	return d, nil
}

// Logger returns the dispatcher's logger.
func (d *Dispatcher) Logger() *slog.Logger { return d.logger }

// Config returns a copy of the dispatcher's configuration.
func (d *Dispatcher) Config() Config { return d.config }

// Extensions returns the dispatcher's extension registry.
func (d *Dispatcher) Extensions() *ext.Registry { return d.extensions }

// Submit accepts an event for processing. If the listener rejects the
// event's type this is a no-op. Otherwise the event is either scheduled
// for fully concurrent processing (no sequence key) or appended to its
// key's serial queue in arrival order.
//
// A non-nil error means the event was not accepted — the executor refused
// the work — and it will never reach the listener.
func (d *Dispatcher) Submit(ctx context.Context, e event.Event) error {
	if e == nil {
		return ErrNilEvent
	}

	if !d.listener.Accepts(e.Name()) {
		d.extensions.EmitEventIgnored(ctx, e)
		return nil
	}

	key := d.policy.SequenceOf(e)
	if key == nil {
		d.logger.Debug("scheduling event for fully concurrent processing",
			slog.String("event_name", e.Name()),
			slog.String("event_id", e.EventID().String()),
		)
		if err := d.dispatchConcurrent(ctx, e); err != nil {
			return err
		}
		d.extensions.EmitEventDispatched(ctx, e, nil)
		return nil
	}

	d.logger.Debug("scheduling event for sequential processing",
		slog.String("event_name", e.Name()),
		slog.String("event_id", e.EventID().String()),
		slog.Any("sequence", key),
	)
	if err := d.route(ctx, e, key); err != nil {
		return err
	}
	d.extensions.EmitEventDispatched(ctx, e, key)
	return nil
}

// dispatchConcurrent submits a one-shot task for an unkeyed event,
// acquiring the gate first when one is configured.
func (d *Dispatcher) dispatchConcurrent(ctx context.Context, e event.Event) error {
	if d.gate != nil {
		if err := d.gate.Acquire(ctx); err != nil {
			return fmt.Errorf("sequent: acquire gate: %w", err)
		}
	}

	task := func() {
		if d.gate != nil {
			defer d.gate.Release()
		}
		d.invoke(ctx, e)
	}

	if err := d.executor.Submit(task); err != nil {
		if d.gate != nil {
			d.gate.Release()
		}
		return fmt.Errorf("sequent: submit event %s: %w", e.EventID(), err)
	}
	return nil
}

// route is the race-free registration loop: load the key's live scheduler
// and append, or install a fresh one pre-seeded with the event. Appends
// fail only against a terminated scheduler, in which case the stale mapping
// is removed (compare-and-delete on the exact instance, so a newer
// registration is never clobbered) and the loop retries. Termination and
// a successful append are mutually exclusive outcomes, so the loop always
// knows which branch occurred; no event is lost to the race.
func (d *Dispatcher) route(ctx context.Context, e event.Event, key any) error {
	item := queuedEvent{ctx: ctx, evt: e}

	for {
		if cur, ok := d.sequences.Load(key); ok {
			sch := cur.(*scheduler)
			accepted, err := sch.append(item)
			if err != nil {
				return fmt.Errorf("sequent: submit event %s: %w", e.EventID(), err)
			}
			if accepted {
				return nil
			}
			// Terminated concurrently; drop the stale mapping and retry.
			d.sequences.CompareAndDelete(key, cur)
			continue
		}

		sch := newScheduler(key, item, d.executor, d.invoke, d.sequenceClosed)
		if _, loaded := d.sequences.LoadOrStore(key, sch); loaded {
			// Lost the install race; discard ours and retry against
			// the winner's scheduler.
			continue
		}

		d.logger.Debug("sequence opened", slog.Any("sequence", key))
		d.extensions.EmitSequenceOpened(ctx, key)

		if err := sch.start(); err != nil {
			d.sequences.CompareAndDelete(key, sch)
			d.extensions.EmitSequenceClosed(ctx, key)
			d.reportAborted(ctx, sch.abort(), e, err)
			return fmt.Errorf("sequent: submit event %s: %w", e.EventID(), err)
		}
		return nil
	}
}

// reportAborted surfaces events stranded in a scheduler whose initial drain
// submission was refused. The caller's own event is excluded: its loss is
// reported through Submit's error return.
func (d *Dispatcher) reportAborted(ctx context.Context, pending []queuedEvent, own event.Event, cause error) {
	ownID := own.EventID().String()
	for _, item := range pending {
		if item.evt.EventID().String() == ownID {
			continue
		}
		d.logger.Error("event lost: executor refused drain task",
			slog.String("event_name", item.evt.Name()),
			slog.String("event_id", item.evt.EventID().String()),
			slog.String("error", cause.Error()),
		)
		d.extensions.EmitEventFailed(ctx, item.evt, cause)
	}
}

// sequenceClosed is the shutdown callback a scheduler fires on termination.
// Removal is keyed on the scheduler instance: if a fresh scheduler was
// installed for the same key after this one decided to terminate, the
// newer mapping is left untouched.
func (d *Dispatcher) sequenceClosed(s *scheduler) {
	d.sequences.CompareAndDelete(s.key, s)
	d.logger.Debug("sequence closed", slog.Any("sequence", s.key))
	d.extensions.EmitSequenceClosed(context.Background(), s.key)
}

// invoke runs one event through the middleware-wrapped handler. Errors are
// contained to the event: they are logged, reported through the EventFailed
// hook, and never abort the rest of the event's sequence.
func (d *Dispatcher) invoke(ctx context.Context, e event.Event) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	if err := d.handle(ctx, e); err != nil {
		d.logger.Error("event handler error",
			slog.String("event_name", e.Name()),
			slog.String("event_id", e.EventID().String()),
			slog.String("error", err.Error()),
		)
		d.extensions.EmitEventFailed(ctx, e, err)
		return
	}
	d.extensions.EmitEventHandled(ctx, e, time.Since(start))
}

// ActiveSequences returns the number of live serial queues. Once all
// in-flight events for a key are handled and no new ones arrive, its queue
// deregisters and the count drops.
func (d *Dispatcher) ActiveSequences() int {
	n := 0
	d.sequences.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Start starts the executor when it supports lifecycle management
// (worker.Pool does). For externally managed executors this is a no-op.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}
	if r, ok := d.executor.(runner); ok {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}
	d.started = true
	return nil
}

// Stop gracefully shuts the dispatcher down: the executor is stopped with
// the configured shutdown timeout, draining buffered events, and the
// Shutdown extension hook fires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}
	d.started = false

	var stopErr error
	if r, ok := d.executor.(runner); ok {
		stopCtx, cancel := context.WithTimeout(ctx, d.config.ShutdownTimeout)
		defer cancel()
		if err := r.Stop(stopCtx); err != nil {
			d.logger.Error("executor stop error", slog.String("error", err.Error()))
			stopErr = err
		}
	}

	d.extensions.EmitShutdown(ctx)
	return stopErr
}
