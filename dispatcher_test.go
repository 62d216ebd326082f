package sequent_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/sequent"
	"github.com/xraph/sequent/event"
	"github.com/xraph/sequent/ext"
	"github.com/xraph/sequent/worker"
)

// testEvent carries a sequence key and a payload for ordering assertions.
type testEvent struct {
	event.Base
	Key any
	Seq int
}

func newTestEvent(name string, key any, seq int) testEvent {
	return testEvent{Base: event.NewBase(name), Key: key, Seq: seq}
}

// testListener accepts everything by default and sequences by the event's
// Key field, treating nil as fully concurrent.
type testListener struct {
	accepts func(name string) bool
	handle  func(ctx context.Context, e event.Event) error
}

func (l *testListener) Accepts(name string) bool {
	if l.accepts != nil {
		return l.accepts(name)
	}
	return true
}

func (l *testListener) Handle(ctx context.Context, e event.Event) error {
	return l.handle(ctx, e)
}

func (l *testListener) SequencingPolicy() event.Policy {
	return event.PolicyFunc(func(e event.Event) any {
		if te, ok := e.(testEvent); ok {
			return te.Key
		}
		return nil
	})
}

func newDispatcher(t *testing.T, l event.Listener, opts ...sequent.Option) *sequent.Dispatcher {
	t.Helper()

	pool := worker.New(slog.Default(), worker.WithSize(8))
	opts = append([]sequent.Option{sequent.WithExecutor(pool)}, opts...)

	d, err := sequent.New(l, opts...)
	if err != nil {
		t.Fatalf("unexpected New error: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_NilListener(t *testing.T) {
	_, err := sequent.New(nil)
	if !errors.Is(err, sequent.ErrNilListener) {
		t.Fatalf("expected ErrNilListener, got %v", err)
	}
}

func TestNew_NoExecutor(t *testing.T) {
	l := &testListener{handle: func(context.Context, event.Event) error { return nil }}
	_, err := sequent.New(l)
	if !errors.Is(err, sequent.ErrNoExecutor) {
		t.Fatalf("expected ErrNoExecutor, got %v", err)
	}
}

type nilPolicyListener struct{ testListener }

func (l *nilPolicyListener) SequencingPolicy() event.Policy { return nil }

func TestNew_NilPolicy(t *testing.T) {
	l := &nilPolicyListener{}
	l.handle = func(context.Context, event.Event) error { return nil }

	pool := worker.New(slog.Default())
	_, err := sequent.New(l, sequent.WithExecutor(pool))
	if !errors.Is(err, sequent.ErrNilPolicy) {
		t.Fatalf("expected ErrNilPolicy, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Ordering and single-flight
// ---------------------------------------------------------------------------

func TestSubmit_SameKeyHandledInOrder(t *testing.T) {
	const n = 100

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(n)

	l := &testListener{handle: func(_ context.Context, e event.Event) error {
		defer wg.Done()
		mu.Lock()
		got = append(got, e.(testEvent).Seq)
		mu.Unlock()
		return nil
	}}
	d := newDispatcher(t, l)

	for i := range n {
		if err := d.Submit(context.Background(), newTestEvent("e", "k", i)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	wg.Wait()

	if len(got) != n {
		t.Fatalf("expected %d invocations, got %d", n, len(got))
	}
	for i, seq := range got {
		if seq != i {
			t.Fatalf("out of order at %d: got seq %d (full order: %v)", i, seq, got[:i+1])
		}
	}
}

func TestSubmit_SameKeyNeverOverlaps(t *testing.T) {
	const n = 50

	var active, overlaps, handled atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)

	l := &testListener{handle: func(context.Context, event.Event) error {
		defer wg.Done()
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		handled.Add(1)
		return nil
	}}
	d := newDispatcher(t, l)

	// Concurrent submissions for one key from many goroutines.
	var submitters sync.WaitGroup
	for i := range n {
		submitters.Add(1)
		go func() {
			defer submitters.Done()
			if err := d.Submit(context.Background(), newTestEvent("e", "k", i)); err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	submitters.Wait()
	wg.Wait()

	if got := handled.Load(); got != n {
		t.Fatalf("expected %d invocations, got %d", n, got)
	}
	if got := overlaps.Load(); got != 0 {
		t.Fatalf("expected no overlapping invocations for one key, got %d", got)
	}
}

func TestSubmit_DistinctKeysRunConcurrently(t *testing.T) {
	// Two events on distinct keys rendezvous inside their handlers; this
	// only completes if they run concurrently.
	barrier := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	l := &testListener{handle: func(context.Context, event.Event) error {
		defer wg.Done()
		select {
		case barrier <- struct{}{}:
		case <-barrier:
		case <-time.After(5 * time.Second):
			t.Error("handlers for distinct keys did not run concurrently")
		}
		return nil
	}}
	d := newDispatcher(t, l)

	if err := d.Submit(context.Background(), newTestEvent("e", "a", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := d.Submit(context.Background(), newTestEvent("e", "b", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	wg.Wait()
}

func TestSubmit_UnkeyedRunsConcurrently(t *testing.T) {
	barrier := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	l := &testListener{handle: func(context.Context, event.Event) error {
		defer wg.Done()
		select {
		case barrier <- struct{}{}:
		case <-barrier:
		case <-time.After(5 * time.Second):
			t.Error("unkeyed events did not run concurrently")
		}
		return nil
	}}
	d := newDispatcher(t, l)

	for range 2 {
		if err := d.Submit(context.Background(), newTestEvent("e", nil, 0)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()
}

// ---------------------------------------------------------------------------
// No event lost across queue termination
// ---------------------------------------------------------------------------

func TestSubmit_NoEventLostAcrossTermination(t *testing.T) {
	const k = 200

	var handled atomic.Int64
	var wg sync.WaitGroup
	wg.Add(k)

	l := &testListener{handle: func(context.Context, event.Event) error {
		defer wg.Done()
		handled.Add(1)
		return nil
	}}
	d := newDispatcher(t, l)

	// Trickle submissions so intermediate queues drain to empty and
	// deregister between arrivals, exercising the append/terminate race.
	for i := range k {
		if err := d.Submit(context.Background(), newTestEvent("e", "z", i)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if i%10 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	wg.Wait()

	if got := handled.Load(); got != k {
		t.Fatalf("expected %d invocations, got %d", k, got)
	}
}

func TestRegistry_Convergence(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(30)

	l := &testListener{handle: func(context.Context, event.Event) error {
		defer wg.Done()
		return nil
	}}
	d := newDispatcher(t, l)

	for i := range 30 {
		key := fmt.Sprintf("key-%d", i%3)
		if err := d.Submit(context.Background(), newTestEvent("e", key, i)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()

	waitFor(t, 2*time.Second, func() bool { return d.ActiveSequences() == 0 },
		"expected all sequences to deregister once drained")
}

// ---------------------------------------------------------------------------
// Rejection, failure containment
// ---------------------------------------------------------------------------

func TestSubmit_RejectedEventIsDropped(t *testing.T) {
	var handled atomic.Int64
	l := &testListener{
		accepts: func(name string) bool { return name != "boring" },
		handle: func(context.Context, event.Event) error {
			handled.Add(1)
			return nil
		},
	}
	d := newDispatcher(t, l)

	if err := d.Submit(context.Background(), newTestEvent("boring", "k", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := handled.Load(); got != 0 {
		t.Fatalf("rejected event reached the handler %d times", got)
	}
	if got := d.ActiveSequences(); got != 0 {
		t.Fatalf("rejected event opened a sequence, active=%d", got)
	}
}

func TestSubmit_HandlerErrorDoesNotAbortSequence(t *testing.T) {
	const n = 5

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(n)

	l := &testListener{handle: func(_ context.Context, e event.Event) error {
		defer wg.Done()
		te := e.(testEvent)
		mu.Lock()
		got = append(got, te.Seq)
		mu.Unlock()
		if te.Seq == 1 {
			return errors.New("handler failure")
		}
		return nil
	}}
	d := newDispatcher(t, l)

	for i := range n {
		if err := d.Submit(context.Background(), newTestEvent("e", "k", i)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	wg.Wait()

	if len(got) != n {
		t.Fatalf("expected %d invocations despite the failure, got %d", n, len(got))
	}
	for i, seq := range got {
		if seq != i {
			t.Fatalf("order broken after failure: got %v", got)
		}
	}
}

func TestSubmit_NilEvent(t *testing.T) {
	l := &testListener{handle: func(context.Context, event.Event) error { return nil }}
	d := newDispatcher(t, l)

	if err := d.Submit(context.Background(), nil); !errors.Is(err, sequent.ErrNilEvent) {
		t.Fatalf("expected ErrNilEvent, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Executor rejection propagates
// ---------------------------------------------------------------------------

type rejectingExecutor struct{ err error }

func (r rejectingExecutor) Submit(func()) error { return r.err }

func TestSubmit_ExecutorRejection_Unkeyed(t *testing.T) {
	l := &testListener{handle: func(context.Context, event.Event) error { return nil }}
	d, err := sequent.New(l, sequent.WithExecutor(rejectingExecutor{err: worker.ErrPoolClosed}))
	if err != nil {
		t.Fatalf("unexpected New error: %v", err)
	}

	err = d.Submit(context.Background(), newTestEvent("e", nil, 0))
	if !errors.Is(err, worker.ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestSubmit_ExecutorRejection_Keyed(t *testing.T) {
	l := &testListener{handle: func(context.Context, event.Event) error { return nil }}
	d, err := sequent.New(l, sequent.WithExecutor(rejectingExecutor{err: worker.ErrPoolClosed}))
	if err != nil {
		t.Fatalf("unexpected New error: %v", err)
	}

	err = d.Submit(context.Background(), newTestEvent("e", "k", 0))
	if !errors.Is(err, worker.ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}

	// The failed registration must not leak a dead sequence.
	if got := d.ActiveSequences(); got != 0 {
		t.Fatalf("expected no active sequences after rejection, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Extensions
// ---------------------------------------------------------------------------

type countingExt struct {
	ignored    atomic.Int64
	dispatched atomic.Int64
	sequenced  atomic.Int64
	handled    atomic.Int64
	failed     atomic.Int64
	opened     atomic.Int64
	closed     atomic.Int64
	shutdown   atomic.Int64
}

var (
	_ ext.Extension       = (*countingExt)(nil)
	_ ext.EventIgnored    = (*countingExt)(nil)
	_ ext.EventDispatched = (*countingExt)(nil)
	_ ext.EventHandled    = (*countingExt)(nil)
	_ ext.EventFailed     = (*countingExt)(nil)
	_ ext.SequenceOpened  = (*countingExt)(nil)
	_ ext.SequenceClosed  = (*countingExt)(nil)
	_ ext.Shutdown        = (*countingExt)(nil)
)

func (c *countingExt) Name() string { return "counting" }

func (c *countingExt) OnEventIgnored(context.Context, event.Event) error {
	c.ignored.Add(1)
	return nil
}

func (c *countingExt) OnEventDispatched(_ context.Context, _ event.Event, key any) error {
	c.dispatched.Add(1)
	if key != nil {
		c.sequenced.Add(1)
	}
	return nil
}

func (c *countingExt) OnEventHandled(context.Context, event.Event, time.Duration) error {
	c.handled.Add(1)
	return nil
}

func (c *countingExt) OnEventFailed(context.Context, event.Event, error) error {
	c.failed.Add(1)
	return nil
}

func (c *countingExt) OnSequenceOpened(context.Context, any) error {
	c.opened.Add(1)
	return nil
}

func (c *countingExt) OnSequenceClosed(context.Context, any) error {
	c.closed.Add(1)
	return nil
}

func (c *countingExt) OnShutdown(context.Context) error {
	c.shutdown.Add(1)
	return nil
}

func TestDispatcher_ExtensionLifecycle(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(3)

	l := &testListener{
		accepts: func(name string) bool { return name != "boring" },
		handle: func(_ context.Context, e event.Event) error {
			defer wg.Done()
			if e.(testEvent).Seq == 99 {
				return errors.New("failure")
			}
			return nil
		},
	}

	c := &countingExt{}
	pool := worker.New(slog.Default(), worker.WithSize(2))
	d, err := sequent.New(l,
		sequent.WithExecutor(pool),
		sequent.WithExtension(c),
	)
	if err != nil {
		t.Fatalf("unexpected New error: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	ctx := context.Background()
	_ = d.Submit(ctx, newTestEvent("boring", "k", 0)) // ignored
	_ = d.Submit(ctx, newTestEvent("e", "k", 1))      // sequenced, handled
	_ = d.Submit(ctx, newTestEvent("e", nil, 2))      // concurrent, handled
	_ = d.Submit(ctx, newTestEvent("e", "k", 99))     // sequenced, fails
	wg.Wait()

	waitFor(t, 2*time.Second, func() bool { return c.closed.Load() > 0 },
		"expected sequence closed hook")

	if got := c.ignored.Load(); got != 1 {
		t.Errorf("ignored = %d, want 1", got)
	}
	if got := c.dispatched.Load(); got != 3 {
		t.Errorf("dispatched = %d, want 3", got)
	}
	if got := c.sequenced.Load(); got != 2 {
		t.Errorf("sequenced = %d, want 2", got)
	}
	if got := c.handled.Load(); got != 2 {
		t.Errorf("handled = %d, want 2", got)
	}
	if got := c.failed.Load(); got != 1 {
		t.Errorf("failed = %d, want 1", got)
	}
	if got := c.opened.Load(); got == 0 {
		t.Error("expected at least one sequence opened")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Stop(stopCtx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if got := c.shutdown.Load(); got != 1 {
		t.Errorf("shutdown = %d, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestDispatcher_StartStop_Idempotent(t *testing.T) {
	l := &testListener{handle: func(context.Context, event.Event) error { return nil }}
	pool := worker.New(slog.Default())
	d, err := sequent.New(l, sequent.WithExecutor(pool))
	if err != nil {
		t.Fatalf("unexpected New error: %v", err)
	}

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("double start: %v", err)
	}
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("double stop: %v", err)
	}
}
