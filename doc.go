// Package sequent provides a sequence-aware event dispatcher for Go. It
// accepts a stream of events and hands each one to a registered listener,
// guaranteeing that events sharing a sequence key are processed strictly in
// arrival order by a single logical worker, while events without a key are
// dispatched with full concurrency.
//
// Sequent is designed as a library, not a service. Construct a Dispatcher
// around a listener and an executor, then feed it events:
//
//	pool := worker.New(logger, worker.WithSize(8))
//	pool.Start(ctx)
//
//	d, err := sequent.New(myListener,
//	    sequent.WithExecutor(pool),
//	    sequent.WithMiddleware(middleware.Recover(logger)),
//	)
//
//	d.Submit(ctx, OrderCreated{Base: event.NewBase("order.created")})
//
// # Architecture
//
// The Dispatcher maintains a registry of per-key serial queues on top of a
// shared executor. The listener's sequencing policy derives a key from each
// event; equal keys share one queue, a nil key bypasses the registry for
// maximal concurrency. Queues are created lazily on first use and remove
// themselves from the registry once drained, so idle keys cost nothing.
//
// Handler failures are contained per event: an error from one event is
// reported through the extension hooks and never blocks or aborts the rest
// of its sequence.
//
// All event IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package sequent
