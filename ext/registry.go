package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/sequent/event"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type eventIgnoredEntry struct {
	name string
	hook EventIgnored
}

type eventDispatchedEntry struct {
	name string
	hook EventDispatched
}

type eventHandledEntry struct {
	name string
	hook EventHandled
}

type eventFailedEntry struct {
	name string
	hook EventFailed
}

type sequenceOpenedEntry struct {
	name string
	hook SequenceOpened
}

type sequenceClosedEntry struct {
	name string
	hook SequenceClosed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	eventIgnored    []eventIgnoredEntry
	eventDispatched []eventDispatchedEntry
	eventHandled    []eventHandledEntry
	eventFailed     []eventFailedEntry
	sequenceOpened  []sequenceOpenedEntry
	sequenceClosed  []sequenceClosedEntry
	shutdown        []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(EventIgnored); ok {
		r.eventIgnored = append(r.eventIgnored, eventIgnoredEntry{name, h})
	}
	if h, ok := e.(EventDispatched); ok {
		r.eventDispatched = append(r.eventDispatched, eventDispatchedEntry{name, h})
	}
	if h, ok := e.(EventHandled); ok {
		r.eventHandled = append(r.eventHandled, eventHandledEntry{name, h})
	}
	if h, ok := e.(EventFailed); ok {
		r.eventFailed = append(r.eventFailed, eventFailedEntry{name, h})
	}
	if h, ok := e.(SequenceOpened); ok {
		r.sequenceOpened = append(r.sequenceOpened, sequenceOpenedEntry{name, h})
	}
	if h, ok := e.(SequenceClosed); ok {
		r.sequenceClosed = append(r.sequenceClosed, sequenceClosedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitEventIgnored notifies all extensions that implement EventIgnored.
func (r *Registry) EmitEventIgnored(ctx context.Context, e event.Event) {
	for _, entry := range r.eventIgnored {
		if err := entry.hook.OnEventIgnored(ctx, e); err != nil {
			r.logHookError("OnEventIgnored", entry.name, err)
		}
	}
}

// EmitEventDispatched notifies all extensions that implement EventDispatched.
func (r *Registry) EmitEventDispatched(ctx context.Context, e event.Event, key any) {
	for _, entry := range r.eventDispatched {
		if err := entry.hook.OnEventDispatched(ctx, e, key); err != nil {
			r.logHookError("OnEventDispatched", entry.name, err)
		}
	}
}

// EmitEventHandled notifies all extensions that implement EventHandled.
func (r *Registry) EmitEventHandled(ctx context.Context, e event.Event, elapsed time.Duration) {
	for _, entry := range r.eventHandled {
		if err := entry.hook.OnEventHandled(ctx, e, elapsed); err != nil {
			r.logHookError("OnEventHandled", entry.name, err)
		}
	}
}

// EmitEventFailed notifies all extensions that implement EventFailed.
func (r *Registry) EmitEventFailed(ctx context.Context, e event.Event, evtErr error) {
	for _, entry := range r.eventFailed {
		if err := entry.hook.OnEventFailed(ctx, e, evtErr); err != nil {
			r.logHookError("OnEventFailed", entry.name, err)
		}
	}
}

// EmitSequenceOpened notifies all extensions that implement SequenceOpened.
func (r *Registry) EmitSequenceOpened(ctx context.Context, key any) {
	for _, entry := range r.sequenceOpened {
		if err := entry.hook.OnSequenceOpened(ctx, key); err != nil {
			r.logHookError("OnSequenceOpened", entry.name, err)
		}
	}
}

// EmitSequenceClosed notifies all extensions that implement SequenceClosed.
func (r *Registry) EmitSequenceClosed(ctx context.Context, key any) {
	for _, entry := range r.sequenceClosed {
		if err := entry.hook.OnSequenceClosed(ctx, key); err != nil {
			r.logHookError("OnSequenceClosed", entry.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, entry := range r.shutdown {
		if err := entry.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", entry.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
