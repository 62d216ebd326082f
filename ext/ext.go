// Package ext defines the extension system for sequent.
//
// Extensions are notified of dispatch lifecycle events and can react to
// them — recording metrics, writing audit logs, surfacing handler failures
// to an external error reporter, etc. Each lifecycle hook is a separate
// interface so extensions opt in only to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/sequent/event"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// EventIgnored is called when the listener rejects an event's type.
type EventIgnored interface {
	OnEventIgnored(ctx context.Context, e event.Event) error
}

// EventDispatched is called after an event is accepted and routed.
// key is the sequencing key when the event was routed into a per-key
// serial queue, or nil when it was scheduled for fully concurrent
// processing.
type EventDispatched interface {
	OnEventDispatched(ctx context.Context, e event.Event, key any) error
}

// EventHandled is called after the listener handles an event successfully.
type EventHandled interface {
	OnEventHandled(ctx context.Context, e event.Event, elapsed time.Duration) error
}

// EventFailed is called when the listener's handler returns an error.
// This is the failure-reporting surface for handler errors; the dispatcher
// itself does not retry and continues with the next event in the sequence.
type EventFailed interface {
	OnEventFailed(ctx context.Context, e event.Event, err error) error
}

// SequenceOpened is called when a new serial queue is installed for a key.
type SequenceOpened interface {
	OnSequenceOpened(ctx context.Context, key any) error
}

// SequenceClosed is called when a key's serial queue drains to empty and
// deregisters.
type SequenceClosed interface {
	OnSequenceClosed(ctx context.Context, key any) error
}

// Shutdown is called during graceful shutdown of the dispatcher.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
