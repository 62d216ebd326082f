// Package event defines the event model consumed by the sequent dispatcher:
// the Event interface, a reusable Base implementation, the Listener contract,
// and the sequencing Policy with its built-in implementations.
package event

import (
	"context"
	"time"

	"github.com/xraph/sequent/id"
)

// Event is a single occurrence delivered to a Listener. Events are immutable
// from the dispatcher's point of view: created upstream, handed to exactly
// one handler invocation, then discarded.
//
// Name is the runtime type discriminator. Listeners use it to decide whether
// an event is of interest, and policies may use it to derive a sequence key.
type Event interface {
	// EventID returns the unique identifier of this event.
	EventID() id.EventID

	// Name returns the event's type name (e.g., "order.created").
	Name() string

	// OccurredAt returns when the event was created.
	OccurredAt() time.Time
}

// Base is a minimal Event implementation intended for embedding in
// domain event types:
//
//	type OrderCreated struct {
//	    event.Base
//	    OrderID string
//	}
//
//	evt := OrderCreated{Base: event.NewBase("order.created"), OrderID: "o-1"}
type Base struct {
	ID   id.EventID
	Type string
	At   time.Time
}

// NewBase creates a Base with a fresh event ID and the current UTC time.
func NewBase(name string) Base {
	return Base{
		ID:   id.NewEventID(),
		Type: name,
		At:   time.Now().UTC(),
	}
}

// EventID implements Event.
func (b Base) EventID() id.EventID { return b.ID }

// Name implements Event.
func (b Base) Name() string { return b.Type }

// OccurredAt implements Event.
func (b Base) OccurredAt() time.Time { return b.At }

// Listener receives events from the dispatcher. Handle may block and may
// return an error; it is invoked at most once per event. Events sharing a
// sequence key (per the listener's policy) are handed to Handle strictly in
// arrival order and never concurrently.
type Listener interface {
	// Accepts reports whether this listener is interested in events with
	// the given type name. Rejected events are dropped without error.
	Accepts(name string) bool

	// Handle processes a single event. An error contains the failure to
	// this event only; it never aborts the rest of the event's sequence.
	Handle(ctx context.Context, e Event) error

	// SequencingPolicy returns the policy that derives sequence keys for
	// this listener. It is read once, at dispatcher construction.
	SequencingPolicy() Policy
}
