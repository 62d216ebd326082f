package event

// Policy derives a sequence key from an event. Events that map to equal keys
// are processed strictly in arrival order by a single logical worker; events
// that map to nil are processed with full concurrency.
//
// Keys are compared by equality, not identity: two distinct key values that
// compare equal share one serial queue. Returned keys must be valid Go map
// keys (comparable); returning a non-comparable value is a programming error
// and panics inside the dispatcher's registry.
type Policy interface {
	// SequenceOf returns the sequence key for e, or nil for no sequencing.
	SequenceOf(e Event) any
}

// PolicyFunc adapts a plain function to the Policy interface.
type PolicyFunc func(e Event) any

// SequenceOf implements Policy.
func (f PolicyFunc) SequenceOf(e Event) any { return f(e) }

// FullConcurrency returns a policy that never sequences: every event is
// dispatched independently with no ordering guarantee.
func FullConcurrency() Policy {
	return PolicyFunc(func(Event) any { return nil })
}

// sequentialKey is the singleton key used by Sequential.
type sequentialKey struct{}

// Sequential returns a policy that maps every event to the same key,
// serializing the entire listener: events are handled one at a time, in
// arrival order.
func Sequential() Policy {
	return PolicyFunc(func(Event) any { return sequentialKey{} })
}

// PerEventName returns a policy that sequences events by their type name:
// events with the same Name are handled in order, events with different
// names run concurrently.
func PerEventName() Policy {
	return PolicyFunc(func(e Event) any { return e.Name() })
}
