package audit

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionEventIgnored    = "event.ignored"
	ActionEventDispatched = "event.dispatched"
	ActionEventHandled    = "event.handled"
	ActionEventFailed     = "event.failed"
	ActionSequenceOpened  = "sequence.opened"
	ActionSequenceClosed  = "sequence.closed"
)

// Audit event categories group related actions.
const (
	CategoryEvent    = "sequent.event"
	CategorySequence = "sequent.sequence"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceEvent    = "event"
	ResourceSequence = "sequence"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionEventIgnored,
		ActionEventDispatched,
		ActionEventHandled,
		ActionEventFailed,
		ActionSequenceOpened,
		ActionSequenceClosed,
	}
}
