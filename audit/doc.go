// Package audit is a sequent extension that bridges lifecycle events
// to an immutable audit trail backend.
//
// Every event and sequence lifecycle hook emits a structured audit event
// through the [Recorder] interface. The extension assigns appropriate
// severity levels (info for normal operations, warning for ignored events,
// critical for handler failures) and rich metadata (event name, sequence
// key, elapsed time, errors).
//
// # Usage
//
//	audit.New(audit.RecorderFunc(func(ctx context.Context, evt *audit.Event) error {
//	    return trail.Write(ctx, evt.Action, evt.Resource, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audit.New(recorder,
//	    audit.WithActions(
//	        audit.ActionEventFailed,
//	        audit.ActionSequenceOpened,
//	        audit.ActionSequenceClosed,
//	    ),
//	)
package audit
