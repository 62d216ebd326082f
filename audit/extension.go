package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/sequent/event"
	"github.com/xraph/sequent/ext"
)

// Compile-time interface checks.
var (
	_ ext.Extension       = (*Extension)(nil)
	_ ext.EventIgnored    = (*Extension)(nil)
	_ ext.EventDispatched = (*Extension)(nil)
	_ ext.EventHandled    = (*Extension)(nil)
	_ ext.EventFailed     = (*Extension)(nil)
	_ ext.SequenceOpened  = (*Extension)(nil)
	_ ext.SequenceClosed  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit package does not depend on any
// particular backend — callers inject the concrete recorder at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, evt *Event) error
}

// Event is the structured audit record emitted for each lifecycle action.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, evt *Event) error

func (f RecorderFunc) Record(ctx context.Context, evt *Event) error {
	return f(ctx, evt)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges sequent lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit" }

// ── Event lifecycle hooks ───────────────────────────

// OnEventIgnored implements ext.EventIgnored.
func (e *Extension) OnEventIgnored(ctx context.Context, evt event.Event) error {
	return e.record(ctx, ActionEventIgnored, SeverityWarning, OutcomeSuccess,
		ResourceEvent, evt.EventID().String(), CategoryEvent, nil,
		"event_name", evt.Name(),
	)
}

// OnEventDispatched implements ext.EventDispatched.
func (e *Extension) OnEventDispatched(ctx context.Context, evt event.Event, key any) error {
	kvs := []any{
		"event_name", evt.Name(),
		"sequenced", key != nil,
	}
	if key != nil {
		kvs = append(kvs, "sequence_key", fmt.Sprintf("%v", key))
	}
	return e.record(ctx, ActionEventDispatched, SeverityInfo, OutcomeSuccess,
		ResourceEvent, evt.EventID().String(), CategoryEvent, nil, kvs...)
}

// OnEventHandled implements ext.EventHandled.
func (e *Extension) OnEventHandled(ctx context.Context, evt event.Event, elapsed time.Duration) error {
	return e.record(ctx, ActionEventHandled, SeverityInfo, OutcomeSuccess,
		ResourceEvent, evt.EventID().String(), CategoryEvent, nil,
		"event_name", evt.Name(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnEventFailed implements ext.EventFailed.
func (e *Extension) OnEventFailed(ctx context.Context, evt event.Event, handleErr error) error {
	return e.record(ctx, ActionEventFailed, SeverityCritical, OutcomeFailure,
		ResourceEvent, evt.EventID().String(), CategoryEvent, handleErr,
		"event_name", evt.Name(),
	)
}

// ── Sequence lifecycle hooks ────────────────────────

// OnSequenceOpened implements ext.SequenceOpened.
func (e *Extension) OnSequenceOpened(ctx context.Context, key any) error {
	return e.record(ctx, ActionSequenceOpened, SeverityInfo, OutcomeSuccess,
		ResourceSequence, fmt.Sprintf("%v", key), CategorySequence, nil)
}

// OnSequenceClosed implements ext.SequenceClosed.
func (e *Extension) OnSequenceClosed(ctx context.Context, key any) error {
	return e.record(ctx, ActionSequenceClosed, SeverityInfo, OutcomeSuccess,
		ResourceSequence, fmt.Sprintf("%v", key), CategorySequence, nil)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
