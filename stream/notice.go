// Package stream provides a real-time broker for sequent lifecycle events.
// It bridges the ext.Extension system to in-process consumers via
// topic-based pub/sub with credit-based flow control.
package stream

import (
	"encoding/json"
	"time"
)

// NoticeType identifies the kind of lifecycle notice.
type NoticeType string

const (
	// Event notices.
	NoticeEventIgnored    NoticeType = "event.ignored"
	NoticeEventDispatched NoticeType = "event.dispatched"
	NoticeEventHandled    NoticeType = "event.handled"
	NoticeEventFailed     NoticeType = "event.failed"

	// Sequence notices.
	NoticeSequenceOpened NoticeType = "sequence.opened"
	NoticeSequenceClosed NoticeType = "sequence.closed"
)

// Notice is the envelope sent to subscribers on a topic channel.
type Notice struct {
	// Type identifies the lifecycle notice.
	Type NoticeType `json:"type"`

	// Timestamp is when the notice was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the entity topic this notice was published on.
	Topic string `json:"topic"`

	// Sequence is the sequence topic, when the notice belongs to a
	// per-key serial queue.
	Sequence string `json:"sequence,omitempty"`

	// Data is the notice-specific payload.
	Data json.RawMessage `json:"data"`
}

// EventData is the payload for event lifecycle notices.
type EventData struct {
	EventID     string `json:"event_id"`
	EventName   string `json:"event_name"`
	Sequenced   bool   `json:"sequenced,omitempty"`
	SequenceKey string `json:"sequence_key,omitempty"`
	ElapsedMs   int64  `json:"elapsed_ms,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SequenceData is the payload for sequence lifecycle notices.
type SequenceData struct {
	Key string `json:"key"`
}
