package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/sequent/event"
	"github.com/xraph/sequent/ext"
)

// Compile-time interface checks.
var (
	_ ext.Extension       = (*Broker)(nil)
	_ ext.EventIgnored    = (*Broker)(nil)
	_ ext.EventDispatched = (*Broker)(nil)
	_ ext.EventHandled    = (*Broker)(nil)
	_ ext.EventFailed     = (*Broker)(nil)
	_ ext.SequenceOpened  = (*Broker)(nil)
	_ ext.SequenceClosed  = (*Broker)(nil)
	_ ext.Shutdown        = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber notice buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Broker is the real-time stream broker. It implements the ext.Extension
// interface to receive lifecycle notices and fans them out to subscribers
// via topic-based pub/sub.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	// Subscriber management.
	subscribers sync.Map // subscriberID → *Subscriber

	// Metrics.
	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	// Config.
	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber notice buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker creates a new stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry for external use.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID string, topics ...string) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return
	}
	sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	b.subscribers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    b.totalDropped.Load(),
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// publish broadcasts a notice to all matching topics.
func (b *Broker) publish(n *Notice) {
	topics := resolveTopics(n)
	delivered, dropped := b.topics.Broadcast(topics, n)
	b.totalPublished.Add(int64(delivered))
	b.totalDropped.Add(int64(dropped))
}

// keyString renders a sequencing key for topic and payload use.
func keyString(key any) string {
	if key == nil {
		return ""
	}
	return fmt.Sprint(key)
}

// mustMarshal marshals data to JSON, panicking on error (programming error).
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("stream: marshal notice data: " + err.Error())
	}
	return data
}

// ── Event lifecycle hooks ───────────────────────────

func (b *Broker) OnEventIgnored(_ context.Context, e event.Event) error {
	b.publish(&Notice{
		Type:      NoticeEventIgnored,
		Timestamp: time.Now().UTC(),
		Topic:     EventTopic(e.Name()),
		Data: mustMarshal(EventData{
			EventID:   e.EventID().String(),
			EventName: e.Name(),
		}),
	})
	return nil
}

func (b *Broker) OnEventDispatched(_ context.Context, e event.Event, key any) error {
	n := &Notice{
		Type:      NoticeEventDispatched,
		Timestamp: time.Now().UTC(),
		Topic:     EventTopic(e.Name()),
		Data: mustMarshal(EventData{
			EventID:     e.EventID().String(),
			EventName:   e.Name(),
			Sequenced:   key != nil,
			SequenceKey: keyString(key),
		}),
	}
	if key != nil {
		n.Sequence = SequenceTopic(keyString(key))
	}
	b.publish(n)
	return nil
}

func (b *Broker) OnEventHandled(_ context.Context, e event.Event, elapsed time.Duration) error {
	b.publish(&Notice{
		Type:      NoticeEventHandled,
		Timestamp: time.Now().UTC(),
		Topic:     EventTopic(e.Name()),
		Data: mustMarshal(EventData{
			EventID:   e.EventID().String(),
			EventName: e.Name(),
			ElapsedMs: elapsed.Milliseconds(),
		}),
	})
	return nil
}

func (b *Broker) OnEventFailed(_ context.Context, e event.Event, handleErr error) error {
	b.publish(&Notice{
		Type:      NoticeEventFailed,
		Timestamp: time.Now().UTC(),
		Topic:     EventTopic(e.Name()),
		Data: mustMarshal(EventData{
			EventID:   e.EventID().String(),
			EventName: e.Name(),
			Error:     handleErr.Error(),
		}),
	})
	return nil
}

// ── Sequence lifecycle hooks ────────────────────────

func (b *Broker) OnSequenceOpened(_ context.Context, key any) error {
	ks := keyString(key)
	b.publish(&Notice{
		Type:      NoticeSequenceOpened,
		Timestamp: time.Now().UTC(),
		Topic:     SequenceTopic(ks),
		Data:      mustMarshal(SequenceData{Key: ks}),
	})
	return nil
}

func (b *Broker) OnSequenceClosed(_ context.Context, key any) error {
	ks := keyString(key)
	b.publish(&Notice{
		Type:      NoticeSequenceClosed,
		Timestamp: time.Now().UTC(),
		Topic:     SequenceTopic(ks),
		Data:      mustMarshal(SequenceData{Key: ks}),
	})
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (b *Broker) OnShutdown(_ context.Context) error {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		sub.Close()
		b.subscribers.Delete(key)
		return true
	})
	b.logger.Info("stream broker shut down")
	return nil
}
