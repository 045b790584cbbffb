// Package events implements the in-process topic bus that couples
// producers and consumers across the worker runtime, pool dispatcher,
// and extension host.
//
// Horizontal scaling here is worker-count, not broker-count (cluster
// consensus is out of scope), so there is no need to distribute events
// across processes — a single in-process bus is enough. The
// glob-subscription model, bounded per-subscriber queue with
// drop-oldest overflow, and log truncated at startup keep events
// delivery simple without a cross-process transport.
package events

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arkhamforge/docintel/pkg/models"
)

// subscriberQueueSize bounds each subscriber's channel. Once full, the
// oldest buffered event is dropped to make room.
const subscriberQueueSize = 256

// Redactor masks sensitive substrings out of event payload text.
// Satisfied by *pkg/extension/redact.Service; left nil (the default) the
// bus delivers payloads unmodified.
type Redactor interface {
	Redact(text string) string
}

// Bus is an in-process topic publish/subscribe bus with glob
// subscriptions (e.g. "stage.*.completed").
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	redactor    Redactor

	sequences sync.Map // source (string) → *uint64

	drops atomic.Int64
}

type subscriber struct {
	id      string
	pattern string
	ch      chan models.Event
	mu      sync.Mutex
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string]*subscriber)}
}

// SetRedactor installs r to mask every published payload before
// delivery. Applying it here, rather than at the event log or at the
// extension host, is the one choke point every subscriber — the event
// log's catch-all subscription and every extension's topic subscription
// alike — is guaranteed to pass through.
func (b *Bus) SetRedactor(r Redactor) {
	b.redactor = r
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	bus *Bus
	id  string
	ch  <-chan models.Event
}

// Events returns the channel of delivered events for this subscription.
func (s *Subscription) Events() <-chan models.Event {
	return s.ch
}

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id)
}

// Subscribe registers a new subscription matching pattern, a dot-separated
// glob where "*" matches exactly one segment (e.g. "stage.*.completed"
// matches "stage.chunk.completed" but not "stage.chunk.step.completed").
func (b *Bus) Subscribe(pattern string) *Subscription {
	sub := &subscriber{
		id:      uuid.NewString(),
		pattern: pattern,
		ch:      make(chan models.Event, subscriberQueueSize),
	}

	b.mu.Lock()
	b.subscribers[sub.id] = sub
	b.mu.Unlock()

	return &Subscription{bus: b, id: sub.id, ch: sub.ch}
}

// SubscribeAll registers a subscription matching every topic regardless of
// its segment count, for consumers like the event log that must observe
// the full stream.
func (b *Bus) SubscribeAll() *Subscription {
	sub := &subscriber{
		id:      uuid.NewString(),
		pattern: "",
		ch:      make(chan models.Event, subscriberQueueSize),
	}

	b.mu.Lock()
	b.subscribers[sub.id] = sub
	b.mu.Unlock()

	return &Subscription{bus: b, id: sub.id, ch: sub.ch}
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	delete(b.subscribers, id)
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish delivers an event to every subscriber whose pattern matches
// topic. Ordering is guaranteed per source, not globally.
// Delivery never blocks the publisher: a full subscriber queue drops its
// oldest buffered event to make room for the new one.
func (b *Bus) Publish(topic, source string, payload []byte, correlationID string) models.Event {
	if b.redactor != nil && len(payload) > 0 {
		payload = []byte(b.redactor.Redact(string(payload)))
	}

	evt := models.Event{
		ID:            uuid.NewString(),
		Type:          topic,
		Source:        source,
		Payload:       payload,
		Timestamp:     time.Now(),
		Sequence:      b.nextSequence(source),
		CorrelationID: correlationID,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if !matchGlob(sub.pattern, topic) {
			continue
		}
		b.deliver(sub, evt)
	}

	return evt
}

func (b *Bus) deliver(sub *subscriber, evt models.Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	select {
	case sub.ch <- evt:
		return
	default:
	}

	// Queue full: drop the oldest buffered event, then deliver the new one.
	select {
	case <-sub.ch:
		b.drops.Add(1)
		eventsDroppedTotal.Inc()
	default:
	}
	select {
	case sub.ch <- evt:
	default:
		// Another goroutine raced us and refilled the queue; count this as
		// a drop of the event we were trying to deliver.
		b.drops.Add(1)
		eventsDroppedTotal.Inc()
	}
}

// DropCount returns the cumulative number of events dropped across all
// subscribers due to queue overflow, for observability.
func (b *Bus) DropCount() int64 {
	return b.drops.Load()
}

func (b *Bus) nextSequence(source string) uint64 {
	v, _ := b.sequences.LoadOrStore(source, new(uint64))
	counter := v.(*uint64)
	return atomic.AddUint64(counter, 1)
}

// matchGlob reports whether topic matches pattern, where pattern segments
// are separated by "." and "*" matches exactly one segment.
func matchGlob(pattern, topic string) bool {
	if pattern == "" || pattern == topic {
		return true
	}
	pSegs := strings.Split(pattern, ".")
	tSegs := strings.Split(topic, ".")
	if len(pSegs) != len(tSegs) {
		return false
	}
	for i, p := range pSegs {
		if p != "*" && p != tSegs[i] {
			return false
		}
	}
	return true
}
