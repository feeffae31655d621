package api

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/kestrel-auto/drive.assist/internal/adas/pipeline"
)

// EventBroker fans pipeline events out to live SSE subscribers. It implements
// pipeline.EventSink; RecordEvent never blocks, so a slow browser drops events
// rather than stalling the frame path.
type EventBroker struct {
	mu          sync.Mutex
	subscribers map[string]chan pipeline.Event
}

// subscriberBuffer bounds how far a slow consumer may lag before dropping.
const subscriberBuffer = 16

func NewEventBroker() *EventBroker {
	return &EventBroker{
		subscribers: make(map[string]chan pipeline.Event),
	}
}

// RecordEvent implements pipeline.EventSink.
func (b *EventBroker) RecordEvent(ev pipeline.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// subscriber is lagging, skip so as not to block the frame path
		}
	}
}

// Subscribe registers a new event channel and returns its ID for Unsubscribe.
func (b *EventBroker) Subscribe() (string, chan pipeline.Event) {
	buf := make([]byte, 8)
	crand.Read(buf)
	id := hex.EncodeToString(buf)

	ch := make(chan pipeline.Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBroker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Close closes all subscriber channels.
func (b *EventBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
