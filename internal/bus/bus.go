// Package bus is an in-process publish/subscribe channel for workspace
// change notifications. Topics are tab ids.
package bus

import (
	"sync"

	"github.com/google/uuid"
)

// Kind names a notification.
type Kind string

const (
	// Reload is emitted after the overlay was overwritten by the workspace
	// engine (fork, checkout, delete).
	Reload Kind = "reload"

	// OverlayChanged is emitted after the overlay was edited.
	OverlayChanged Kind = "overlay-changed"
)

// Event is a single notification. A redelivered event keeps its ID.
type Event struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
	Kind  Kind   `json:"kind"`
}

// NewEvent returns an event with a fresh id.
func NewEvent(topic string, kind Kind) Event {
	return Event{ID: uuid.NewString(), Topic: topic, Kind: kind}
}

type subscription struct {
	id uint64
	fn func(Event)
}

// Bus delivers events synchronously to the subscribers of their topic, in
// subscription order. Handlers run outside the bus lock and may publish or
// subscribe themselves.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers fn for topic. The returned function removes it.
func (b *Bus) Subscribe(topic string, fn func(Event)) (cancel func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[topic]
			for i, s := range subs {
				if s.id == id {
					b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}
}

// Publish delivers ev to every subscriber of ev.Topic.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[ev.Topic]...)
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(ev)
	}
}
