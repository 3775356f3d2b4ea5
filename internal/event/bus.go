// Package event provides the shell's synchronous notification bus.
//
// Components publish lifecycle events under dotted topic names; subscribers
// run inline on the publisher's goroutine in subscription order. The bus is
// deliberately small: no queues, no async dispatch, no pattern matching
// beyond the single "*" wildcard.
package event

import (
	"sync"

	"github.com/google/uuid"
)

// Wildcard subscribes to every topic.
const Wildcard = "*"

// Event is one published notification.
type Event struct {
	Topic   string
	Payload any
}

// Handler receives published events.
type Handler func(Event)

// Logger is the subset of the shell logger the bus uses.
type Logger interface {
	Error(msg string, args ...any)
}

// Bus is a mutex-guarded topic fanout.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]subscription
	log  Logger
}

type subscription struct {
	id      string
	handler Handler
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report recovered handler panics.
func WithLogger(log Logger) Option {
	return func(b *Bus) {
		b.log = log
	}
}

// New creates an event bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs: make(map[string][]subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for a topic (or Wildcard for all topics)
// and returns the subscription ID.
func (b *Bus) Subscribe(topic string, h Handler) string {
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})
	return id
}

// Unsubscribe removes a subscription by ID. Returns false for unknown IDs.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subs {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			return true
		}
	}
	return false
}

// Publish delivers an event to the topic's subscribers, then to wildcard
// subscribers. Handlers run synchronously in subscription order; a
// panicking handler is recovered and logged so the rest still run.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	handlers := make([]subscription, 0, len(b.subs[topic])+len(b.subs[Wildcard]))
	handlers = append(handlers, b.subs[topic]...)
	if topic != Wildcard {
		handlers = append(handlers, b.subs[Wildcard]...)
	}
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, sub := range handlers {
		b.dispatch(sub, ev)
	}
}

func (b *Bus) dispatch(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.Error("event handler panic on %s: %v", ev.Topic, r)
		}
	}()
	sub.handler(ev)
}

// SubscriberCount returns the number of subscriptions for a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
