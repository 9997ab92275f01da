package server

import (
	"sync"

	"github.com/jugalmahida/prodevscore/internal/channel"
)

// Broadcaster fans one review session's channel events out to every
// browser tab streaming that session.
type Broadcaster interface {
	Subscribe() (int, <-chan channel.Event)
	Unsubscribe(id int)
	Broadcast(ev channel.Event)
	SubscriberCount() int
}

// EventBroadcaster implements the Broadcaster interface
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[int]chan channel.Event
	nextID      int
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster() Broadcaster {
	return &EventBroadcaster{
		subscribers: make(map[int]chan channel.Event),
		nextID:      1,
	}
}

// Subscribe adds a new subscriber.
// Returns a subscriber ID and event channel
func (b *EventBroadcaster) Subscribe() (int, <-chan channel.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan channel.Event, 16) // Buffer to prevent blocking
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *EventBroadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Broadcast sends an event to all subscribers.
// Non-blocking: if a subscriber's channel is full, the event is dropped
// for that subscriber; the session snapshot endpoint recovers the state.
func (b *EventBroadcaster) Broadcast(ev channel.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Channel full, drop event for this subscriber
		}
	}
}

// SubscriberCount returns the current number of subscribers (for testing)
func (b *EventBroadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
