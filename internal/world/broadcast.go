// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package world

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
)

// EventType classifies a broadcast event.
type EventType string

// Broadcast event types.
const (
	EventAnnounce EventType = "announce"
	EventChat     EventType = "chat"
)

// Event is a message fanned out to connected principals.
type Event struct {
	Type    EventType
	Actor   ulid.ULID // zero for system events
	Message string
}

// Broadcaster distributes world events to subscribers. Each connection
// handler subscribes once and drains its channel until unsubscribed.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[ulid.ULID]chan Event
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[ulid.ULID]chan Event),
	}
}

// Subscribe creates a buffered event channel for a principal, replacing
// any previous subscription.
func (b *Broadcaster) Subscribe(id ulid.ULID) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subs[id]; ok {
		close(old)
	}
	ch := make(chan Event, 100)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes and closes a principal's event channel.
func (b *Broadcaster) Unsubscribe(id ulid.ULID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

// Broadcast sends an event to every subscriber. A subscriber whose buffer
// is full misses the event; delivery is best effort.
func (b *Broadcaster) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			slog.Warn("event dropped: subscriber buffer full",
				"principal_id", id.String(),
				"event_type", string(event.Type),
			)
		}
	}
}
