// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

// Package world holds the shared environment state: connected avatars,
// their carried items and orientation, and the broadcast fan-out.
package world

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// World tracks connected avatars. Insert, remove and lookup are safe for
// concurrent use across principals.
type World struct {
	mu          sync.RWMutex
	avatars     map[ulid.ULID]*Avatar
	broadcaster *Broadcaster
	spawn       Position
}

// New creates an empty world with the given spawn point.
func New(spawn Position) *World {
	return &World{
		avatars:     make(map[ulid.ULID]*Avatar),
		broadcaster: NewBroadcaster(),
		spawn:       spawn,
	}
}

// Broadcaster returns the world's event fan-out.
func (w *World) Broadcaster() *Broadcaster {
	return w.broadcaster
}

// Spawn returns the world spawn point.
func (w *World) Spawn() Position {
	return w.spawn
}

// Join registers a connected avatar and places it at spawn.
// Returns an error if the principal is already present; the environment
// allows exactly one embodiment per principal.
func (w *World) Join(a *Avatar) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.avatars[a.ID()]; ok {
		return oops.Code("WORLD_ALREADY_JOINED").
			With("principal_id", a.ID().String()).
			Errorf("principal %s already in world", a.ID().String())
	}
	a.SetPosition(w.spawn)
	w.avatars[a.ID()] = a
	return nil
}

// Leave removes an avatar. Unknown principals are ignored; a disconnect may
// race the removal and the second caller just logs.
func (w *World) Leave(id ulid.ULID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.avatars[id]; !ok {
		slog.Debug("leave called for principal not in world", "principal_id", id.String())
		return
	}
	delete(w.avatars, id)
}

// Get returns the avatar for a principal, or nil if not connected.
func (w *World) Get(id ulid.ULID) *Avatar {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.avatars[id]
}

// Each calls fn for every connected avatar. The snapshot is taken up
// front, so fn may tolerate avatars that have disconnected mid-iteration.
func (w *World) Each(fn func(*Avatar)) {
	w.mu.RLock()
	snapshot := make([]*Avatar, 0, len(w.avatars))
	for _, a := range w.avatars {
		snapshot = append(snapshot, a)
	}
	w.mu.RUnlock()

	for _, a := range snapshot {
		fn(a)
	}
}

// Announce broadcasts a system notice to every connected principal.
func (w *World) Announce(message string) {
	w.broadcaster.Broadcast(Event{Type: EventAnnounce, Message: message})
}
