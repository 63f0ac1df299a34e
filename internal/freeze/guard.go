// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

// Package freeze maintains the frozen interaction envelope applied to
// principals who have not yet passed authentication.
//
// A frozen principal keeps its connection but loses every environment-
// mutating capability: movement reverts, damage is suppressed in both
// directions, chat and commands are blocked, and the inventory is replaced
// by a single pinned slot that may only hold the authentication artifact.
// Freezing snapshots the avatar's carried items and orientation; unfreeze
// is the only path that restores them.
package freeze

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/embermush/embermush/internal/world"
)

// PinnedSlot is the carry slot the authentication artifact is locked to.
const PinnedSlot = 0

// DownPitch is the vertical look angle forced while the artifact is held,
// keeping a scannable code in frame.
const DownPitch = 90

// pitchTolerance avoids re-forcing the pitch on sub-perceptual drift.
const pitchTolerance = 0.1

// DefaultViewLockInterval throttles the corrective-orientation pass. The
// pass deliberately does not run every tick to bound overhead.
const DefaultViewLockInterval = 100 * time.Millisecond

// State is the saved world-state snapshot for one frozen principal.
type State struct {
	SavedContents    []*world.Item
	SavedOrientation world.Orientation
}

// Notices are the user-visible messages emitted when a gated action is
// suppressed with feedback.
type Notices struct {
	Chat    string
	Command string
	Drop    string
}

// Guard owns the frozen set and the gating rule applied to intercepted
// environment actions. Freeze and unfreeze are a boolean toggle guarded by
// set membership; there is no reference counting.
type Guard struct {
	world      *world.World
	isArtifact func(*world.Item) bool
	notices    Notices
	interval   time.Duration

	mu     sync.Mutex
	frozen map[ulid.ULID]*State
}

// NewGuard creates a Guard. isArtifact is the predicate supplied by the
// artifact issuer; the guard never inspects item metadata itself.
func NewGuard(w *world.World, isArtifact func(*world.Item) bool, notices Notices) (*Guard, error) {
	if w == nil {
		return nil, oops.Errorf("world is required")
	}
	if isArtifact == nil {
		return nil, oops.Errorf("artifact predicate is required")
	}
	return &Guard{
		world:      w,
		isArtifact: isArtifact,
		notices:    notices,
		interval:   DefaultViewLockInterval,
		frozen:     make(map[ulid.ULID]*State),
	}, nil
}

// SetViewLockInterval overrides the corrective pass throttle. Zero or
// negative values keep the default.
func (g *Guard) SetViewLockInterval(d time.Duration) {
	if d > 0 {
		g.interval = d
	}
}

// Freeze applies the frozen envelope to a principal. Idempotent: freezing
// an already-frozen principal is a no-op. Returns an error only when the
// principal is not in the world.
func (g *Guard) Freeze(id ulid.ULID) error {
	a := g.world.Get(id)
	if a == nil {
		return oops.Code("FREEZE_NOT_CONNECTED").
			With("principal_id", id.String()).
			Errorf("principal %s is not in the world", id.String())
	}

	g.mu.Lock()
	if _, ok := g.frozen[id]; ok {
		g.mu.Unlock()
		return nil
	}
	state := &State{
		SavedContents:    a.SnapshotInventory(),
		SavedOrientation: a.Orientation(),
	}
	g.frozen[id] = state
	g.mu.Unlock()

	a.ClearInventory()
	a.SetHeldSlot(PinnedSlot)
	a.SetSpeeds(0, 0)
	a.SetInvulnerable(true)
	a.SetCollidable(false)
	a.SetStamina(world.MaxStamina)
	a.SetHidden(true)
	// Orientation is recorded but not altered here; the corrective pass
	// forces the pitch only once the artifact is actually in hand.

	slog.Debug("principal frozen", "principal_id", id.String(), "name", a.Name())
	return nil
}

// Unfreeze lifts the frozen envelope and restores the snapshot exactly as
// taken. Idempotent: unknown or already-unfrozen principals are a no-op.
// This is the only path that clears frozen status; every exit route
// (success, timeout, kick, disconnect) goes through here exactly once.
func (g *Guard) Unfreeze(id ulid.ULID) {
	g.mu.Lock()
	state, ok := g.frozen[id]
	if !ok {
		g.mu.Unlock()
		return
	}
	delete(g.frozen, id)
	g.mu.Unlock()

	a := g.world.Get(id)
	if a == nil {
		// Principal left mid-unfreeze; nothing to restore onto.
		slog.Debug("unfreeze for departed principal", "principal_id", id.String())
		return
	}

	a.RestoreInventory(state.SavedContents)
	a.SetOrientation(state.SavedOrientation)
	a.SetSpeeds(world.DefaultWalkSpeed, world.DefaultFlySpeed)
	a.SetInvulnerable(false)
	a.SetCollidable(true)
	a.SetHidden(false)

	slog.Debug("principal unfrozen", "principal_id", id.String(), "name", a.Name())
}

// IsFrozen reports frozen-set membership.
func (g *Guard) IsFrozen(id ulid.ULID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.frozen[id]
	return ok
}

// Count returns the number of currently frozen principals.
func (g *Guard) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.frozen)
}

// Run drives the corrective-orientation pass until ctx is cancelled. While
// a frozen principal holds the artifact in the pinned slot, its vertical
// look angle is forced to DownPitch so the scannable code stays in frame.
func (g *Guard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.viewLockPass()
		}
	}
}

// viewLockPass applies one corrective sweep over the frozen set. A
// principal that disconnected mid-iteration is skipped silently.
func (g *Guard) viewLockPass() {
	g.mu.Lock()
	ids := make([]ulid.ULID, 0, len(g.frozen))
	for id := range g.frozen {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	for _, id := range ids {
		a := g.world.Get(id)
		if a == nil {
			continue
		}
		if !g.isArtifact(a.ItemAt(PinnedSlot)) {
			continue
		}
		if math.Abs(float64(a.Orientation().Pitch-DownPitch)) > pitchTolerance {
			a.SetPitch(DownPitch)
		}
	}
}
