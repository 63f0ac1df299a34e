// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package world

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// InventorySize is the number of carry slots per avatar.
const InventorySize = 36

// Default movement speeds restored on unfreeze.
const (
	DefaultWalkSpeed = 0.2
	DefaultFlySpeed  = 0.1
)

// MaxStamina is the stamina ceiling an avatar is topped up to while frozen.
const MaxStamina = 20

// Orientation is a two-axis look vector in degrees.
type Orientation struct {
	Yaw   float32
	Pitch float32
}

// Position is a location in the world.
type Position struct {
	X, Y, Z float64
}

// Avatar is a connected principal's embodiment in the world. All accessors
// are safe for concurrent use; the corrective-orientation pass and the
// principal's own event handler may touch an avatar from different
// goroutines.
type Avatar struct {
	mu sync.Mutex

	id   ulid.ULID
	name string
	addr string

	pos         Position
	orientation Orientation
	inventory   [InventorySize]*Item
	heldSlot    int

	walkSpeed float32
	flySpeed  float32

	invulnerable bool
	collidable   bool
	hidden       bool
	vanished     bool
	stamina      int
}

// NewAvatar creates an avatar for a principal connecting from addr.
func NewAvatar(id ulid.ULID, name, addr string) *Avatar {
	return &Avatar{
		id:         id,
		name:       name,
		addr:       addr,
		walkSpeed:  DefaultWalkSpeed,
		flySpeed:   DefaultFlySpeed,
		collidable: true,
		stamina:    MaxStamina,
	}
}

// ID returns the principal identifier.
func (a *Avatar) ID() ulid.ULID { return a.id }

// Name returns the display name.
func (a *Avatar) Name() string { return a.name }

// Addr returns the remote network address the principal connected from.
func (a *Avatar) Addr() string { return a.addr }

// Position returns the current position.
func (a *Avatar) Position() Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

// SetPosition moves the avatar.
func (a *Avatar) SetPosition(p Position) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pos = p
}

// Orientation returns the current look vector.
func (a *Avatar) Orientation() Orientation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orientation
}

// SetOrientation replaces the look vector.
func (a *Avatar) SetOrientation(o Orientation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orientation = o
}

// SetPitch forces only the vertical look angle.
func (a *Avatar) SetPitch(pitch float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orientation.Pitch = pitch
}

// SnapshotInventory returns a deep copy of all carry slots.
func (a *Avatar) SnapshotInventory() []*Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Item, InventorySize)
	for i, it := range a.inventory {
		out[i] = cloneItem(it)
	}
	return out
}

// RestoreInventory replaces all carry slots from a snapshot.
func (a *Avatar) RestoreInventory(items []*Item) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.inventory {
		a.inventory[i] = nil
	}
	for i, it := range items {
		if i >= InventorySize {
			break
		}
		a.inventory[i] = cloneItem(it)
	}
}

// ClearInventory empties all carry slots.
func (a *Avatar) ClearInventory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.inventory {
		a.inventory[i] = nil
	}
}

// ItemAt returns the item in a slot, or nil.
func (a *Avatar) ItemAt(slot int) *Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	if slot < 0 || slot >= InventorySize {
		return nil
	}
	return a.inventory[slot]
}

// SetItem places an item in a slot.
func (a *Avatar) SetItem(slot int, it *Item) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if slot < 0 || slot >= InventorySize {
		return
	}
	a.inventory[slot] = it
}

// HeldSlot returns the active carry slot index.
func (a *Avatar) HeldSlot() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heldSlot
}

// SetHeldSlot pins the active carry slot.
func (a *Avatar) SetHeldSlot(slot int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if slot >= 0 && slot < InventorySize {
		a.heldSlot = slot
	}
}

// Speeds returns the walk and fly speeds.
func (a *Avatar) Speeds() (walk, fly float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.walkSpeed, a.flySpeed
}

// SetSpeeds sets the walk and fly speeds.
func (a *Avatar) SetSpeeds(walk, fly float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.walkSpeed = walk
	a.flySpeed = fly
}

// Invulnerable reports damage immunity.
func (a *Avatar) Invulnerable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.invulnerable
}

// SetInvulnerable grants or clears damage immunity.
func (a *Avatar) SetInvulnerable(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invulnerable = v
}

// Collidable reports whether other entities collide with the avatar.
func (a *Avatar) Collidable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.collidable
}

// SetCollidable sets collidability.
func (a *Avatar) SetCollidable(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.collidable = v
}

// Hidden reports whether the avatar is suppressed from other principals'
// view (the freeze envelope, not operator vanish).
func (a *Avatar) Hidden() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hidden
}

// SetHidden suppresses or restores visibility to others.
func (a *Avatar) SetHidden(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hidden = v
}

// Vanished reports operator-level invisibility. Vanished principals never
// get join broadcasts.
func (a *Avatar) Vanished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.vanished
}

// SetVanished marks operator-level invisibility.
func (a *Avatar) SetVanished(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vanished = v
}

// Stamina returns the current stamina level.
func (a *Avatar) Stamina() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stamina
}

// SetStamina sets the stamina level.
func (a *Avatar) SetStamina(v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stamina = v
}
