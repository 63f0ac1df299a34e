// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package world

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embermush/embermush/pkg/errutil"
)

func TestWorld_Join(t *testing.T) {
	t.Run("places avatar at spawn", func(t *testing.T) {
		spawn := Position{X: 8, Y: 64, Z: -3}
		w := New(spawn)
		a := NewAvatar(ulid.Make(), "Ember", "203.0.113.9:51000")

		require.NoError(t, w.Join(a))

		assert.Equal(t, spawn, a.Position())
		assert.Same(t, a, w.Get(a.ID()))
	})

	t.Run("rejects a second embodiment of the same principal", func(t *testing.T) {
		w := New(Position{})
		id := ulid.Make()
		first := NewAvatar(id, "Ember", "203.0.113.9:51000")
		second := NewAvatar(id, "Ember", "198.51.100.4:40210")

		require.NoError(t, w.Join(first))

		err := w.Join(second)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "WORLD_ALREADY_JOINED")
		assert.Same(t, first, w.Get(id), "original embodiment must survive")
	})
}

func TestWorld_Leave(t *testing.T) {
	w := New(Position{})
	a := NewAvatar(ulid.Make(), "Ember", "203.0.113.9:51000")
	require.NoError(t, w.Join(a))

	w.Leave(a.ID())
	assert.Nil(t, w.Get(a.ID()))

	// Disconnects can race; the second removal is a no-op.
	w.Leave(a.ID())
	assert.Nil(t, w.Get(a.ID()))
}

func TestWorld_Get_UnknownPrincipal(t *testing.T) {
	w := New(Position{})
	assert.Nil(t, w.Get(ulid.Make()))
}

func TestWorld_Each(t *testing.T) {
	w := New(Position{})
	names := []string{"Ember", "Cinder", "Ash"}
	for _, name := range names {
		require.NoError(t, w.Join(NewAvatar(ulid.Make(), name, "203.0.113.9:51000")))
	}

	seen := make(map[string]bool)
	w.Each(func(a *Avatar) {
		seen[a.Name()] = true
	})

	require.Len(t, seen, len(names))
	for _, name := range names {
		assert.True(t, seen[name], "missing %q", name)
	}
}

func TestWorld_Each_TolerantOfLeaveDuringIteration(t *testing.T) {
	w := New(Position{})
	a := NewAvatar(ulid.Make(), "Ember", "203.0.113.9:51000")
	b := NewAvatar(ulid.Make(), "Cinder", "198.51.100.4:40210")
	require.NoError(t, w.Join(a))
	require.NoError(t, w.Join(b))

	var visited int
	w.Each(func(av *Avatar) {
		w.Leave(a.ID())
		w.Leave(b.ID())
		visited++
	})

	assert.Equal(t, 2, visited, "snapshot must cover avatars removed mid-pass")
}

func TestWorld_Announce(t *testing.T) {
	w := New(Position{})
	id := ulid.Make()
	ch := w.Broadcaster().Subscribe(id)
	defer w.Broadcaster().Unsubscribe(id)

	w.Announce("Ember joined the world")

	select {
	case ev := <-ch:
		assert.Equal(t, EventAnnounce, ev.Type)
		assert.Equal(t, "Ember joined the world", ev.Message)
		assert.Equal(t, ulid.ULID{}, ev.Actor, "system events carry no actor")
	case <-time.After(time.Second):
		t.Fatal("announce never reached subscriber")
	}
}

func TestBroadcaster_Subscribe_ReplacesPrevious(t *testing.T) {
	b := NewBroadcaster()
	id := ulid.Make()

	old := b.Subscribe(id)
	fresh := b.Subscribe(id)

	_, open := <-old
	assert.False(t, open, "replaced channel must be closed")

	b.Broadcast(Event{Type: EventChat, Actor: id, Message: "hi"})
	select {
	case ev := <-fresh:
		assert.Equal(t, "hi", ev.Message)
	case <-time.After(time.Second):
		t.Fatal("event never reached replacement subscriber")
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster()
	id := ulid.Make()
	ch := b.Subscribe(id)

	b.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open, "unsubscribed channel must be closed")

	// Unknown ids are ignored.
	b.Unsubscribe(ulid.Make())
}

func TestBroadcaster_FullBufferDropsEvent(t *testing.T) {
	b := NewBroadcaster()
	id := ulid.Make()
	ch := b.Subscribe(id)

	for i := 0; i < cap(ch)+5; i++ {
		b.Broadcast(Event{Type: EventChat, Message: "flood"})
	}

	assert.Len(t, ch, cap(ch), "overflow events are dropped, not queued")
}

func TestAvatar_Defaults(t *testing.T) {
	a := NewAvatar(ulid.Make(), "Ember", "203.0.113.9:51000")

	walk, fly := a.Speeds()
	assert.InDelta(t, DefaultWalkSpeed, walk, 1e-6)
	assert.InDelta(t, DefaultFlySpeed, fly, 1e-6)
	assert.True(t, a.Collidable())
	assert.False(t, a.Invulnerable())
	assert.False(t, a.Hidden())
	assert.False(t, a.Vanished())
	assert.Equal(t, MaxStamina, a.Stamina())
	assert.Equal(t, 0, a.HeldSlot())
}

func TestAvatar_InventorySlots(t *testing.T) {
	a := NewAvatar(ulid.Make(), "Ember", "203.0.113.9:51000")
	it := &Item{Name: "map", Tags: map[string]string{"origin": "setup"}}

	a.SetItem(3, it)
	assert.Same(t, it, a.ItemAt(3))

	t.Run("out of range is ignored", func(t *testing.T) {
		a.SetItem(-1, it)
		a.SetItem(InventorySize, it)
		assert.Nil(t, a.ItemAt(-1))
		assert.Nil(t, a.ItemAt(InventorySize))
	})

	t.Run("held slot is clamped to valid range", func(t *testing.T) {
		a.SetHeldSlot(5)
		assert.Equal(t, 5, a.HeldSlot())
		a.SetHeldSlot(InventorySize)
		assert.Equal(t, 5, a.HeldSlot())
		a.SetHeldSlot(-2)
		assert.Equal(t, 5, a.HeldSlot())
	})
}

func TestAvatar_SnapshotInventory_DeepCopies(t *testing.T) {
	a := NewAvatar(ulid.Make(), "Ember", "203.0.113.9:51000")
	a.SetItem(0, &Item{
		Name: "map",
		Tags: map[string]string{"origin": "setup"},
		Data: []byte{0x01, 0x02},
	})

	snap := a.SnapshotInventory()
	require.Len(t, snap, InventorySize)
	require.NotNil(t, snap[0])

	// Mutating the snapshot must not leak into the live inventory.
	snap[0].Tags["origin"] = "tampered"
	snap[0].Data[0] = 0xFF

	live := a.ItemAt(0)
	assert.Equal(t, "setup", live.Tags["origin"])
	assert.Equal(t, byte(0x01), live.Data[0])
}

func TestAvatar_RestoreInventory(t *testing.T) {
	a := NewAvatar(ulid.Make(), "Ember", "203.0.113.9:51000")
	a.SetItem(0, &Item{Name: "stale"})
	a.SetItem(10, &Item{Name: "stale"})

	restored := &Item{Name: "map", Tags: map[string]string{"origin": "setup"}}
	a.RestoreInventory([]*Item{nil, restored})

	assert.Nil(t, a.ItemAt(0))
	require.NotNil(t, a.ItemAt(1))
	assert.Equal(t, "map", a.ItemAt(1).Name)
	assert.Nil(t, a.ItemAt(10), "slots beyond the snapshot are cleared")

	// The restore copies; later mutation of the source is invisible.
	restored.Tags["origin"] = "tampered"
	assert.Equal(t, "setup", a.ItemAt(1).Tags["origin"])
}

func TestAvatar_ClearInventory(t *testing.T) {
	a := NewAvatar(ulid.Make(), "Ember", "203.0.113.9:51000")
	a.SetItem(2, &Item{Name: "map"})
	a.SetItem(35, &Item{Name: "torch"})

	a.ClearInventory()

	for slot := 0; slot < InventorySize; slot++ {
		assert.Nil(t, a.ItemAt(slot), "slot %d", slot)
	}
}

func TestItem_HasTag(t *testing.T) {
	it := &Item{Tags: map[string]string{"origin": "setup"}}
	assert.True(t, it.HasTag("origin"))
	assert.False(t, it.HasTag("missing"))

	var nilItem *Item
	assert.False(t, nilItem.HasTag("origin"))
}

func TestActionKind_String(t *testing.T) {
	tests := []struct {
		kind ActionKind
		want string
	}{
		{ActionMove, "move"},
		{ActionChat, "chat"},
		{ActionDropItem, "drop_item"},
		{ActionHeldSlotChange, "held_slot_change"},
		{ActionKind(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}
