// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package world

import "github.com/oklog/ulid/v2"

// ActionKind classifies an intercepted environment action.
type ActionKind int

// Intercepted action kinds.
const (
	ActionMove ActionKind = iota
	ActionTeleport
	ActionChat
	ActionCommand
	ActionDealDamage
	ActionTakeDamage
	ActionInventoryMove
	ActionInventoryInspect
	ActionDropItem
	ActionBuild
	ActionDemolish
	ActionInteract
	ActionHeldSlotChange
	ActionGesture
)

// String returns the action kind name for logs and metrics labels.
func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "move"
	case ActionTeleport:
		return "teleport"
	case ActionChat:
		return "chat"
	case ActionCommand:
		return "command"
	case ActionDealDamage:
		return "deal_damage"
	case ActionTakeDamage:
		return "take_damage"
	case ActionInventoryMove:
		return "inventory_move"
	case ActionInventoryInspect:
		return "inventory_inspect"
	case ActionDropItem:
		return "drop_item"
	case ActionBuild:
		return "build"
	case ActionDemolish:
		return "demolish"
	case ActionInteract:
		return "interact"
	case ActionHeldSlotChange:
		return "held_slot_change"
	case ActionGesture:
		return "gesture"
	default:
		return "unknown"
	}
}

// Action is one intercepted environment action attributed to a principal.
// Only the fields relevant to the Kind are populated.
type Action struct {
	Kind      ActionKind
	Principal ulid.ULID
	Item      *Item    // inventory and drop actions
	Slot      int      // inventory actions
	From, To  Position // movement
}
