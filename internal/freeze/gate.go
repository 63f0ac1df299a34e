// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package freeze

import (
	"github.com/embermush/embermush/internal/world"
)

// Verdict is the gating decision for one intercepted action.
type Verdict struct {
	// Allowed is false when the action must be suppressed.
	Allowed bool

	// RevertPosition asks the caller to snap the principal back to the
	// pre-action position instead of dropping the action outright.
	RevertPosition bool

	// Notice is a user-visible message to deliver alongside suppression,
	// empty when the action is dropped silently.
	Notice string
}

var allow = Verdict{Allowed: true}

// Gate applies the frozen-envelope rule set to an intercepted action.
// Actions by principals that are not frozen pass through untouched.
func (g *Guard) Gate(a world.Action) Verdict {
	if !g.IsFrozen(a.Principal) {
		return allow
	}

	switch a.Kind {
	case world.ActionMove:
		return Verdict{RevertPosition: true}

	case world.ActionTeleport:
		return Verdict{}

	case world.ActionDealDamage, world.ActionTakeDamage:
		return Verdict{}

	case world.ActionChat:
		return Verdict{Notice: g.notices.Chat}

	case world.ActionCommand:
		return Verdict{Notice: g.notices.Command}

	case world.ActionInventoryInspect:
		// The authentication artifact may be looked at; everything else
		// in the inventory is off limits (it is empty during freeze
		// anyway, but the rule must not depend on that).
		if g.isArtifact(a.Item) {
			return allow
		}
		return Verdict{}

	case world.ActionInventoryMove:
		return Verdict{}

	case world.ActionDropItem:
		if g.isArtifact(a.Item) {
			return Verdict{Notice: g.notices.Drop}
		}
		return Verdict{}

	case world.ActionBuild, world.ActionDemolish, world.ActionInteract:
		return Verdict{}

	case world.ActionHeldSlotChange:
		// Suppress and snap the active slot back onto the artifact.
		if av := g.world.Get(a.Principal); av != nil && av.HeldSlot() != PinnedSlot {
			av.SetHeldSlot(PinnedSlot)
		}
		return Verdict{}

	case world.ActionGesture:
		// Discretionary gestures are blocked only while the artifact is
		// in the pinned slot; before that the principal is mid-dialog and
		// the gesture is harmless.
		if av := g.world.Get(a.Principal); av != nil && g.isArtifact(av.ItemAt(PinnedSlot)) {
			return Verdict{}
		}
		return allow

	default:
		return Verdict{}
	}
}
