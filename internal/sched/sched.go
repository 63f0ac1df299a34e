// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

// Package sched provides per-principal one-shot timers for authentication
// deadlines and reminder nudges.
//
// Each principal carries at most one hard deadline and one soft nudge timer.
// Re-arming cancels the previous timer of the same kind. A cancelled or
// superseded timer never invokes its callback: every arm gets a generation
// number, and a firing timer that no longer matches the current generation
// is a silent no-op. That makes the stale-timer invariant directly testable.
package sched

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Scheduler manages deadline and nudge timers keyed by principal.
type Scheduler struct {
	mu      sync.Mutex
	entries map[ulid.ULID]*entry
	now     func() time.Time
}

type entry struct {
	deadline    *time.Timer
	nudge       *time.Timer
	armedAt     time.Time
	deadlineGen uint64
	nudgeGen    uint64
}

// New creates a Scheduler using the wall clock.
func New() *Scheduler {
	return &Scheduler{
		entries: make(map[ulid.ULID]*entry),
		now:     time.Now,
	}
}

// NewWithClock creates a Scheduler with an injected clock for tests. The
// clock only affects RemainingSeconds; timer firing still uses real time.
func NewWithClock(now func() time.Time) *Scheduler {
	return &Scheduler{
		entries: make(map[ulid.ULID]*entry),
		now:     now,
	}
}

// ArmDeadline starts the hard deadline timer for a principal, cancelling any
// previous deadline first. The arm time is recorded for RemainingSeconds.
func (s *Scheduler) ArmDeadline(principal ulid.ULID, d time.Duration, onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.ensureLocked(principal)
	if e.deadline != nil {
		e.deadline.Stop()
	}
	e.deadlineGen++
	e.armedAt = s.now()

	gen := e.deadlineGen
	e.deadline = time.AfterFunc(d, func() {
		if s.claimDeadline(principal, gen) {
			onExpire()
		}
	})
}

// ArmNudge starts the soft reminder timer for a principal, cancelling any
// previous nudge first. The deadline timer and arm time are untouched, so a
// re-requested reminder does not extend the overall budget.
func (s *Scheduler) ArmNudge(principal ulid.ULID, delay time.Duration, onFire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.ensureLocked(principal)
	if e.nudge != nil {
		e.nudge.Stop()
	}
	e.nudgeGen++

	gen := e.nudgeGen
	e.nudge = time.AfterFunc(delay, func() {
		if s.claimNudge(principal, gen) {
			onFire()
		}
	})
}

// CancelNudge stops only the nudge timer, leaving the deadline and the
// recorded arm time untouched. Idempotent.
func (s *Scheduler) CancelNudge(principal ulid.ULID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[principal]
	if !ok {
		return
	}
	if e.nudge != nil {
		e.nudge.Stop()
		e.nudge = nil
	}
	e.nudgeGen++
}

// Cancel stops both timers for a principal and clears the recorded arm
// time. Idempotent; callers invoke it on every terminal transition and on
// disconnect, so a late callback can never resurrect freed state.
func (s *Scheduler) Cancel(principal ulid.ULID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[principal]
	if !ok {
		return
	}
	if e.deadline != nil {
		e.deadline.Stop()
	}
	if e.nudge != nil {
		e.nudge.Stop()
	}
	delete(s.entries, principal)
}

// RemainingSeconds returns max(0, totalBudget - elapsed since the deadline
// was armed), or 0 if nothing is armed. Display only: expiry authority rests
// with the deadline callback, never with this value.
func (s *Scheduler) RemainingSeconds(principal ulid.ULID, totalBudget time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[principal]
	if !ok || e.armedAt.IsZero() {
		return 0
	}
	remaining := totalBudget - s.now().Sub(e.armedAt)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// Shutdown cancels every pending timer. Called once at process teardown.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for principal, e := range s.entries {
		if e.deadline != nil {
			e.deadline.Stop()
		}
		if e.nudge != nil {
			e.nudge.Stop()
		}
		delete(s.entries, principal)
	}
}

// ensureLocked returns the entry for a principal, creating it if absent.
// Caller must hold s.mu.
func (s *Scheduler) ensureLocked(principal ulid.ULID) *entry {
	e, ok := s.entries[principal]
	if !ok {
		e = &entry{}
		s.entries[principal] = e
	}
	return e
}

// claimDeadline reports whether a firing deadline callback is still current.
// A stale generation or a cancelled entry yields false.
func (s *Scheduler) claimDeadline(principal ulid.ULID, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[principal]
	if !ok || e.deadlineGen != gen {
		return false
	}
	e.deadline = nil
	return true
}

// claimNudge is the nudge counterpart of claimDeadline.
func (s *Scheduler) claimNudge(principal ulid.ULID, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[principal]
	if !ok || e.nudgeGen != gen {
		return false
	}
	e.nudge = nil
	return true
}
