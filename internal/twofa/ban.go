// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package twofa

import "time"

// BanConfig tunes the failed-attempt lockout. A MaxFailedAttempts of zero
// or less disables the feature entirely.
type BanConfig struct {
	MaxFailedAttempts int
	BanDuration       time.Duration
}

// FailureOutcome reports what a recorded failure did to the record.
type FailureOutcome struct {
	// Banned is true when this failure reached the threshold.
	Banned bool

	// RemainingAttempts is how many failures are left before a ban.
	// Meaningless when Banned is true or the feature is disabled.
	RemainingAttempts int
}

// BanPolicy decides whether a principal may attempt authentication now and
// computes ban escalation on failure. Pure given (record, now, config).
type BanPolicy struct {
	cfg BanConfig
}

// NewBanPolicy creates a BanPolicy.
func NewBanPolicy(cfg BanConfig) *BanPolicy {
	return &BanPolicy{cfg: cfg}
}

// Enabled reports whether failed-attempt tracking is active.
func (p *BanPolicy) Enabled() bool {
	return p.cfg.MaxFailedAttempts > 0
}

// IsBanned reports whether the record's ban is still in force at now.
// Always false when the feature is disabled.
func (p *BanPolicy) IsBanned(r *Record, now time.Time) bool {
	if !p.Enabled() {
		return false
	}
	return r.BanExpiresAt.After(now)
}

// RecordFailure increments the failure counter and, at the threshold, sets
// the ban expiry on the record.
func (p *BanPolicy) RecordFailure(r *Record, now time.Time) FailureOutcome {
	r.FailedAttempts++
	if p.Enabled() && r.FailedAttempts >= p.cfg.MaxFailedAttempts {
		r.BanExpiresAt = now.Add(p.cfg.BanDuration)
		return FailureOutcome{Banned: true}
	}
	return FailureOutcome{RemainingAttempts: p.cfg.MaxFailedAttempts - r.FailedAttempts}
}

// RecordSuccess resets the failure counter and expires any active ban,
// unconditionally.
func (p *BanPolicy) RecordSuccess(r *Record) {
	r.FailedAttempts = 0
	r.BanExpiresAt = time.Time{}
}

// BanDuration returns the configured ban length.
func (p *BanPolicy) BanDuration() time.Duration {
	return p.cfg.BanDuration
}
