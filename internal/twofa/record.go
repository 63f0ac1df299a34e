// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package twofa

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Record is the in-memory view of a principal's durable credential state.
// The durable copy is owned by the record store; the controller reads it
// at connect time and writes back individual fields as outcomes land.
type Record struct {
	Secret             string
	Enrolled           bool
	LastTrustedAddress string
	LastSuccessAt      time.Time
	FailedAttempts     int
	BanExpiresAt       time.Time
}

// RecordStore is the durable per-principal credential store. All setters
// are durable before the next read of the same key must observe them.
type RecordStore interface {
	HasSecret(ctx context.Context, id ulid.ULID) (bool, error)
	GetSecret(ctx context.Context, id ulid.ULID) (string, error)
	SetSecret(ctx context.Context, id ulid.ULID, secret string) error

	IsEnrolled(ctx context.Context, id ulid.ULID) (bool, error)
	SetEnrolled(ctx context.Context, id ulid.ULID, enrolled bool) error

	GetLastTrustedAddress(ctx context.Context, id ulid.ULID) (string, error)
	SetLastTrustedAddress(ctx context.Context, id ulid.ULID, addr string) error

	GetLastSuccessAt(ctx context.Context, id ulid.ULID) (time.Time, error)
	SetLastSuccessAt(ctx context.Context, id ulid.ULID, at time.Time) error

	GetFailedAttempts(ctx context.Context, id ulid.ULID) (int, error)
	SetFailedAttempts(ctx context.Context, id ulid.ULID, attempts int) error

	GetBanExpiry(ctx context.Context, id ulid.ULID) (time.Time, error)
	SetBanExpiry(ctx context.Context, id ulid.ULID, at time.Time) error

	// RemoveAll deletes every stored field for a principal.
	RemoveAll(ctx context.Context, id ulid.ULID) error

	// Flush is a durability checkpoint, called at shutdown.
	Flush(ctx context.Context) error
}

// loadRecord reads a principal's full credential record.
func loadRecord(ctx context.Context, store RecordStore, id ulid.ULID) (Record, error) {
	var r Record
	var err error

	if r.Secret, err = store.GetSecret(ctx, id); err != nil {
		return Record{}, err
	}
	if r.Enrolled, err = store.IsEnrolled(ctx, id); err != nil {
		return Record{}, err
	}
	if r.LastTrustedAddress, err = store.GetLastTrustedAddress(ctx, id); err != nil {
		return Record{}, err
	}
	if r.LastSuccessAt, err = store.GetLastSuccessAt(ctx, id); err != nil {
		return Record{}, err
	}
	if r.FailedAttempts, err = store.GetFailedAttempts(ctx, id); err != nil {
		return Record{}, err
	}
	if r.BanExpiresAt, err = store.GetBanExpiry(ctx, id); err != nil {
		return Record{}, err
	}
	return r, nil
}
