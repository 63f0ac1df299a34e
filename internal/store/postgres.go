// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

// Package store persists per-principal credential state in PostgreSQL.
//
// TOTP secrets are sealed with XChaCha20-Poly1305 before they touch the
// database. Every setter is a single upsert, so a write is durable as soon
// as it returns.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// connectAttempts bounds the startup ping retry loop.
const connectAttempts = 5

// poolIface abstracts pgxpool.Pool so unit tests can substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Connect opens a connection pool and waits for the database to answer,
// retrying with fibonacci backoff. The database commonly starts alongside
// the server; a cold standby should not fail the boot.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectAttempts, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}

// CredentialStore is the PostgreSQL credential store. It satisfies the
// authentication core's RecordStore and Directory contracts.
type CredentialStore struct {
	pool   poolIface
	sealer *sealer
}

// NewCredentialStore creates a CredentialStore over an open pool. sealKey
// must be SealKeySize bytes; secrets are sealed with it before storage.
func NewCredentialStore(pool poolIface, sealKey []byte) (*CredentialStore, error) {
	if pool == nil {
		return nil, oops.Errorf("pool is required")
	}
	s, err := newSealer(sealKey)
	if err != nil {
		return nil, err
	}
	return &CredentialStore{pool: pool, sealer: s}, nil
}

// Close releases the underlying pool.
func (s *CredentialStore) Close() {
	s.pool.Close()
}

// HasSecret reports whether a secret is stored for the principal.
func (s *CredentialStore) HasSecret(ctx context.Context, id ulid.ULID) (bool, error) {
	var present bool
	err := s.pool.QueryRow(ctx,
		`SELECT secret IS NOT NULL FROM twofa_credentials WHERE principal_id = $1`,
		id.String()).Scan(&present)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, oops.With("operation", "has secret").With("principal_id", id.String()).Wrap(err)
	}
	return present, nil
}

// GetSecret returns the principal's TOTP secret, or "" when none is stored.
func (s *CredentialStore) GetSecret(ctx context.Context, id ulid.ULID) (string, error) {
	var sealed []byte
	err := s.pool.QueryRow(ctx,
		`SELECT secret FROM twofa_credentials WHERE principal_id = $1`,
		id.String()).Scan(&sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", oops.With("operation", "get secret").With("principal_id", id.String()).Wrap(err)
	}
	if sealed == nil {
		return "", nil
	}
	plaintext, err := s.sealer.open(sealed)
	if err != nil {
		return "", oops.With("operation", "unseal secret").With("principal_id", id.String()).Wrap(err)
	}
	return string(plaintext), nil
}

// SetSecret seals and stores the principal's TOTP secret.
func (s *CredentialStore) SetSecret(ctx context.Context, id ulid.ULID, secret string) error {
	sealed, err := s.sealer.seal([]byte(secret))
	if err != nil {
		return oops.With("operation", "seal secret").With("principal_id", id.String()).Wrap(err)
	}
	return s.upsert(ctx, id, "secret", sealed)
}

// IsEnrolled reports whether the principal completed registration.
func (s *CredentialStore) IsEnrolled(ctx context.Context, id ulid.ULID) (bool, error) {
	var enrolled bool
	err := s.pool.QueryRow(ctx,
		`SELECT enrolled FROM twofa_credentials WHERE principal_id = $1`,
		id.String()).Scan(&enrolled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, oops.With("operation", "is enrolled").With("principal_id", id.String()).Wrap(err)
	}
	return enrolled, nil
}

// SetEnrolled marks registration complete (or clears it).
func (s *CredentialStore) SetEnrolled(ctx context.Context, id ulid.ULID, enrolled bool) error {
	return s.upsert(ctx, id, "enrolled", enrolled)
}

// GetLastTrustedAddress returns the address of the last successful
// verification, or "".
func (s *CredentialStore) GetLastTrustedAddress(ctx context.Context, id ulid.ULID) (string, error) {
	var addr string
	err := s.pool.QueryRow(ctx,
		`SELECT last_trusted_addr FROM twofa_credentials WHERE principal_id = $1`,
		id.String()).Scan(&addr)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", oops.With("operation", "get trusted address").With("principal_id", id.String()).Wrap(err)
	}
	return addr, nil
}

// SetLastTrustedAddress records the address of a successful verification.
func (s *CredentialStore) SetLastTrustedAddress(ctx context.Context, id ulid.ULID, addr string) error {
	return s.upsert(ctx, id, "last_trusted_addr", addr)
}

// GetLastSuccessAt returns the time of the last successful verification,
// or the zero time.
func (s *CredentialStore) GetLastSuccessAt(ctx context.Context, id ulid.ULID) (time.Time, error) {
	var at *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT last_success_at FROM twofa_credentials WHERE principal_id = $1`,
		id.String()).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, oops.With("operation", "get last success").With("principal_id", id.String()).Wrap(err)
	}
	if at == nil {
		return time.Time{}, nil
	}
	return *at, nil
}

// SetLastSuccessAt records the time of a successful verification.
func (s *CredentialStore) SetLastSuccessAt(ctx context.Context, id ulid.ULID, at time.Time) error {
	return s.upsert(ctx, id, "last_success_at", nullableTime(at))
}

// GetFailedAttempts returns the consecutive failed-attempt count.
func (s *CredentialStore) GetFailedAttempts(ctx context.Context, id ulid.ULID) (int, error) {
	var attempts int
	err := s.pool.QueryRow(ctx,
		`SELECT failed_attempts FROM twofa_credentials WHERE principal_id = $1`,
		id.String()).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, oops.With("operation", "get failed attempts").With("principal_id", id.String()).Wrap(err)
	}
	return attempts, nil
}

// SetFailedAttempts stores the consecutive failed-attempt count.
func (s *CredentialStore) SetFailedAttempts(ctx context.Context, id ulid.ULID, attempts int) error {
	return s.upsert(ctx, id, "failed_attempts", attempts)
}

// GetBanExpiry returns when the principal's ban lapses, or the zero time.
func (s *CredentialStore) GetBanExpiry(ctx context.Context, id ulid.ULID) (time.Time, error) {
	var at *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT ban_expires_at FROM twofa_credentials WHERE principal_id = $1`,
		id.String()).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, oops.With("operation", "get ban expiry").With("principal_id", id.String()).Wrap(err)
	}
	if at == nil {
		return time.Time{}, nil
	}
	return *at, nil
}

// SetBanExpiry stores the ban expiry. The zero time clears it.
func (s *CredentialStore) SetBanExpiry(ctx context.Context, id ulid.ULID, at time.Time) error {
	return s.upsert(ctx, id, "ban_expires_at", nullableTime(at))
}

// RemoveAll deletes every stored credential field for a principal.
func (s *CredentialStore) RemoveAll(ctx context.Context, id ulid.ULID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM twofa_credentials WHERE principal_id = $1`, id.String())
	if err != nil {
		return oops.With("operation", "remove credentials").With("principal_id", id.String()).Wrap(err)
	}
	return nil
}

// Flush is the shutdown durability checkpoint. Writes here are synchronous
// upserts, so verifying the connection is all that remains.
func (s *CredentialStore) Flush(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.With("operation", "flush").Wrap(err)
	}
	return nil
}

// EnsurePrincipal returns the stable identifier for a principal name,
// minting one on first contact. Concurrent first contacts for the same
// name race on the unique index; the loser re-reads the winner's row.
func (s *CredentialStore) EnsurePrincipal(ctx context.Context, name string) (ulid.ULID, error) {
	id, found, err := s.Resolve(ctx, name)
	if err != nil {
		return ulid.ULID{}, err
	}
	if found {
		return id, nil
	}

	id = ulid.Make()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO principals (id, name) VALUES ($1, $2)`, id.String(), name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			id, found, err = s.Resolve(ctx, name)
			if err != nil {
				return ulid.ULID{}, err
			}
			if found {
				return id, nil
			}
		}
		return ulid.ULID{}, oops.With("operation", "ensure principal").With("name", name).Wrap(err)
	}
	return id, nil
}

// Resolve looks up the identifier for a principal name.
func (s *CredentialStore) Resolve(ctx context.Context, name string) (ulid.ULID, bool, error) {
	var idStr string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM principals WHERE name = $1`, name).Scan(&idStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, false, nil
	}
	if err != nil {
		return ulid.ULID{}, false, oops.With("operation", "resolve principal").With("name", name).Wrap(err)
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return ulid.ULID{}, false, oops.Code("STORE_CORRUPT_ID").
			With("name", name).With("id", idStr).Wrap(err)
	}
	return id, true, nil
}

// upsert writes one credential column for a principal, creating the row if
// absent. column is always a compile-time constant.
func (s *CredentialStore) upsert(ctx context.Context, id ulid.ULID, column string, value any) error {
	query := fmt.Sprintf(
		`INSERT INTO twofa_credentials (principal_id, %s) VALUES ($1, $2)
		 ON CONFLICT (principal_id) DO UPDATE SET %s = EXCLUDED.%s`,
		column, column, column)
	if _, err := s.pool.Exec(ctx, query, id.String(), value); err != nil {
		return oops.With("operation", "upsert "+column).With("principal_id", id.String()).Wrap(err)
	}
	return nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
