// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

// Package totp implements RFC 6238 time-based one-time passwords.
//
// Codes are 6 decimal digits over 30-second steps, generated with
// HMAC-SHA1 and the RFC 4226 dynamic truncation, so they interoperate
// with standard authenticator apps. The package is pure: no state, no
// I/O, and the clock is injectable for deterministic tests.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // G505: RFC 6238 mandates HMAC-SHA1 for authenticator interop.
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"time"

	"github.com/samber/oops"
)

// TOTP parameters. Fixed by the provisioning URI contract; changing them
// breaks already-enrolled authenticator apps.
const (
	// Digits is the code length.
	Digits = 6

	// Period is the length of one time step.
	Period = 30 * time.Second

	// SecretBytes is the raw secret length (160 bits, the RFC 4226 minimum).
	SecretBytes = 20
)

// b32 is the secret alphabet: standard base32, no padding characters.
var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Engine generates and verifies time-based one-time codes.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an Engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineWithClock creates an Engine with an injected clock for tests.
func NewEngineWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// GenerateSecret returns a fresh 160-bit secret encoded in unpadded base32.
func (e *Engine) GenerateSecret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("TOTP_ENTROPY_FAILED").Wrap(err)
	}
	return b32.EncodeToString(buf), nil
}

// ProvisioningURI formats an otpauth:// URI embedding issuer, account and
// secret. The output is byte-stable for a given input because it is encoded
// into a scannable artifact; do not reorder the query parameters.
func (e *Engine) ProvisioningURI(issuer, account, secret string) string {
	label := url.QueryEscape(issuer + ":" + account)
	return fmt.Sprintf("otpauth://totp/%s?secret=%s&issuer=%s&digits=%d&period=%d",
		label, secret, url.QueryEscape(issuer), Digits, int(Period.Seconds()))
}

// Verify reports whether code matches the expected value for the current
// time step or any step within ±skewSteps (inclusive).
//
// A code that is not exactly six ASCII digits is rejected without any
// computation. A non-nil error means the secret material itself failed to
// decode; callers must treat that as verification failure (it is a data
// integrity problem, never a user-facing condition).
func (e *Engine) Verify(secret, code string, skewSteps int) (bool, error) {
	if !wellFormed(code) {
		return false, nil
	}
	key, err := b32.DecodeString(secret)
	if err != nil {
		return false, oops.Code("TOTP_SECRET_CORRUPT").Wrap(err)
	}
	step := e.StepAt(e.now())
	for i := -skewSteps; i <= skewSteps; i++ {
		if code == hotp(key, uint64(int64(step)+int64(i))) {
			return true, nil
		}
	}
	return false, nil
}

// CodeAt returns the code for the given time step. Exposed for tests and
// for cross-checking against reference implementations.
func CodeAt(secret string, step uint64) (string, error) {
	key, err := b32.DecodeString(secret)
	if err != nil {
		return "", oops.Code("TOTP_SECRET_CORRUPT").Wrap(err)
	}
	return hotp(key, step), nil
}

// StepAt converts a wall-clock instant to its 30-second step counter.
func (e *Engine) StepAt(t time.Time) uint64 {
	return uint64(t.Unix() / int64(Period.Seconds()))
}

// hotp computes one RFC 4226 code: HMAC-SHA1 over the 8-byte big-endian
// counter, dynamic truncation, reduce modulo 10^6, zero-pad to 6 digits.
func hotp(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	off := sum[len(sum)-1] & 0x0F
	bin := (uint32(sum[off])&0x7F)<<24 |
		uint32(sum[off+1])<<16 |
		uint32(sum[off+2])<<8 |
		uint32(sum[off+3])
	return fmt.Sprintf("%06d", bin%1_000_000)
}

// wellFormed reports whether code is exactly six ASCII digits.
func wellFormed(code string) bool {
	if len(code) != Digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
