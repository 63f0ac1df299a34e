// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package totp_test

import (
	"encoding/base32"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	ptotp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embermush/embermush/internal/totp"
)

// rfcSecret is the RFC 4226 appendix D test secret ("12345678901234567890").
var rfcSecret = base32.StdEncoding.WithPadding(base32.NoPadding).
	EncodeToString([]byte("12345678901234567890"))

// rfcCodes are the RFC 4226 appendix D expected codes for counters 0-9.
var rfcCodes = []string{
	"755224", "287082", "359152", "969429", "338314",
	"254676", "287922", "162583", "399871", "520489",
}

func TestCodeAt_ReferenceVectors(t *testing.T) {
	for counter, want := range rfcCodes {
		got, err := totp.CodeAt(rfcSecret, uint64(counter))
		require.NoError(t, err)
		assert.Equal(t, want, got, "counter %d", counter)
	}
}

func TestCodeAt_MatchesReferenceLibrary(t *testing.T) {
	e := totp.NewEngine()
	secret, err := e.GenerateSecret()
	require.NoError(t, err)

	for _, at := range []time.Time{
		time.Unix(59, 0),
		time.Unix(1111111109, 0),
		time.Unix(1234567890, 0),
		time.Now(),
	} {
		want, err := ptotp.GenerateCodeCustom(secret, at, ptotp.ValidateOpts{
			Period:    30,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		require.NoError(t, err)

		got, err := totp.CodeAt(secret, e.StepAt(at))
		require.NoError(t, err)
		assert.Equal(t, want, got, "at %s", at)
	}
}

func TestVerify(t *testing.T) {
	now := time.Unix(1234567890, 0)
	e := totp.NewEngineWithClock(func() time.Time { return now })
	step := e.StepAt(now)

	t.Run("accepts current step", func(t *testing.T) {
		code, err := totp.CodeAt(rfcSecret, step)
		require.NoError(t, err)
		ok, err := e.Verify(rfcSecret, code, 0)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("accepts codes within skew inclusive", func(t *testing.T) {
		const skew = 2
		for i := -skew; i <= skew; i++ {
			code, err := totp.CodeAt(rfcSecret, uint64(int64(step)+int64(i)))
			require.NoError(t, err)
			ok, err := e.Verify(rfcSecret, code, skew)
			require.NoError(t, err)
			assert.True(t, ok, "offset %d", i)
		}
	})

	t.Run("rejects code one step past skew", func(t *testing.T) {
		const skew = 1
		code, err := totp.CodeAt(rfcSecret, step+skew+1)
		require.NoError(t, err)
		ok, err := e.Verify(rfcSecret, code, skew)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects malformed codes without computing", func(t *testing.T) {
		for _, code := range []string{"", "12345", "1234567", "12345a", " 123456", "12 456", "１２３４５６"} {
			ok, err := e.Verify(rfcSecret, code, 1)
			require.NoError(t, err)
			assert.False(t, ok, "code %q", code)
		}
	})

	t.Run("corrupt secret fails with error", func(t *testing.T) {
		ok, err := e.Verify("not!base32!", "123456", 1)
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestGenerateSecret(t *testing.T) {
	e := totp.NewEngine()

	s1, err := e.GenerateSecret()
	require.NoError(t, err)
	s2, err := e.GenerateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, s1, s2)
	assert.NotContains(t, s1, "=")

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s1)
	require.NoError(t, err)
	assert.Len(t, raw, totp.SecretBytes)
}

func TestProvisioningURI(t *testing.T) {
	e := totp.NewEngine()

	t.Run("deterministic", func(t *testing.T) {
		a := e.ProvisioningURI("Ember MUSH", "rook", rfcSecret)
		b := e.ProvisioningURI("Ember MUSH", "rook", rfcSecret)
		assert.Equal(t, a, b)
	})

	t.Run("round-trips reserved characters", func(t *testing.T) {
		issuer := "Ember: The MUSH"
		account := "rook of h&c"
		raw := e.ProvisioningURI(issuer, account, rfcSecret)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "otpauth", u.Scheme)
		assert.Equal(t, "totp", u.Host)

		label, err := url.QueryUnescape(strings.TrimPrefix(u.EscapedPath(), "/"))
		require.NoError(t, err)
		assert.Equal(t, issuer+":"+account, label)

		q := u.Query()
		assert.Equal(t, rfcSecret, q.Get("secret"))
		assert.Equal(t, issuer, q.Get("issuer"))
		assert.Equal(t, fmt.Sprint(totp.Digits), q.Get("digits"))
		assert.Equal(t, "30", q.Get("period"))
	})
}
