// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package telnet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embermush/embermush/internal/dialog"
)

func TestRenderPrompt_ButtonsOnly(t *testing.T) {
	p := dialog.ScanPrompt(dialog.DefaultCatalog(), 90)
	lines := RenderPrompt(p)

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "=== Two-Factor Setup ===")
	assert.Contains(t, joined, "You have 90s to finish")
	assert.Contains(t, joined, "1) Get setup code:")
	assert.Contains(t, joined, "2) Leave:")
	assert.NotContains(t, joined, "Reply with your entries")
}

func TestRenderPrompt_WithFieldsAndError(t *testing.T) {
	p := dialog.CodePrompt(dialog.DefaultCatalog(), 45, "Wrong code. 2 attempts remaining.")
	lines := RenderPrompt(p)

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "=== Two-Factor Login ===")
	assert.Contains(t, joined, "! Wrong code. 2 attempts remaining.")
	assert.Contains(t, joined, "- Authentication code")
	assert.Contains(t, joined, "- I agree to the world rules (yes/no)")
	assert.Contains(t, joined, "1) Submit:")
	assert.Contains(t, joined, "2) Leave:")
}

func TestParseResponse(t *testing.T) {
	catalog := dialog.DefaultCatalog()
	scan := dialog.ScanPrompt(catalog, 90)
	code := dialog.CodePrompt(catalog, 90, "")

	t.Run("button by number", func(t *testing.T) {
		resp, ok := ParseResponse(&scan, "1")
		require.True(t, ok)
		assert.Equal(t, dialog.ActionScanAcquire, resp.Action)
	})

	t.Run("button by label case-insensitive", func(t *testing.T) {
		resp, ok := ParseResponse(&scan, "get SETUP code")
		require.True(t, ok)
		assert.Equal(t, dialog.ActionScanAcquire, resp.Action)
	})

	t.Run("out of range number rejected", func(t *testing.T) {
		_, ok := ParseResponse(&scan, "3")
		assert.False(t, ok)
	})

	t.Run("free text without fields rejected", func(t *testing.T) {
		_, ok := ParseResponse(&scan, "123456")
		assert.False(t, ok)
	})

	t.Run("field input submits via primary button", func(t *testing.T) {
		resp, ok := ParseResponse(&code, "123456 yes")
		require.True(t, ok)
		assert.Equal(t, dialog.ActionCodeSubmit, resp.Action)
		assert.Equal(t, "123456", resp.TextValue(dialog.FieldCode))
		assert.True(t, resp.FlagValue(dialog.FieldConsent))
	})

	t.Run("consent omitted defaults false", func(t *testing.T) {
		resp, ok := ParseResponse(&code, "123456")
		require.True(t, ok)
		assert.Equal(t, dialog.ActionCodeSubmit, resp.Action)
		assert.False(t, resp.FlagValue(dialog.FieldConsent))
	})

	t.Run("empty line on field prompt submits empty", func(t *testing.T) {
		resp, ok := ParseResponse(&code, "")
		require.True(t, ok)
		assert.Equal(t, dialog.ActionCodeSubmit, resp.Action)
		assert.Nil(t, resp.Text)
		assert.Nil(t, resp.Flags)
	})

	t.Run("leave label on field prompt", func(t *testing.T) {
		resp, ok := ParseResponse(&code, "leave")
		require.True(t, ok)
		assert.Equal(t, dialog.ActionCodeLeave, resp.Action)
	})

	t.Run("nil prompt", func(t *testing.T) {
		_, ok := ParseResponse(nil, "1")
		assert.False(t, ok)
	})
}

func TestTruthy(t *testing.T) {
	for _, s := range []string{"yes", "YES", "y", "true", "agree"} {
		assert.True(t, truthy(s), s)
	}
	for _, s := range []string{"no", "n", "false", "", "maybe"} {
		assert.False(t, truthy(s), s)
	}
}
