// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		pairs []string
		want  string
	}{
		{
			name:  "single placeholder",
			msg:   "%player% joined the world",
			pairs: []string{"player", "Rook"},
			want:  "Rook joined the world",
		},
		{
			name:  "multiple placeholders",
			msg:   "Wrong code. %attempts-left% of %attempts-max% left.",
			pairs: []string{"attempts-left", "2", "attempts-max", "3"},
			want:  "Wrong code. 2 of 3 left.",
		},
		{
			name:  "repeated placeholder",
			msg:   "%player% waves. Goodbye, %player%.",
			pairs: []string{"player", "Rook"},
			want:  "Rook waves. Goodbye, Rook.",
		},
		{
			name:  "unknown placeholder survives",
			msg:   "hello %who%",
			pairs: []string{"player", "Rook"},
			want:  "hello %who%",
		},
		{
			name:  "trailing odd pair is ignored",
			msg:   "hello %player%",
			pairs: []string{"player", "Rook", "dangling"},
			want:  "hello Rook",
		},
		{
			name: "no pairs",
			msg:  "plain text",
			want: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.msg, tt.pairs...))
		})
	}
}

func TestDefaultCatalog_NoEmptyEntries(t *testing.T) {
	c := DefaultCatalog()

	entries := map[string]string{
		"scan title":       c.ScanPrompt.Title,
		"scan body":        c.ScanPrompt.Body,
		"scan acquire":     c.ScanPrompt.AcquireText,
		"confirm title":    c.Confirm.Title,
		"confirm yes":      c.Confirm.YesText,
		"confirm not":      c.Confirm.NotText,
		"login title":      c.Login.Title,
		"login code label": c.Login.CodeLabel,
		"login rules":      c.Login.RulesLabel,
		"artifact":         c.Game.ArtifactReceived,
		"auth success":     c.Game.AuthSuccess,
		"join":             c.Game.Join,
		"leave kick":       c.Game.LeaveKick,
		"admin reset kick": c.Game.AdminResetKick,
		"no input":         c.Errors.NoInput,
		"must agree":       c.Errors.MustAgreeRules,
		"wrong code":       c.Errors.WrongCode,
		"banned":           c.Errors.WrongCodeBanned,
		"no chat":          c.Errors.NoChat,
		"no drop":          c.Errors.NoDropArtifact,
		"finish login":     c.Errors.FinishLogin,
		"timeout":          c.Errors.TimeoutExpired,
	}
	for name, text := range entries {
		assert.NotEmpty(t, text, "default catalog entry %q", name)
	}

	assert.Contains(t, c.Game.Join, "%player%")
	assert.Contains(t, c.Errors.WrongCode, "%attempts-left%")
}

func TestScanPrompt(t *testing.T) {
	p := ScanPrompt(DefaultCatalog(), 180)

	assert.Equal(t, "Two-Factor Setup", p.Title)
	assert.Contains(t, p.Body, "180s")
	assert.Equal(t, 180, p.RemainingSeconds)
	assert.Empty(t, p.Fields)

	require.Len(t, p.Buttons, 2)
	assert.Equal(t, ActionScanAcquire, p.Buttons[0].Action)
	assert.Equal(t, ActionScanExit, p.Buttons[1].Action)
}

func TestConfirmPrompt(t *testing.T) {
	p := ConfirmPrompt(DefaultCatalog(), 90)

	assert.Equal(t, "Finished scanning?", p.Title)
	assert.Contains(t, p.Body, "90s")

	require.Len(t, p.Buttons, 2)
	assert.Equal(t, ActionConfirmDone, p.Buttons[0].Action)
	assert.Equal(t, ActionConfirmNotYet, p.Buttons[1].Action)
}

func TestCodePrompt(t *testing.T) {
	c := DefaultCatalog()

	t.Run("without error", func(t *testing.T) {
		p := CodePrompt(c, 60, "")

		assert.Equal(t, "Two-Factor Login", p.Title)
		assert.Empty(t, p.Error)

		require.Len(t, p.Fields, 2)
		assert.Equal(t, FieldCode, p.Fields[0].Key)
		assert.Equal(t, FieldText, p.Fields[0].Kind)
		assert.Equal(t, FieldConsent, p.Fields[1].Key)
		assert.Equal(t, FieldBool, p.Fields[1].Kind)

		require.Len(t, p.Buttons, 2)
		assert.Equal(t, ActionCodeSubmit, p.Buttons[0].Action)
		assert.Equal(t, ActionCodeLeave, p.Buttons[1].Action)
	})

	t.Run("re-presentation carries the error", func(t *testing.T) {
		p := CodePrompt(c, 60, c.Errors.MustAgreeRules)
		assert.Equal(t, "You must agree to the world rules.", p.Error)
	})
}

func TestResponse_Accessors(t *testing.T) {
	r := Response{
		Action: ActionCodeSubmit,
		Text:   map[string]string{FieldCode: "123456"},
		Flags:  map[string]bool{FieldConsent: true},
	}
	assert.Equal(t, "123456", r.TextValue(FieldCode))
	assert.True(t, r.FlagValue(FieldConsent))

	var empty Response
	assert.Empty(t, empty.TextValue(FieldCode))
	assert.False(t, empty.FlagValue(FieldConsent))
}
