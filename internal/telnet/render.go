// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package telnet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/embermush/embermush/internal/dialog"
)

// RenderPrompt turns a dialog prompt into a numbered text menu.
func RenderPrompt(p dialog.Prompt) []string {
	lines := make([]string, 0, 6+len(p.Fields)+len(p.Buttons))

	lines = append(lines, "=== "+p.Title+" ===")
	if p.Error != "" {
		lines = append(lines, "! "+p.Error)
	}
	lines = append(lines, p.Body)

	if len(p.Fields) > 0 {
		lines = append(lines, "Reply with your entries in order:")
		for _, f := range p.Fields {
			hint := f.Label
			if f.Kind == dialog.FieldBool {
				hint += " (yes/no)"
			}
			lines = append(lines, "  - "+hint)
		}
	}
	if len(p.Buttons) > 0 {
		lines = append(lines, "Or choose an option:")
		for i, b := range p.Buttons {
			lines = append(lines, fmt.Sprintf("  %d) %s: %s", i+1, b.Label, b.Description))
		}
	}
	return lines
}

// ParseResponse maps an input line onto a response for the pending
// prompt. A bare number or a button label selects that button; on a
// prompt with fields, anything else is treated as field input submitted
// through the first button. Returns false when the line selects nothing.
func ParseResponse(p *dialog.Prompt, line string) (dialog.Response, bool) {
	if p == nil {
		return dialog.Response{}, false
	}
	line = strings.TrimSpace(line)

	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(p.Buttons) {
		return dialog.Response{Action: p.Buttons[n-1].Action}, true
	}
	for _, b := range p.Buttons {
		if strings.EqualFold(line, b.Label) {
			return dialog.Response{Action: b.Action}, true
		}
	}

	if len(p.Fields) == 0 || len(p.Buttons) == 0 {
		return dialog.Response{}, false
	}

	// Field input submits through the prompt's primary button. An empty
	// line still submits; the authentication core answers it with its
	// own no-input message.
	resp := dialog.Response{Action: p.Buttons[0].Action}
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return resp, true
	}

	resp.Text = make(map[string]string)
	resp.Flags = make(map[string]bool)
	i := 0
	for _, f := range p.Fields {
		if i >= len(tokens) {
			break
		}
		switch f.Kind {
		case dialog.FieldText:
			resp.Text[f.Key] = tokens[i]
		case dialog.FieldBool:
			resp.Flags[f.Key] = truthy(tokens[i])
		}
		i++
	}
	return resp, true
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "y", "true", "agree":
		return true
	default:
		return false
	}
}
