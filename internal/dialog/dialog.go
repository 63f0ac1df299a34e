// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

// Package dialog defines the boundary between the authentication core and
// the presentation layer.
//
// The core emits Prompt values and consumes Response values carrying one
// of a fixed set of named actions plus typed field values. How a prompt is
// rendered and how responses are collected is entirely the presenter's
// business; the core never inspects formatting.
package dialog

// Named actions the presentation layer may return.
const (
	ActionScanAcquire   = "scan/acquire"
	ActionScanExit      = "scan/exit"
	ActionConfirmDone   = "confirm/done"
	ActionConfirmNotYet = "confirm/notyet"
	ActionCodeSubmit    = "code/submit"
	ActionCodeLeave     = "code/leave"
)

// Field keys used by the code-entry form.
const (
	FieldCode    = "otp"
	FieldConsent = "rules"
)

// FieldKind is the input type of a form field.
type FieldKind int

// Form field kinds.
const (
	FieldText FieldKind = iota
	FieldBool
)

// FieldSpec describes one input field of a prompt.
type FieldSpec struct {
	Key   string
	Label string
	Kind  FieldKind
}

// Button is one selectable action of a prompt.
type Button struct {
	Label       string
	Description string
	Action      string
}

// Prompt is a presentation request. RemainingSeconds is display-only
// context for the current phase budget.
type Prompt struct {
	Title            string
	Body             string
	Error            string
	RemainingSeconds int
	Fields           []FieldSpec
	Buttons          []Button
}

// Response is what the presentation layer hands back: a named action and
// the submitted field values, if the prompt had fields.
type Response struct {
	Action string
	Text   map[string]string
	Flags  map[string]bool
}

// TextValue returns a submitted text field value, or "".
func (r Response) TextValue(key string) string {
	return r.Text[key]
}

// FlagValue returns a submitted boolean field value, defaulting to false.
func (r Response) FlagValue(key string) bool {
	return r.Flags[key]
}
