// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package dialog

import "strconv"

// ScanPrompt builds the registration prompt offering the scannable
// artifact.
func ScanPrompt(c Catalog, remainingSeconds int) Prompt {
	return Prompt{
		Title:            c.ScanPrompt.Title,
		Body:             Expand(c.ScanPrompt.Body, "time-left", strconv.Itoa(remainingSeconds)),
		RemainingSeconds: remainingSeconds,
		Buttons: []Button{
			{Label: c.ScanPrompt.AcquireText, Description: c.ScanPrompt.AcquireDesc, Action: ActionScanAcquire},
			{Label: c.ScanPrompt.ExitText, Description: c.ScanPrompt.ExitDesc, Action: ActionScanExit},
		},
	}
}

// ConfirmPrompt builds the "finished scanning?" nudge prompt.
func ConfirmPrompt(c Catalog, remainingSeconds int) Prompt {
	return Prompt{
		Title:            c.Confirm.Title,
		Body:             Expand(c.Confirm.Body, "time-left", strconv.Itoa(remainingSeconds)),
		RemainingSeconds: remainingSeconds,
		Buttons: []Button{
			{Label: c.Confirm.YesText, Description: c.Confirm.YesDesc, Action: ActionConfirmDone},
			{Label: c.Confirm.NotText, Description: c.Confirm.NotDesc, Action: ActionConfirmNotYet},
		},
	}
}

// CodePrompt builds the code-entry form. errText, when non-empty, is shown
// above the body on re-presentation after a failure.
func CodePrompt(c Catalog, remainingSeconds int, errText string) Prompt {
	return Prompt{
		Title:            c.Login.Title,
		Body:             Expand(c.Login.Body, "time-left", strconv.Itoa(remainingSeconds)),
		Error:            errText,
		RemainingSeconds: remainingSeconds,
		Fields: []FieldSpec{
			{Key: FieldCode, Label: c.Login.CodeLabel, Kind: FieldText},
			{Key: FieldConsent, Label: c.Login.RulesLabel, Kind: FieldBool},
		},
		Buttons: []Button{
			{Label: c.Login.SubmitText, Description: c.Login.SubmitDesc, Action: ActionCodeSubmit},
			{Label: c.Login.LeaveText, Description: c.Login.LeaveDesc, Action: ActionCodeLeave},
		},
	}
}
