// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package dialog

import "strings"

// Catalog is the configurable message catalogue. Every user-facing string
// comes from here; `%name%` placeholders are substituted at build time.
type Catalog struct {
	ScanPrompt struct {
		Title       string `koanf:"title"`
		Body        string `koanf:"body"`
		AcquireText string `koanf:"acquire-button"`
		AcquireDesc string `koanf:"acquire-description"`
		ExitText    string `koanf:"exit-button"`
		ExitDesc    string `koanf:"exit-description"`
	} `koanf:"scan-prompt"`

	Confirm struct {
		Title    string `koanf:"title"`
		Body     string `koanf:"body"`
		YesText  string `koanf:"yes-button"`
		YesDesc  string `koanf:"yes-description"`
		NotText  string `koanf:"no-button"`
		NotDesc  string `koanf:"no-description"`
	} `koanf:"ask-finished"`

	Login struct {
		Title      string `koanf:"title"`
		Body       string `koanf:"body"`
		CodeLabel  string `koanf:"otp-field-label"`
		RulesLabel string `koanf:"rules-field-label"`
		SubmitText string `koanf:"submit-button"`
		SubmitDesc string `koanf:"submit-description"`
		LeaveText  string `koanf:"leave-button"`
		LeaveDesc  string `koanf:"leave-description"`
	} `koanf:"login"`

	Game struct {
		ArtifactReceived string `koanf:"artifact-received"`
		AuthSuccess      string `koanf:"auth-success"`
		Join             string `koanf:"join-message"`
		LeaveKick        string `koanf:"leave-kick"`
		AdminResetKick   string `koanf:"admin-reset-kick"`
	} `koanf:"game"`

	Errors struct {
		NoInput         string `koanf:"no-input"`
		MustAgreeRules  string `koanf:"must-agree-rules"`
		WrongCode       string `koanf:"wrong-code"`
		WrongCodeBanned string `koanf:"wrong-code-banned"`
		NoChat          string `koanf:"no-chat"`
		NoDropArtifact  string `koanf:"no-drop-artifact"`
		FinishLogin     string `koanf:"finish-login"`
		TimeoutExpired  string `koanf:"timeout-expired"`
	} `koanf:"errors"`
}

// DefaultCatalog returns the built-in message set. A config file may
// override any entry.
func DefaultCatalog() Catalog {
	var c Catalog

	c.ScanPrompt.Title = "Two-Factor Setup"
	c.ScanPrompt.Body = "This world requires two-factor authentication. You have %time-left%s to finish. Take the setup code and scan it with your authenticator app."
	c.ScanPrompt.AcquireText = "Get setup code"
	c.ScanPrompt.AcquireDesc = "Receive a scannable code for your authenticator app"
	c.ScanPrompt.ExitText = "Leave"
	c.ScanPrompt.ExitDesc = "Disconnect without setting up"

	c.Confirm.Title = "Finished scanning?"
	c.Confirm.Body = "Have you added the code to your authenticator app? %time-left%s remaining."
	c.Confirm.YesText = "Yes, I'm done"
	c.Confirm.YesDesc = "Continue to code entry"
	c.Confirm.NotText = "Not yet"
	c.Confirm.NotDesc = "Ask me again shortly"

	c.Login.Title = "Two-Factor Login"
	c.Login.Body = "Enter the 6-digit code from your authenticator app. %time-left%s remaining."
	c.Login.CodeLabel = "Authentication code"
	c.Login.RulesLabel = "I agree to the world rules"
	c.Login.SubmitText = "Submit"
	c.Login.SubmitDesc = "Verify the code"
	c.Login.LeaveText = "Leave"
	c.Login.LeaveDesc = "Disconnect from the world"

	c.Game.ArtifactReceived = "You received a setup code. Scan it with your authenticator app."
	c.Game.AuthSuccess = "Authentication complete. Welcome!"
	c.Game.Join = "%player% joined the world"
	c.Game.LeaveKick = "You chose to leave. Come back when you're ready."
	c.Game.AdminResetKick = "Your two-factor enrollment was reset by an operator. Reconnect to set up again."

	c.Errors.NoInput = "No input received. Please try again."
	c.Errors.MustAgreeRules = "You must agree to the world rules."
	c.Errors.WrongCode = "Wrong code. %attempts-left% attempts remaining."
	c.Errors.WrongCodeBanned = "Too many wrong codes. You are banned for %ban-time% minutes."
	c.Errors.NoChat = "You must finish authenticating before chatting."
	c.Errors.NoDropArtifact = "You cannot drop the setup code."
	c.Errors.FinishLogin = "Finish logging in first."
	c.Errors.TimeoutExpired = "Authentication timed out. Please reconnect and try again."

	return c
}

// Expand substitutes `%key%` placeholders. Pairs are key, value, key,
// value; a trailing odd entry is ignored.
func Expand(msg string, pairs ...string) string {
	for i := 0; i+1 < len(pairs); i += 2 {
		msg = strings.ReplaceAll(msg, "%"+pairs[i]+"%", pairs[i+1])
	}
	return msg
}
