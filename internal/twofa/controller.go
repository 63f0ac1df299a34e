// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

// Package twofa drives mandatory two-factor authentication for principals
// entering the world.
//
// The controller owns one Session per connected, not-yet-authenticated
// principal and walks it through registration (provision a secret, hand
// over the scannable artifact, confirm) or login (verify a code), frozen
// the whole time. Transitions for one principal are serialized by a
// per-session lock; different principals proceed fully concurrently.
package twofa

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/embermush/embermush/internal/dialog"
	"github.com/embermush/embermush/internal/freeze"
	"github.com/embermush/embermush/internal/world"
)

// State is a session's position in the authentication protocol.
type State int

// Session states. Bypassed, Authenticated and Abandoned are terminal.
const (
	StateBypassed State = iota
	StateAwaitingScan
	StateAwaitingScanConfirmation
	StateAwaitingCode
	StateAuthenticated
	StateAbandoned
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateBypassed:
		return "bypassed"
	case StateAwaitingScan:
		return "awaiting_scan"
	case StateAwaitingScanConfirmation:
		return "awaiting_scan_confirmation"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateAuthenticated:
		return "authenticated"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Config tunes the authentication protocol.
type Config struct {
	// Issuer is the world name embedded in provisioning URIs.
	Issuer string

	// SkewSteps is the accepted clock drift in 30-second steps.
	SkewSteps int

	// BypassWindow is the trusted-recency horizon: a principal enrolled,
	// returning from the same address within this window skips the
	// challenge entirely.
	BypassWindow time.Duration

	// RegistrationTimeout and LoginTimeout are the hard phase budgets.
	RegistrationTimeout time.Duration
	LoginTimeout        time.Duration

	// NudgeDelay is how long after the artifact handoff the "finished
	// scanning?" reminder fires.
	NudgeDelay time.Duration

	// OrientDelay is how long after the artifact handoff the look-down
	// adjustment is applied.
	OrientDelay time.Duration

	// Ban tunes the failed-attempt lockout.
	Ban BanConfig

	// ExemptPatterns are principal-name globs that bypass authentication
	// entirely (operator escape hatch).
	ExemptPatterns []string
}

// Freezer is the frozen-envelope surface the controller drives.
type Freezer interface {
	Freeze(id ulid.ULID) error
	Unfreeze(id ulid.ULID)
	IsFrozen(id ulid.ULID) bool
}

// DeadlineScheduler is the per-principal timer surface.
type DeadlineScheduler interface {
	ArmDeadline(id ulid.ULID, d time.Duration, onExpire func())
	ArmNudge(id ulid.ULID, delay time.Duration, onFire func())
	CancelNudge(id ulid.ULID)
	Cancel(id ulid.ULID)
	RemainingSeconds(id ulid.ULID, totalBudget time.Duration) int
}

// Presenter renders prompts and delivers notices. Implementations must
// not call back into the controller synchronously.
type Presenter interface {
	Present(id ulid.ULID, p dialog.Prompt)
	Notify(id ulid.ULID, message string)
	Kick(id ulid.ULID, message string)
}

// ArtifactIssuer produces the holdable artifact encoding a provisioning
// URI.
type ArtifactIssuer interface {
	Issue(uri string) (*world.Item, error)
}

// CodeEngine is the cryptographic surface: secret generation, URI
// formatting and code verification.
type CodeEngine interface {
	GenerateSecret() (string, error)
	ProvisioningURI(issuer, account, secret string) string
	Verify(secret, code string, skewSteps int) (bool, error)
}

// Directory maps principal names to stable identifiers, maintained as
// principals connect. The administrative surface resolves names through
// it.
type Directory interface {
	EnsurePrincipal(ctx context.Context, name string) (ulid.ULID, error)
	Resolve(ctx context.Context, name string) (ulid.ULID, bool, error)
}

// session is the per-principal authentication session. All transitions
// happen under mu.
type session struct {
	mu             sync.Mutex
	id             ulid.ULID
	name           string
	addr           string
	state          State
	isRegistration bool
}

// Deps are the controller's collaborators.
type Deps struct {
	Store     RecordStore
	Codes     CodeEngine
	Freezer   Freezer
	Timers    DeadlineScheduler
	Presenter Presenter
	Artifacts ArtifactIssuer
	World     *world.World
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Controller orchestrates authentication sessions.
type Controller struct {
	cfg     Config
	catalog atomic.Pointer[dialog.Catalog]
	bans    *BanPolicy
	exempt  []glob.Glob

	store     RecordStore
	codes     CodeEngine
	freezer   Freezer
	timers    DeadlineScheduler
	presenter Presenter
	artifacts ArtifactIssuer
	world     *world.World
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[ulid.ULID]*session
}

// NewController creates a Controller. Returns an error if any required
// dependency is nil or an exempt pattern fails to compile.
func NewController(cfg Config, catalog dialog.Catalog, deps Deps) (*Controller, error) {
	switch {
	case deps.Store == nil:
		return nil, oops.Errorf("record store is required")
	case deps.Codes == nil:
		return nil, oops.Errorf("code engine is required")
	case deps.Freezer == nil:
		return nil, oops.Errorf("freezer is required")
	case deps.Timers == nil:
		return nil, oops.Errorf("timer scheduler is required")
	case deps.Presenter == nil:
		return nil, oops.Errorf("presenter is required")
	case deps.Artifacts == nil:
		return nil, oops.Errorf("artifact issuer is required")
	case deps.World == nil:
		return nil, oops.Errorf("world is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if cfg.OrientDelay <= 0 {
		cfg.OrientDelay = 150 * time.Millisecond
	}

	exempt := make([]glob.Glob, 0, len(cfg.ExemptPatterns))
	for _, pattern := range cfg.ExemptPatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.Code("TWOFA_BAD_EXEMPT_PATTERN").
				With("pattern", pattern).
				Wrap(err)
		}
		exempt = append(exempt, g)
	}

	c := &Controller{
		cfg:       cfg,
		bans:      NewBanPolicy(cfg.Ban),
		exempt:    exempt,
		store:     deps.Store,
		codes:     deps.Codes,
		freezer:   deps.Freezer,
		timers:    deps.Timers,
		presenter: deps.Presenter,
		artifacts: deps.Artifacts,
		world:     deps.World,
		logger:    deps.Logger,
		now:       deps.Clock,
		sessions:  make(map[ulid.ULID]*session),
	}
	c.catalog.Store(&catalog)
	return c, nil
}

func (c *Controller) msgs() dialog.Catalog {
	return *c.catalog.Load()
}

// UpdateMessages swaps the message catalogue. In-flight prompts keep the
// wording they were rendered with; the next prompt uses the new set.
func (c *Controller) UpdateMessages(catalog dialog.Catalog) {
	c.catalog.Store(&catalog)
}

// ActiveSessions returns the number of sessions still in progress.
func (c *Controller) ActiveSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// SessionState returns the current state for a principal and whether a
// session exists. Bypassed principals have no session.
func (c *Controller) SessionState(id ulid.ULID) (State, bool) {
	c.mu.Lock()
	sess, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return 0, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state, true
}

// HandleConnect runs the connect-time decision for a principal already
// joined to the world: reject while banned, bypass on trusted recency or
// exemption, otherwise open a session, freeze, start the clock and
// present the first prompt.
func (c *Controller) HandleConnect(ctx context.Context, id ulid.ULID) error {
	a := c.world.Get(id)
	if a == nil {
		return oops.Code("TWOFA_NOT_CONNECTED").
			With("principal_id", id.String()).
			Errorf("principal %s is not in the world", id.String())
	}
	now := c.now()

	rec, err := loadRecord(ctx, c.store, id)
	if err != nil {
		return oops.Code("TWOFA_RECORD_READ_FAILED").
			With("principal_id", id.String()).
			Wrap(err)
	}

	if c.bans.IsBanned(&rec, now) {
		remaining := int(rec.BanExpiresAt.Sub(now).Minutes())
		c.logger.Warn("banned principal tried to connect",
			"name", a.Name(), "addr", a.Addr(), "ban_minutes_left", remaining)
		recordOutcome(OutcomeRejected, c.phase(!rec.Enrolled))
		c.presenter.Kick(id, dialog.Expand(c.msgs().Errors.WrongCodeBanned,
			"ban-time", strconv.Itoa(remaining)))
		return nil
	}

	if c.isExempt(a.Name()) {
		c.logger.Info("principal exempt from authentication", "name", a.Name(), "addr", a.Addr())
		recordBypass("exempt")
		c.announceJoin(a)
		return nil
	}

	if c.bypassMatches(&rec, a.Addr(), now) {
		c.logger.Info("principal bypassed authentication via trusted recency",
			"name", a.Name(), "addr", a.Addr())
		recordBypass("trusted_recency")
		c.announceJoin(a)
		return nil
	}

	sess := &session{
		id:             id,
		name:           a.Name(),
		addr:           a.Addr(),
		isRegistration: !rec.Enrolled,
	}
	c.mu.Lock()
	if _, exists := c.sessions[id]; exists {
		c.mu.Unlock()
		return oops.Code("TWOFA_SESSION_EXISTS").
			With("principal_id", id.String()).
			Errorf("principal %s already has an authentication session", id.String())
	}
	c.sessions[id] = sess
	c.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Relocate to spawn before freezing so the frozen principal stands
	// somewhere predictable.
	a.SetPosition(c.world.Spawn())

	if rec.Secret == "" {
		secret, genErr := c.codes.GenerateSecret()
		if genErr != nil {
			c.discard(id)
			return oops.Code("TWOFA_SECRET_GEN_FAILED").Wrap(genErr)
		}
		if setErr := c.store.SetSecret(ctx, id, secret); setErr != nil {
			c.discard(id)
			return oops.Code("TWOFA_RECORD_WRITE_FAILED").Wrap(setErr)
		}
		c.logger.Info("new principal starting 2FA registration", "name", a.Name(), "addr", a.Addr())
	} else if sess.isRegistration {
		c.logger.Info("principal resuming 2FA registration", "name", a.Name(), "addr", a.Addr())
	} else {
		c.logger.Info("principal starting 2FA login", "name", a.Name(), "addr", a.Addr())
	}

	if err := c.freezer.Freeze(id); err != nil {
		c.discard(id)
		return oops.Code("TWOFA_FREEZE_FAILED").Wrap(err)
	}

	if sess.isRegistration {
		sess.state = StateAwaitingScan
		c.timers.ArmDeadline(id, c.cfg.RegistrationTimeout, func() { c.handleDeadline(id) })
		c.presenter.Present(id, dialog.ScanPrompt(c.msgs(), c.remaining(sess)))
	} else {
		sess.state = StateAwaitingCode
		c.timers.ArmDeadline(id, c.cfg.LoginTimeout, func() { c.handleDeadline(id) })
		c.presenter.Present(id, dialog.CodePrompt(c.msgs(), c.remaining(sess), ""))
	}
	return nil
}

// HandleResponse consumes a named action from the presentation layer and
// advances the principal's session.
func (c *Controller) HandleResponse(ctx context.Context, id ulid.ULID, resp dialog.Response) error {
	c.mu.Lock()
	sess, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		// Response raced a terminal transition; nothing to drive.
		c.logger.Debug("response for principal without session",
			"principal_id", id.String(), "action", resp.Action)
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.state {
	case StateAwaitingScan:
		return c.handleAwaitingScan(ctx, sess, resp)
	case StateAwaitingScanConfirmation:
		return c.handleAwaitingConfirmation(sess, resp)
	case StateAwaitingCode:
		return c.handleAwaitingCode(ctx, sess, resp)
	default:
		c.logger.Debug("response in terminal state ignored",
			"principal_id", id.String(), "state", sess.state.String(), "action", resp.Action)
		return nil
	}
}

// HandleDisconnect tears down a principal's session on connection loss:
// unfreeze, cancel timers, discard. Safe to call for principals that never
// had a session.
func (c *Controller) HandleDisconnect(id ulid.ULID) {
	c.timers.Cancel(id)
	c.freezer.Unfreeze(id)

	c.mu.Lock()
	sess, ok := c.sessions[id]
	if ok {
		delete(c.sessions, id)
	}
	c.mu.Unlock()

	if ok {
		sess.mu.Lock()
		sess.state = StateAbandoned
		sess.mu.Unlock()
		c.logger.Info("authentication session abandoned on disconnect",
			"name", sess.name, "addr", sess.addr)
	}
}

// ResetPrincipal clears all stored credential state for a principal and,
// if connected, kicks them so the next connect starts fresh. Never
// partially applied: the store removal happens before the kick.
func (c *Controller) ResetPrincipal(ctx context.Context, id ulid.ULID) error {
	if err := c.store.RemoveAll(ctx, id); err != nil {
		return oops.Code("TWOFA_RESET_FAILED").
			With("principal_id", id.String()).
			Wrap(err)
	}
	if c.world.Get(id) != nil {
		c.timers.Cancel(id)
		c.freezer.Unfreeze(id)
		c.discard(id)
		c.presenter.Kick(id, c.msgs().Game.AdminResetKick)
	}
	return nil
}

/* ------------ state handlers ------------ */

func (c *Controller) handleAwaitingScan(ctx context.Context, sess *session, resp dialog.Response) error {
	switch resp.Action {
	case dialog.ActionScanAcquire:
		secret, err := c.store.GetSecret(ctx, sess.id)
		if err != nil {
			return oops.Code("TWOFA_RECORD_READ_FAILED").Wrap(err)
		}
		uri := c.codes.ProvisioningURI(c.cfg.Issuer, sess.name, secret)
		item, err := c.artifacts.Issue(uri)
		if err != nil {
			return oops.Code("TWOFA_ARTIFACT_FAILED").Wrap(err)
		}

		if a := c.world.Get(sess.id); a != nil {
			a.SetItem(freeze.PinnedSlot, item)
		}
		c.presenter.Notify(sess.id, c.msgs().Game.ArtifactReceived)
		c.scheduleLookDown(sess.id)

		sess.state = StateAwaitingScanConfirmation
		c.timers.ArmNudge(sess.id, c.cfg.NudgeDelay, func() { c.handleNudge(sess.id) })
		return nil

	case dialog.ActionScanExit:
		c.abandon(sess, c.msgs().Game.LeaveKick, OutcomeLeft)
		return nil

	default:
		c.logger.Debug("unexpected action while awaiting scan",
			"name", sess.name, "action", resp.Action)
		return nil
	}
}

func (c *Controller) handleAwaitingConfirmation(sess *session, resp dialog.Response) error {
	switch resp.Action {
	case dialog.ActionConfirmDone:
		c.timers.CancelNudge(sess.id)
		sess.state = StateAwaitingCode
		c.presenter.Present(sess.id, dialog.CodePrompt(c.msgs(), c.remaining(sess), ""))
		return nil

	case dialog.ActionConfirmNotYet:
		c.timers.ArmNudge(sess.id, c.cfg.NudgeDelay, func() { c.handleNudge(sess.id) })
		return nil

	case dialog.ActionScanExit:
		c.abandon(sess, c.msgs().Game.LeaveKick, OutcomeLeft)
		return nil

	default:
		c.logger.Debug("unexpected action while awaiting scan confirmation",
			"name", sess.name, "action", resp.Action)
		return nil
	}
}

func (c *Controller) handleAwaitingCode(ctx context.Context, sess *session, resp dialog.Response) error {
	switch resp.Action {
	case dialog.ActionCodeSubmit:
		if resp.Text == nil && resp.Flags == nil {
			c.representCode(sess, c.msgs().Errors.NoInput)
			return nil
		}
		if !resp.FlagValue(dialog.FieldConsent) {
			c.representCode(sess, c.msgs().Errors.MustAgreeRules)
			return nil
		}
		return c.verifySubmission(ctx, sess, resp.TextValue(dialog.FieldCode))

	case dialog.ActionCodeLeave:
		c.abandon(sess, c.msgs().Game.LeaveKick, OutcomeLeft)
		return nil

	default:
		c.logger.Debug("unexpected action while awaiting code",
			"name", sess.name, "action", resp.Action)
		return nil
	}
}

// verifySubmission checks the submitted code and applies success or
// failure semantics. Caller holds sess.mu.
func (c *Controller) verifySubmission(ctx context.Context, sess *session, code string) error {
	secret, err := c.store.GetSecret(ctx, sess.id)
	if err != nil {
		return oops.Code("TWOFA_RECORD_READ_FAILED").Wrap(err)
	}

	ok, err := c.codes.Verify(secret, code, c.cfg.SkewSteps)
	if err != nil {
		// Stored secret failed to decode: integrity anomaly, surfaces to
		// the user only as a failed verification.
		c.logger.Error("stored secret failed to decode",
			"name", sess.name, "error", err)
		ok = false
	}
	if !ok {
		return c.applyFailure(ctx, sess)
	}
	return c.applySuccess(ctx, sess)
}

func (c *Controller) applyFailure(ctx context.Context, sess *session) error {
	now := c.now()
	phase := c.phase(sess.isRegistration)

	if !c.bans.Enabled() {
		c.logger.Warn("failed 2FA attempt", "name", sess.name, "addr", sess.addr)
		recordOutcome(OutcomeWrongCode, phase)
		c.representCode(sess, dialog.Expand(c.msgs().Errors.WrongCode, "attempts-left", "-"))
		return nil
	}

	attempts, err := c.store.GetFailedAttempts(ctx, sess.id)
	if err != nil {
		return oops.Code("TWOFA_RECORD_READ_FAILED").Wrap(err)
	}
	rec := Record{FailedAttempts: attempts}
	outcome := c.bans.RecordFailure(&rec, now)

	if err := c.store.SetFailedAttempts(ctx, sess.id, rec.FailedAttempts); err != nil {
		return oops.Code("TWOFA_RECORD_WRITE_FAILED").Wrap(err)
	}

	c.logger.Warn("failed 2FA attempt",
		"name", sess.name, "addr", sess.addr,
		"attempts", rec.FailedAttempts, "max_attempts", c.cfg.Ban.MaxFailedAttempts)

	if !outcome.Banned {
		recordOutcome(OutcomeWrongCode, phase)
		c.representCode(sess, dialog.Expand(c.msgs().Errors.WrongCode,
			"attempts-left", strconv.Itoa(outcome.RemainingAttempts)))
		return nil
	}

	if err := c.store.SetBanExpiry(ctx, sess.id, rec.BanExpiresAt); err != nil {
		return oops.Code("TWOFA_RECORD_WRITE_FAILED").Wrap(err)
	}
	banMinutes := int(c.bans.BanDuration().Minutes())
	c.logger.Warn("principal banned for repeated 2FA failures",
		"name", sess.name, "addr", sess.addr, "ban_minutes", banMinutes)
	recordOutcome(OutcomeBanned, phase)
	c.abandon(sess, dialog.Expand(c.msgs().Errors.WrongCodeBanned,
		"ban-time", strconv.Itoa(banMinutes)), "")
	return nil
}

func (c *Controller) applySuccess(ctx context.Context, sess *session) error {
	now := c.now()
	phase := c.phase(sess.isRegistration)

	// Reset counter and ban atomically with the success, then mark
	// enrolled and refresh the trusted-recency anchors.
	if err := c.store.SetFailedAttempts(ctx, sess.id, 0); err != nil {
		return oops.Code("TWOFA_RECORD_WRITE_FAILED").Wrap(err)
	}
	if err := c.store.SetBanExpiry(ctx, sess.id, time.Time{}); err != nil {
		return oops.Code("TWOFA_RECORD_WRITE_FAILED").Wrap(err)
	}
	if err := c.store.SetEnrolled(ctx, sess.id, true); err != nil {
		return oops.Code("TWOFA_RECORD_WRITE_FAILED").Wrap(err)
	}
	if err := c.store.SetLastTrustedAddress(ctx, sess.id, sess.addr); err != nil {
		return oops.Code("TWOFA_RECORD_WRITE_FAILED").Wrap(err)
	}
	if err := c.store.SetLastSuccessAt(ctx, sess.id, now); err != nil {
		return oops.Code("TWOFA_RECORD_WRITE_FAILED").Wrap(err)
	}

	c.timers.Cancel(sess.id)
	c.freezer.Unfreeze(sess.id)
	sess.state = StateAuthenticated
	c.discard(sess.id)

	c.logger.Info("2FA completed", "name", sess.name, "addr", sess.addr, "phase", phase)
	recordOutcome(OutcomeSuccess, phase)

	c.presenter.Notify(sess.id, c.msgs().Game.AuthSuccess)
	if a := c.world.Get(sess.id); a != nil {
		c.announceJoin(a)
	}
	return nil
}

/* ------------ timer callbacks ------------ */

// handleDeadline fires when a phase budget expires. A principal that
// already left the frozen state is a no-op.
func (c *Controller) handleDeadline(id ulid.ULID) {
	c.mu.Lock()
	sess, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.state {
	case StateAwaitingScan, StateAwaitingScanConfirmation, StateAwaitingCode:
	default:
		return
	}
	if c.world.Get(id) == nil || !c.freezer.IsFrozen(id) {
		return
	}

	c.logger.Warn("authentication timed out", "name", sess.name, "addr", sess.addr,
		"state", sess.state.String())
	recordOutcome(OutcomeTimeout, c.phase(sess.isRegistration))
	c.abandon(sess, c.msgs().Errors.TimeoutExpired, "")
}

// handleNudge re-presents the "finished scanning?" prompt.
func (c *Controller) handleNudge(id ulid.ULID) {
	c.mu.Lock()
	sess, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != StateAwaitingScanConfirmation {
		return
	}
	if c.world.Get(id) == nil {
		return
	}
	c.presenter.Present(id, dialog.ConfirmPrompt(c.msgs(), c.remaining(sess)))
}

/* ------------ helpers ------------ */

// abandon drives a session to its terminal kicked state. Caller holds
// sess.mu. outcome may be empty when the caller already recorded one.
func (c *Controller) abandon(sess *session, kickMessage, outcome string) {
	c.timers.Cancel(sess.id)
	c.freezer.Unfreeze(sess.id)
	sess.state = StateAbandoned
	c.discard(sess.id)
	if outcome != "" {
		recordOutcome(outcome, c.phase(sess.isRegistration))
	}
	c.presenter.Kick(sess.id, kickMessage)
}

// discard removes the session from the registry.
func (c *Controller) discard(id ulid.ULID) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

// representCode re-presents the code-entry prompt with an error line.
// Caller holds sess.mu.
func (c *Controller) representCode(sess *session, errText string) {
	c.presenter.Present(sess.id, dialog.CodePrompt(c.msgs(), c.remaining(sess), errText))
}

// remaining computes display-only seconds left in the current phase.
func (c *Controller) remaining(sess *session) int {
	return c.timers.RemainingSeconds(sess.id, c.budget(sess.isRegistration))
}

// budget returns the phase budget.
func (c *Controller) budget(isRegistration bool) time.Duration {
	if isRegistration {
		return c.cfg.RegistrationTimeout
	}
	return c.cfg.LoginTimeout
}

// phase labels metrics and logs.
func (c *Controller) phase(isRegistration bool) string {
	if isRegistration {
		return "registration"
	}
	return "login"
}

// bypassMatches evaluates the trusted-recency rule, once, at connect.
func (c *Controller) bypassMatches(r *Record, addr string, now time.Time) bool {
	return r.Secret != "" &&
		r.Enrolled &&
		addr != "" &&
		addr == r.LastTrustedAddress &&
		now.Sub(r.LastSuccessAt) <= c.cfg.BypassWindow
}

// isExempt checks the operator exemption globs.
func (c *Controller) isExempt(name string) bool {
	for _, g := range c.exempt {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// announceJoin broadcasts the join notice unless the principal is
// vanished.
func (c *Controller) announceJoin(a *world.Avatar) {
	if a.Vanished() {
		return
	}
	c.world.Announce(dialog.Expand(c.msgs().Game.Join, "player", a.Name()))
}

// scheduleLookDown forces the downward look angle shortly after the
// artifact handoff, once the client has had a moment to render it.
func (c *Controller) scheduleLookDown(id ulid.ULID) {
	time.AfterFunc(c.cfg.OrientDelay, func() {
		if !c.freezer.IsFrozen(id) {
			return
		}
		if a := c.world.Get(id); a != nil {
			a.SetPitch(freeze.DownPitch)
		}
	})
}

/* ------------ lifecycle ------------ */

// Shutdown flushes the record store. Timer teardown belongs to the
// scheduler's owner.
func (c *Controller) Shutdown(ctx context.Context) error {
	if err := c.store.Flush(ctx); err != nil {
		return oops.Code("TWOFA_FLUSH_FAILED").Wrap(err)
	}
	return nil
}
