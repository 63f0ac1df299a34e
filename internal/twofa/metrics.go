// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package twofa

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome constants for authentication metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeWrongCode = "wrong_code"
	OutcomeBanned    = "banned"
	OutcomeTimeout   = "timeout"
	OutcomeLeft      = "left"
	OutcomeRejected  = "rejected_banned"
)

// AuthOutcomes counts finished authentication attempts by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var AuthOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "embermush_auth_outcomes_total",
		Help: "Total number of authentication outcomes",
	},
	[]string{"outcome", "phase"},
)

// AuthBypasses counts trusted-recency and exemption bypasses.
var AuthBypasses = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "embermush_auth_bypasses_total",
		Help: "Total number of authentication bypasses",
	},
	[]string{"reason"},
)

// RegisterMetrics registers twofa package metrics with the given registry.
// Must be called at startup; panics on duplicate registration following
// prometheus convention.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthOutcomes)
	reg.MustRegister(AuthBypasses)
}

// recordOutcome increments the outcome counter. phase is "registration"
// or "login".
func recordOutcome(outcome, phase string) {
	AuthOutcomes.WithLabelValues(outcome, phase).Inc()
}

// recordBypass increments the bypass counter. reason is "trusted_recency"
// or "exempt".
func recordBypass(reason string) {
	AuthBypasses.WithLabelValues(reason).Inc()
}
