// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

// Package telnet provides the line-oriented protocol adapter: the accept
// loop, per-connection handlers and the presentation gateway that turns
// authentication prompts into text menus.
package telnet

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/embermush/embermush/internal/dialog"
	"github.com/embermush/embermush/internal/observability"
)

// outboundBuffer is the per-connection delivery buffer. A connection that
// stops draining misses messages rather than blocking the sender.
const outboundBuffer = 16

// Message is one unit of outbound delivery to a connection.
type Message struct {
	// Lines is rendered text, sent one line at a time.
	Lines []string

	// Prompt, when non-nil, replaces the connection's pending prompt.
	Prompt *dialog.Prompt

	// Kick closes the connection after Lines are delivered.
	Kick bool
}

// Gateway routes prompts, notices and kicks to connected principals. It
// is the presentation surface the authentication controller drives; all
// deliveries are asynchronous channel sends, never callbacks.
type Gateway struct {
	mu      sync.RWMutex
	clients map[ulid.ULID]chan Message
}

// NewGateway creates an empty gateway.
func NewGateway() *Gateway {
	return &Gateway{clients: make(map[ulid.ULID]chan Message)}
}

// Attach registers a connection for a principal and returns its delivery
// channel. A previous registration for the same principal is closed.
func (g *Gateway) Attach(id ulid.ULID) <-chan Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.clients[id]; ok {
		close(old)
	}
	ch := make(chan Message, outboundBuffer)
	g.clients[id] = ch
	return ch
}

// Detach removes and closes a principal's delivery channel.
func (g *Gateway) Detach(id ulid.ULID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ch, ok := g.clients[id]; ok {
		close(ch)
		delete(g.clients, id)
	}
}

// Present renders a prompt as a text menu and delivers it.
func (g *Gateway) Present(id ulid.ULID, p dialog.Prompt) {
	g.deliver(id, Message{Lines: RenderPrompt(p), Prompt: &p}, "prompt")
}

// Notify delivers a one-line notice.
func (g *Gateway) Notify(id ulid.ULID, message string) {
	g.deliver(id, Message{Lines: []string{message}}, "notice")
}

// Kick delivers a farewell line and closes the connection.
func (g *Gateway) Kick(id ulid.ULID, message string) {
	g.deliver(id, Message{Lines: []string{message}, Kick: true}, "kick")
}

// deliver is a non-blocking send; a full buffer drops the message and
// records the failure.
func (g *Gateway) deliver(id ulid.ULID, m Message, stage string) {
	g.mu.RLock()
	ch, ok := g.clients[id]
	g.mu.RUnlock()

	if !ok {
		slog.Debug("delivery for detached principal dropped",
			"principal_id", id.String(), "stage", stage)
		return
	}

	select {
	case ch <- m:
	default:
		observability.RecordOutputWriteFailure(stage)
		slog.Warn("outbound buffer full, message dropped",
			"principal_id", id.String(), "stage", stage)
	}
}
