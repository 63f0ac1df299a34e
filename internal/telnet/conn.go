// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package telnet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/embermush/embermush/internal/dialog"
	"github.com/embermush/embermush/internal/freeze"
	"github.com/embermush/embermush/internal/observability"
	"github.com/embermush/embermush/internal/world"
)

// nameRx bounds principal names to a safe charset.
var nameRx = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{1,23}$`)

// AuthGate is the authentication surface a connection drives.
type AuthGate interface {
	HandleConnect(ctx context.Context, id ulid.ULID) error
	HandleResponse(ctx context.Context, id ulid.ULID, resp dialog.Response) error
	HandleDisconnect(id ulid.ULID)
}

// NameDirectory maps a principal name to its stable identifier.
type NameDirectory interface {
	EnsurePrincipal(ctx context.Context, name string) (ulid.ULID, error)
}

// Deps are the collaborators a connection handler needs.
type Deps struct {
	World     *world.World
	Guard     *freeze.Guard
	Gate      AuthGate
	Directory NameDirectory
	Gateway   *Gateway
	Metrics   *observability.Metrics // optional
}

// ConnHandler drives a single telnet connection.
type ConnHandler struct {
	conn   net.Conn
	reader *bufio.Reader
	deps   Deps

	id       ulid.ULID
	name     string
	avatar   *world.Avatar
	pending  *dialog.Prompt
	quitting bool
}

// NewConnHandler creates a handler for an accepted connection.
func NewConnHandler(conn net.Conn, deps Deps) *ConnHandler {
	return &ConnHandler{
		conn:   conn,
		reader: bufio.NewReader(conn),
		deps:   deps,
	}
}

// Handle processes the connection until closed. The sequence is name
// intake, world join, authentication gate, then the command loop.
func (h *ConnHandler) Handle(ctx context.Context) {
	defer func() {
		if err := h.conn.Close(); err != nil {
			slog.Debug("error closing connection", "error", err)
		}
	}()

	h.send("Welcome to EmberMUSH!")
	h.send("What is your name?")

	lineCh := make(chan string)
	errCh := make(chan error)

	go func() {
		for {
			line, err := h.reader.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			select {
			case lineCh <- strings.TrimSpace(line):
			case <-ctx.Done():
				return
			}
		}
	}()

	if !h.intakeName(ctx, lineCh, errCh) {
		return
	}

	addr := remoteHost(h.conn)
	id, err := h.deps.Directory.EnsurePrincipal(ctx, h.name)
	if err != nil {
		slog.Error("principal lookup failed", "name", h.name, "error", err)
		h.send("The world is unavailable right now. Please try again later.")
		return
	}
	h.id = id
	h.avatar = world.NewAvatar(id, h.name, addr)

	if err := h.deps.World.Join(h.avatar); err != nil {
		h.send("You are already connected from elsewhere.")
		return
	}
	defer h.deps.World.Leave(id)

	events := h.deps.World.Broadcaster().Subscribe(id)
	defer h.deps.World.Broadcaster().Unsubscribe(id)

	msgCh := h.deps.Gateway.Attach(id)
	defer h.deps.Gateway.Detach(id)

	if h.deps.Metrics != nil {
		h.deps.Metrics.ConnectionsTotal.WithLabelValues("telnet").Inc()
	}

	if err := h.deps.Gate.HandleConnect(ctx, id); err != nil {
		slog.Error("authentication gate rejected connect",
			"principal_id", id.String(), "name", h.name, "error", err)
		h.send("Authentication is unavailable right now. Please try again later.")
		return
	}
	defer h.deps.Gate.HandleDisconnect(id)

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-errCh:
			if !errors.Is(err, io.EOF) {
				slog.Debug("connection read error",
					"principal_id", id.String(), "error", err)
			}
			return

		case line := <-lineCh:
			h.processLine(ctx, line)
			if h.quitting {
				return
			}

		case m, ok := <-msgCh:
			if !ok {
				// Replaced by a newer connection for the same principal.
				return
			}
			for _, l := range m.Lines {
				h.send(l)
			}
			if m.Prompt != nil {
				h.pending = m.Prompt
			}
			if m.Kick {
				return
			}

		case ev := <-events:
			h.sendWorldEvent(ev)
		}
	}
}

// intakeName reads lines until a valid name arrives. Returns false when
// the connection ended first.
func (h *ConnHandler) intakeName(ctx context.Context, lineCh <-chan string, errCh <-chan error) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-errCh:
			return false
		case line := <-lineCh:
			if !nameRx.MatchString(line) {
				h.send("Names are 2-24 letters, digits, '-' or '_', starting with a letter.")
				h.send("What is your name?")
				continue
			}
			h.name = line
			return true
		}
	}
}

func (h *ConnHandler) processLine(ctx context.Context, line string) {
	cmd, arg := splitCommand(line)

	switch strings.ToLower(cmd) {
	case "quit":
		h.send("Goodbye!")
		h.quitting = true
	case "say":
		h.handleSay(arg)
	case "go":
		h.handleMove(arg)
	case "drop":
		h.handleDrop()
	case "look":
		h.handleLook()
	case "":
		if h.pending != nil {
			h.respond(ctx, line)
		}
	default:
		if h.pending != nil {
			h.respond(ctx, line)
			return
		}
		h.send("Unknown command: " + cmd)
	}
}

// respond maps a raw line onto the pending prompt.
func (h *ConnHandler) respond(ctx context.Context, line string) {
	resp, ok := ParseResponse(h.pending, line)
	if !ok {
		h.send("Please choose one of the offered options.")
		return
	}
	h.pending = nil
	if err := h.deps.Gate.HandleResponse(ctx, h.id, resp); err != nil {
		slog.Error("authentication response failed",
			"principal_id", h.id.String(), "error", err)
		h.send("Something went wrong. Please try again.")
	}
}

func (h *ConnHandler) handleSay(message string) {
	if message == "" {
		h.send("Say what?")
		return
	}
	verdict := h.deps.Guard.Gate(world.Action{Kind: world.ActionChat, Principal: h.id})
	if !verdict.Allowed {
		if verdict.Notice != "" {
			h.send(verdict.Notice)
		}
		return
	}
	h.deps.World.Broadcaster().Broadcast(world.Event{
		Type:    world.EventChat,
		Actor:   h.id,
		Message: fmt.Sprintf("%s says, %q", h.name, message),
	})
	h.send(fmt.Sprintf("You say, %q", message))
}

func (h *ConnHandler) handleMove(direction string) {
	verdict := h.deps.Guard.Gate(world.Action{Kind: world.ActionMove, Principal: h.id})
	if !verdict.Allowed {
		// Movement while frozen reverts without feedback.
		return
	}

	pos := h.avatar.Position()
	switch strings.ToLower(direction) {
	case "north", "n":
		pos.Z--
	case "south", "s":
		pos.Z++
	case "east", "e":
		pos.X++
	case "west", "w":
		pos.X--
	default:
		h.send("Go where? (north, south, east, west)")
		return
	}
	h.avatar.SetPosition(pos)
	h.send("You walk " + strings.ToLower(direction) + ".")
}

func (h *ConnHandler) handleDrop() {
	slot := h.avatar.HeldSlot()
	item := h.avatar.ItemAt(slot)
	if item == nil {
		h.send("You have nothing to drop.")
		return
	}
	verdict := h.deps.Guard.Gate(world.Action{
		Kind:      world.ActionDropItem,
		Principal: h.id,
		Item:      item,
		Slot:      slot,
	})
	if !verdict.Allowed {
		if verdict.Notice != "" {
			h.send(verdict.Notice)
		}
		return
	}
	h.avatar.SetItem(slot, nil)
	h.send("You drop the " + item.Name + ".")
}

func (h *ConnHandler) handleLook() {
	if item := h.avatar.ItemAt(freeze.PinnedSlot); item != nil && h.deps.Guard.IsFrozen(h.id) {
		verdict := h.deps.Guard.Gate(world.Action{
			Kind:      world.ActionInventoryInspect,
			Principal: h.id,
			Item:      item,
			Slot:      freeze.PinnedSlot,
		})
		if verdict.Allowed {
			h.send("You are holding: " + item.Name)
		}
	}

	pos := h.avatar.Position()
	h.send(fmt.Sprintf("You are standing at (%.0f, %.0f, %.0f).", pos.X, pos.Y, pos.Z))

	var others []string
	h.deps.World.Each(func(a *world.Avatar) {
		if a.ID() == h.id || a.Hidden() || a.Vanished() {
			return
		}
		others = append(others, a.Name())
	})
	if len(others) > 0 {
		h.send("Also here: " + strings.Join(others, ", "))
	}
}

// sendWorldEvent relays a broadcast to this connection. Own chat lines
// are already echoed locally.
func (h *ConnHandler) sendWorldEvent(ev world.Event) {
	if ev.Type == world.EventChat && ev.Actor == h.id {
		return
	}
	h.send(ev.Message)
}

func (h *ConnHandler) send(msg string) {
	if _, err := fmt.Fprintln(h.conn, msg); err != nil {
		slog.Debug("failed to send message to client", "error", err)
	}
}

func splitCommand(line string) (cmd, arg string) {
	line = strings.TrimSpace(line)
	cmd, arg, _ = strings.Cut(line, " ")
	return cmd, strings.TrimSpace(arg)
}

// remoteHost strips the port so trusted-recency matches across ephemeral
// ports.
func remoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
