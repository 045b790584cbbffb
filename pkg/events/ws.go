package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// writeTimeout bounds how long a single WebSocket send may block before the
// tail connection is considered stalled.
const writeTimeout = 5 * time.Second

// noMatchPattern is a sentinel pattern guaranteed not to match any real
// topic, used to park a subscription while a client is unsubscribed.
const noMatchPattern = "\x00none"

// TailServer serves the optional WebSocket event-tail endpoint
// (GET /api/jobs/{id}/events) by bridging Bus subscriptions onto
// per-connection WebSocket sends. One TailServer per process; each
// HandleConnection call owns one client for its lifetime.
type TailServer struct {
	bus *Bus
}

// NewTailServer constructs a TailServer over bus.
func NewTailServer(bus *Bus) *TailServer {
	return &TailServer{bus: bus}
}

// HandleConnection drives a single WebSocket client: it subscribes to
// pattern on connect, relays matching events until the client disconnects
// or re-subscribes to a different pattern, and cleans up its Bus
// subscription on exit. Blocks until the connection closes.
func (s *TailServer) HandleConnection(ctx context.Context, conn *websocket.Conn, pattern string) {
	connID := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := s.bus.Subscribe(pattern)
	defer sub.Unsubscribe()

	readErrs := make(chan error, 1)
	msgs := make(chan ClientMessage, 1)
	go s.readLoop(ctx, conn, msgs, readErrs)

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-readErrs:
			if err != nil {
				slog.Debug("event tail connection closed", "connection_id", connID, "error", err)
			}
			return

		case msg := <-msgs:
			switch msg.Action {
			case "subscribe":
				sub.Unsubscribe()
				sub = s.bus.Subscribe(msg.Pattern)
			case "unsubscribe":
				sub.Unsubscribe()
				sub = s.bus.Subscribe(noMatchPattern)
			case "ping":
				s.send(ctx, conn, map[string]string{"type": "pong"})
			}

		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			s.send(ctx, conn, evt)
		}
	}
}

func (s *TailServer) readLoop(ctx context.Context, conn *websocket.Conn, msgs chan<- ClientMessage, errs chan<- error) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			errs <- err
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid event tail client message", "error", err)
			continue
		}
		select {
		case msgs <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *TailServer) send(ctx context.Context, conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal event tail message", "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Debug("failed to write event tail message", "error", err)
	}
}
