// Package ws bridges the event bus to WebSocket clients and accepts
// token submissions and manual switch requests over the same connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/kborowski/pivot/internal/engine"
	"github.com/kborowski/pivot/internal/events"
	"github.com/kborowski/pivot/internal/inputs"
	"github.com/kborowski/pivot/internal/mode"
)

// Engine is the slice of the runtime controller the hub needs.
type Engine interface {
	SubmitToken(inputs.Token)
	RequestManualSwitch(target string) error
	ModeContext() engine.ModeContext
}

// Client represents a connected WebSocket client.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub manages WebSocket clients and bridges them to the event bus.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	bus         *events.Bus
	eng         Engine
	unsubscribe func()
}

// NewHub creates a new WebSocket hub connected to an event bus.
func NewHub(bus *events.Bus, eng Engine) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		bus:     bus,
		eng:     eng,
	}

	// Subscribe to all events and bridge to WS clients
	h.unsubscribe = bus.Subscribe(func(e events.Event) {
		frame, err := NewEventFrame(string(e.Type), e)
		if err != nil {
			slog.Error("marshal event frame", "error", err)
			return
		}
		data, err := MarshalFrame(frame)
		if err != nil {
			slog.Error("marshal frame", "error", err)
			return
		}
		h.broadcast(data)
	})

	return h
}

// broadcast sends data to all connected clients.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

// register adds a client to the hub.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("ws client connected", "clients", len(h.clients))
}

// unregister removes a client from the hub.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		slog.Info("ws client disconnected", "clients", len(h.clients))
	}
}

// ServeWS handles a WebSocket upgrade and manages the client lifecycle.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for dev
	})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.register(client)

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)
}

// readPump reads frames from the WS connection and dispatches them.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws read error", "error", err)
			}
			return
		}

		frame, err := UnmarshalFrame(data)
		if err != nil {
			slog.Error("ws unmarshal frame", "error", err)
			continue
		}

		c.handleFrame(ctx, frame)
	}
}

// handleFrame processes an incoming WS frame.
func (c *Client) handleFrame(ctx context.Context, frame Frame) {
	switch frame.Type {
	case FrameTypeRequest:
		c.handleRequest(ctx, frame)
	default:
		slog.Debug("ws unknown frame type", "type", frame.Type)
	}
}

// handleRequest processes a request frame (method dispatch).
func (c *Client) handleRequest(ctx context.Context, frame Frame) {
	switch Method(frame.Method) {
	case MethodSubmitToken:
		var params struct {
			Text   string `json:"text"`
			Source string `json:"source"`
		}
		if err := json.Unmarshal(frame.Params, &params); err != nil || params.Text == "" {
			c.sendError(ctx, frame.ID, "invalid params")
			return
		}
		src := params.Source
		if src == "" {
			src = "ws"
		}
		c.hub.eng.SubmitToken(inputs.Token{Text: params.Text, Source: src, ReceivedAt: time.Now()})
		c.sendOK(ctx, frame.ID, map[string]string{"status": "queued"})

	case MethodSwitchMode:
		var params struct {
			Mode string `json:"mode"`
		}
		if err := json.Unmarshal(frame.Params, &params); err != nil || params.Mode == "" {
			c.sendError(ctx, frame.ID, "invalid params")
			return
		}
		if err := c.hub.eng.RequestManualSwitch(params.Mode); err != nil {
			c.sendError(ctx, frame.ID, switchErrorMessage(err))
			return
		}
		c.sendOK(ctx, frame.ID, map[string]string{"mode": params.Mode})

	case MethodGetMode:
		mc := c.hub.eng.ModeContext()
		c.sendOK(ctx, frame.ID, map[string]any{
			"mode":       mc.Mode,
			"entered_at": mc.EnteredAt,
		})

	default:
		c.sendError(ctx, frame.ID, "unknown method: "+frame.Method)
	}
}

func switchErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, mode.ErrManualSwitchDisabled):
		return "manual switching is disabled"
	case errors.Is(err, mode.ErrUnknownMode):
		return "unknown mode"
	default:
		return err.Error()
	}
}

// writePump writes queued messages to the WS connection.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) sendOK(ctx context.Context, id string, payload any) {
	f, err := NewResponseFrame(id, true, payload, "")
	if err != nil {
		slog.Error("ws response frame", "error", err)
		return
	}
	c.write(ctx, f)
}

func (c *Client) sendError(ctx context.Context, id, msg string) {
	f, err := NewResponseFrame(id, false, nil, msg)
	if err != nil {
		slog.Error("ws error frame", "error", err)
		return
	}
	c.write(ctx, f)
}

func (c *Client) write(ctx context.Context, f Frame) {
	data, err := MarshalFrame(f)
	if err != nil {
		slog.Error("ws marshal", "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}

// Close unsubscribes from the bus and disconnects all clients.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, c)
		close(c.send)
	}
}
