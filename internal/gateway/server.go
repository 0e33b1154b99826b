// Package gateway exposes the engine over HTTP and WebSocket: mode queries,
// manual switches, token submission, and the event/transition streams.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kborowski/pivot/internal/events"
	"github.com/kborowski/pivot/internal/gateway/ws"
	"github.com/kborowski/pivot/internal/inputs"
	"github.com/kborowski/pivot/internal/mode"
	"github.com/kborowski/pivot/internal/storage"
)

// Server is the pivot gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	eng        ws.Engine
	reg        *mode.Registry
	hist       *storage.History
	host       string
	port       int
}

// NewServer creates a new gateway server. hist may be nil when transition
// history is not persisted.
func NewServer(bus *events.Bus, eng ws.Engine, reg *mode.Registry, hist *storage.History, host string, port int) *Server {
	hub := ws.NewHub(bus, eng)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{
		hub:  hub,
		bus:  bus,
		eng:  eng,
		reg:  reg,
		hist: hist,
		host: host,
		port: port,
	}

	// Routes
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws", hub.ServeWS)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/mode", s.handleMode)
	r.Post("/api/mode/{name}", s.handleSwitchMode)
	r.Get("/api/modes", s.handleModes)
	r.Post("/api/tokens", s.handleTokens)
	r.Get("/api/transitions", s.handleTransitions)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}

	return s
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("pivot gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	mc := s.eng.ModeContext()
	writeJSON(w, map[string]any{
		"mode":         mc.Mode,
		"display_name": mc.DisplayName,
		"hertz":        mc.Hertz,
		"entered_at":   mc.EnteredAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleSwitchMode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.eng.RequestManualSwitch(name)
	switch {
	case err == nil:
		writeJSON(w, map[string]string{"mode": name})
	case errors.Is(err, mode.ErrManualSwitchDisabled):
		http.Error(w, "manual switching is disabled", http.StatusForbidden)
	case errors.Is(err, mode.ErrUnknownMode):
		http.Error(w, fmt.Sprintf("unknown mode %q", name), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	type modeJSON struct {
		Name        string  `json:"name"`
		DisplayName string  `json:"display_name"`
		Description string  `json:"description,omitempty"`
		Hertz       float64 `json:"hertz"`
		Default     bool    `json:"default"`
	}
	all := s.reg.All()
	result := make([]modeJSON, len(all))
	for i, m := range all {
		result[i] = modeJSON{
			Name:        m.Name,
			DisplayName: m.DisplayName,
			Description: m.Description,
			Hertz:       m.Hertz,
			Default:     m.Name == s.reg.Default().Name,
		}
	}
	writeJSON(w, result)
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text   string `json:"text"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		http.Error(w, "body must be {\"text\": ...}", http.StatusBadRequest)
		return
	}
	if body.Source == "" {
		body.Source = "api"
	}
	s.eng.SubmitToken(inputs.Token{Text: body.Text, Source: body.Source, ReceivedAt: time.Now()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	history := s.bus.History(limit)

	type eventJSON struct {
		ID        string             `json:"id"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}

	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}
	writeJSON(w, result)
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		http.Error(w, "transition history not available", http.StatusServiceUnavailable)
		return
	}
	list, err := s.hist.Recent(queryLimit(r, 50))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func queryLimit(r *http.Request, def int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	if limit <= 0 {
		limit = def
	}
	return limit
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
