package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"warkrs/internal/engine"
	"warkrs/internal/logbus"
	"warkrs/internal/store/sqlite"
	"warkrs/internal/ws"
)

type Options struct {
	Bus        *logbus.Bus
	Controller *engine.Controller
	Store      *sqlite.Store // optional
}

// Server is the local status/debug surface: a read-only view of the run
// state, the attempt journal, and a live log stream. It never mutates the
// run.
type Server struct {
	bus        *logbus.Bus
	controller *engine.Controller
	store      *sqlite.Store
	ws         *ws.Handler
}

func New(opts Options) *Server {
	return &Server{
		bus:        opts.Bus,
		controller: opts.Controller,
		store:      opts.Store,
		ws:         ws.NewHandler(opts.Bus),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/state", s.handleState)
	mux.HandleFunc("/api/v1/attempts", s.handleAttempts)
	mux.Handle("/ws", s.ws)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.controller.State()})
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "attempt journal is not configured"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	attempts, err := s.store.ListAttempts(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": attempts})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
