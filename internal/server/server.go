// Package server exposes a store Backend to remote participants over a
// websocket and serves a small HTTP API for the lobby.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/gorilla/websocket"
	"github.com/lox/triadsync/internal/auth"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/protocol"
	"github.com/lox/triadsync/internal/session"
	"github.com/lox/triadsync/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Server is the replicated store server.
type Server struct {
	backend  store.Backend
	timings  match.Timings
	clock    quartz.Clock
	rooms    *session.Reclaimer
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	router   chi.Router

	validator   auth.Validator
	failOpen    bool
	adminSecret string

	mu          sync.RWMutex
	connections map[*Connection]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithTimings sets the match timings advertised to clients.
func WithTimings(t match.Timings) Option {
	return func(s *Server) { s.timings = t }
}

// WithClock sets the clock used to reclaim empty rooms.
func WithClock(c quartz.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithAdminSecret enables DELETE /rooms/{id} for requests carrying secret.
func WithAdminSecret(secret string) Option {
	return func(s *Server) { s.adminSecret = secret }
}

// WithAuth requires store connections to present a token v accepts. With
// failOpen set, connections are admitted while v's service is unavailable.
func WithAuth(v auth.Validator, failOpen bool) Option {
	return func(s *Server) {
		s.validator = v
		s.failOpen = failOpen
	}
}

// NewServer creates a server over backend.
func NewServer(logger zerolog.Logger, backend store.Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		timings: match.DefaultTimings(),
		clock:   quartz.NewReal(),
		logger:  logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rooms = session.NewReclaimer(backend, s.clock, s.timings.EmptyGrace,
		s.logger.With().Str("component", "reclaimer").Logger())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/timings", s.handleTimings)
	r.Get("/rooms", s.handleRooms)
	r.Get("/rooms/{id}", s.handleRoom)
	if s.adminSecret != "" {
		r.With(auth.AdminOnly(s.adminSecret, s.logger)).Delete("/rooms/{id}", s.handleDeleteRoom)
	}
	if s.validator != nil {
		r.With(auth.Middleware(s.validator, s.failOpen, s.logger)).Get("/ws", s.handleWebSocket)
	} else {
		r.Get("/ws", s.handleWebSocket)
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is cancelled, then shuts down and closes
// every websocket connection.
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", addr).Msg("Starting store server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		s.closeAll()
		s.logger.Info().Msg("Store server stopped")
		return err
	})
	return g.Wait()
}

func (s *Server) register(c *Connection) {
	s.mu.Lock()
	s.connections[c] = struct{}{}
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info().Int("total", total).Msg("Client connected")
}

func (s *Server) unregister(c *Connection) {
	s.mu.Lock()
	_, ok := s.connections[c]
	delete(s.connections, c)
	total := len(s.connections)
	s.mu.Unlock()
	if ok {
		s.logger.Info().Int("total", total).Msg("Client disconnected")
	}
}

func (s *Server) closeAll() {
	s.mu.RLock()
	conns := make([]*Connection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.RUnlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// ConnectionCount returns the number of open websocket connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := s.logger
	header := http.Header{}
	if id, ok := auth.FromContext(r.Context()); ok {
		logger = logger.With().Str("participant_id", id.ParticipantID).Logger()
		header.Set(auth.ParticipantHeader, id.ParticipantID)
	}

	ws, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	conn := NewConnection(ws, store.Connect(s.backend), logger)
	s.register(conn)
	conn.Start()

	go func() {
		<-conn.Done()
		s.unregister(conn)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleTimings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, protocol.TimingsFrom(s.timings))
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.ListRooms(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list rooms")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, protocol.RoomList{Rooms: rooms})
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.backend.Get(r.Context(), session.RoomKey(id))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	room, err := session.DecodeRoom(snap)
	if err != nil || room == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "undecodable room"})
		return
	}
	writeJSON(w, http.StatusOK, room.Summary())
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.rooms.DeleteRoom(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrRoomGone):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
	case err != nil:
		s.logger.Error().Err(err).Str("room", id).Msg("Failed to delete room")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
