package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"lockstep/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Game clients connect from anywhere; auth happens in-protocol.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server owns the HTTP listener, the room table, and the shared rate
// limiter. Rooms are created lazily on first join and removed when
// their tick loop exits.
type Server struct {
	cfg         config.AppConfig
	rateLimiter *PlayerRateLimiter

	mu    sync.RWMutex
	rooms map[string]*Room

	httpSrv *http.Server
}

// New builds a server from the configuration.
func New(cfg config.AppConfig) *Server {
	return &Server{
		cfg:         cfg,
		rateLimiter: NewPlayerRateLimiter(cfg.Limits.MaxRequestsPerSecond),
		rooms:       make(map[string]*Room),
	}
}

// Handler builds the public HTTP surface: the websocket endpoint plus
// health and stats.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/ws", s.handleWS)
	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	return r
}

// Start binds the listener and serves until the context is canceled or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🌐 Listening on %s (tick rate %d Hz)", addr, s.cfg.Game.TickRate)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	}
}

// Shutdown stops accepting connections and tears down every room.
func (s *Server) Shutdown() error {
	log.Println("🛑 Shutting down")

	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()
	for _, r := range rooms {
		r.Stop()
	}

	s.rateLimiter.Stop()

	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// handleWS upgrades the connection and hands it to its read loop.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ Upgrade failed: %v", err)
		return
	}
	go newConn(ws, s).readLoop()
}

// roomFor returns the room, creating it lazily for a first join.
func (s *Server) roomFor(roomID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rooms[roomID]; ok {
		return r
	}
	r := NewRoom(roomID, s.cfg.Game, s.cfg.Limits, s.removeRoom)
	s.rooms[roomID] = r
	log.Printf("🏠 Room %s created", roomID)
	return r
}

// lookupRoom returns an existing room or nil. Reconnects never create
// rooms.
func (s *Server) lookupRoom(roomID string) *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[roomID]
}

func (s *Server) removeRoom(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
	log.Printf("🏚️ Room %s removed", roomID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// statsResponse is the /stats surface.
type statsResponse struct {
	Rooms        []RoomStats `json:"rooms"`
	RoomCount    int         `json:"room_count"`
	RateRejected uint64      `json:"rate_limited_total"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	resp := statsResponse{
		Rooms:        make([]RoomStats, 0, len(rooms)),
		RoomCount:    len(rooms),
		RateRejected: s.rateLimiter.Rejected(),
	}
	for _, r := range rooms {
		resp.Rooms = append(resp.Rooms, r.Stats())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
