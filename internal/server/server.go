package server

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"lobby/internal/game"
	"lobby/internal/room"
	"lobby/internal/storage"
)

// History receives room and match lifecycle events. Implementations must not
// block: they are called while the room registry is locked.
type History interface {
	RoomOpened(code string, at time.Time)
	RoomClosed(code string, at time.Time)
	MatchFinished(res storage.Result)
}

type nopHistory struct{}

func (nopHistory) RoomOpened(string, time.Time)  {}
func (nopHistory) RoomClosed(string, time.Time)  {}
func (nopHistory) MatchFinished(storage.Result) {}

// Options tunes a Server. Zero values select the defaults.
type Options struct {
	Logger         zerolog.Logger
	History        History
	Store          *storage.Store // backs /api/results; nil disables it
	WebFS          fs.FS          // served at /; nil disables static files
	PingInterval   time.Duration  // 0 disables keepalive pings
	SendBuffer     int
	ReadLimit      int64
	AllowedOrigins []string // empty accepts any origin
}

// Server is the HTTP and websocket server.
type Server struct {
	mux     *http.ServeMux
	rooms   *room.Registry
	games   *game.Registry
	hub     *Hub
	history History
	store   *storage.Store
	log     zerolog.Logger
	opts    Options
}

// New creates a server with all routes. The registries are owned by the
// caller and shared by every connection.
func New(rooms *room.Registry, games *game.Registry, opts Options) *Server {
	if opts.History == nil {
		opts.History = nopHistory{}
	}
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 64
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 4096
	}
	s := &Server{
		mux:     http.NewServeMux(),
		rooms:   rooms,
		games:   games,
		hub:     NewHub(opts.Logger),
		history: opts.History,
		store:   opts.Store,
		log:     opts.Logger,
		opts:    opts,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	s.mux.HandleFunc("GET /api/rooms/{code}", s.handleGetRoom)
	s.mux.HandleFunc("GET /api/results", s.handleResults)

	if s.opts.WebFS != nil {
		s.mux.Handle("/", http.FileServer(http.FS(s.opts.WebFS)))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rooms": s.rooms.Len()})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.games.List())
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rooms.List())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := room.NormalizeCode(r.PathValue("code"))
	if !room.ValidCode(code) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}
	snap, ok := s.rooms.Snapshot(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
)

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history disabled"})
		return
	}
	limit := defaultResultsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxResultsLimit)
	}
	results, err := s.store.RecentResults(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list results")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Shutdown disconnects every live connection as if it had dropped.
func (s *Server) Shutdown() {
	for _, id := range s.hub.ids() {
		s.onDisconnect(id)
		s.hub.Unregister(id)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
