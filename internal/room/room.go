package room

import (
	"fmt"
	"time"

	"lobby/internal/game"
)

// Player is one connection's membership in a room.
type Player struct {
	ConnID   string
	Name     string
	JoinedAt time.Time
}

// Room is one code-addressed room. It is not safe for concurrent use; the
// Registry serializes every access.
type Room struct {
	Code       string
	MaxPlayers int
	CreatedAt  time.Time

	order   []string // connection IDs in join order
	players map[string]Player

	match     game.Match
	matchName string
	seats     []string // connection ID per seat, "" once vacated
}

// New creates an empty room.
func New(code string, maxPlayers int, createdAt time.Time) *Room {
	return &Room{
		Code:       code,
		MaxPlayers: maxPlayers,
		CreatedAt:  createdAt,
		players:    make(map[string]Player),
	}
}

// Add appends a player. It returns ErrRoomFull, leaving the room unchanged,
// when the room is already at capacity.
func (r *Room) Add(p Player) error {
	if r.IsFull() {
		return fmt.Errorf("room %s: %w", r.Code, ErrRoomFull)
	}
	if _, exists := r.players[p.ConnID]; exists {
		return fmt.Errorf("room %s: %w", r.Code, ErrAlreadyJoined)
	}
	r.players[p.ConnID] = p
	r.order = append(r.order, p.ConnID)
	return nil
}

// Remove drops a connection from the room and vacates its seat, if any.
// It reports whether the connection was present.
func (r *Room) Remove(connID string) bool {
	if _, ok := r.players[connID]; !ok {
		return false
	}
	delete(r.players, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	for i, id := range r.seats {
		if id == connID {
			r.seats[i] = ""
		}
	}
	return true
}

func (r *Room) Has(connID string) bool {
	_, ok := r.players[connID]
	return ok
}

func (r *Room) Len() int      { return len(r.players) }
func (r *Room) IsFull() bool  { return len(r.players) >= r.MaxPlayers }
func (r *Room) IsEmpty() bool { return len(r.players) == 0 }

// Players returns the players in join order.
func (r *Room) Players() []Player {
	out := make([]Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id])
	}
	return out
}

// ConnIDs returns the member connection IDs in join order.
func (r *Room) ConnIDs() []string {
	return append([]string(nil), r.order...)
}

// Snapshot is the public view of a room. It never carries connection IDs.
type Snapshot struct {
	Code       string   `json:"code"`
	Players    []string `json:"players"`
	MaxPlayers int      `json:"maxPlayers"`
	IsFull     bool     `json:"isFull"`
	CreatedAt  float64  `json:"createdAt"` // epoch seconds
}

func (r *Room) Snapshot() Snapshot {
	players := r.Players()
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}
	return Snapshot{
		Code:       r.Code,
		Players:    names,
		MaxPlayers: r.MaxPlayers,
		IsFull:     r.IsFull(),
		CreatedAt:  float64(r.CreatedAt.UnixNano()) / float64(time.Second),
	}
}

// StartMatch seats the earliest-joined players and starts a new match of g.
// A running match with every seat still occupied cannot be replaced.
func (r *Room) StartMatch(g game.Game) error {
	if r.match != nil && !r.match.IsOver() && r.seatsOccupied() {
		return fmt.Errorf("room %s: %w", r.Code, ErrMatchInProgress)
	}
	info := g.Info()
	if len(r.order) < info.Seats {
		return fmt.Errorf("room %s: need %d players, have %d: %w", r.Code, info.Seats, len(r.order), ErrNotEnoughPlayers)
	}
	r.seats = append([]string(nil), r.order[:info.Seats]...)
	r.match = g.NewMatch()
	r.matchName = info.Name
	return nil
}

// Match returns the room's match, or nil if none was started.
func (r *Room) Match() game.Match { return r.match }

// MatchName returns the game type of the room's match.
func (r *Room) MatchName() string { return r.matchName }

// Seat returns the seat held by connID in the current match.
func (r *Room) Seat(connID string) (int, bool) {
	for i, id := range r.seats {
		if id != "" && id == connID {
			return i, true
		}
	}
	return 0, false
}

// SeatNames returns the display name per seat, "" for a vacated seat.
func (r *Room) SeatNames() []string {
	names := make([]string, len(r.seats))
	for i, id := range r.seats {
		if p, ok := r.players[id]; ok {
			names[i] = p.Name
		}
	}
	return names
}

func (r *Room) seatsOccupied() bool {
	for _, id := range r.seats {
		if id == "" {
			return false
		}
	}
	return true
}
