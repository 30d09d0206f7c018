package game

import "encoding/json"

// GameInfo describes a game type a room can host.
type GameInfo struct {
	Name  string `json:"name"`
	Seats int    `json:"seats"`
}

// Action represents a move submitted by the player in one seat.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Outcome summarizes a finished match. Winner is a seat index, or -1 for a draw.
type Outcome struct {
	Winner int
	Draw   bool
	Moves  int
}

// Game describes a game type (tic-tac-toe today).
type Game interface {
	Info() GameInfo
	NewMatch() Match
}

// Match is one game in progress inside a room. Seats are numbered from 0.
type Match interface {
	// State returns a snapshot safe to send to clients.
	State() any
	// Turn returns the seat expected to move next, or -1 once the match is over.
	Turn() int
	ApplyAction(seat int, action Action) error
	IsOver() bool
	Outcome() Outcome
	Reset()
}
