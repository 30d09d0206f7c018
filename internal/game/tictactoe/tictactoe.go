package tictactoe

import (
	"encoding/json"
	"errors"
	"fmt"

	"lobby/internal/game"
)

// ErrInvalidMove is returned when a move is rejected by the engine.
var ErrInvalidMove = errors.New("invalid move")

// Cell is the content of one board square.
type Cell uint8

const (
	Empty Cell = iota
	X
	O
)

func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

func (c Cell) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cell) UnmarshalText(b []byte) error {
	switch string(b) {
	case "":
		*c = Empty
	case "X":
		*c = X
	case "O":
		*c = O
	default:
		return fmt.Errorf("unknown cell %q", b)
	}
	return nil
}

// other returns the opposing mark.
func (c Cell) other() Cell {
	if c == X {
		return O
	}
	return X
}

// Status is the lifecycle state of a match.
type Status uint8

const (
	InProgress Status = iota
	Won
	Draw
)

// TicTacToe implements game.Game.
type TicTacToe struct{}

func (TicTacToe) Info() game.GameInfo {
	return game.GameInfo{Name: "tictactoe", Seats: 2}
}

func (TicTacToe) NewMatch() game.Match {
	return New()
}

// Match is the board and turn state of one game. Seat 0 plays X, seat 1 plays O.
type Match struct {
	Board  [9]Cell
	Next   Cell
	Status Status
	Winner Cell
	Moves  int
}

// New returns a match in its initial state: empty board, X to move.
func New() *Match {
	m := &Match{}
	m.Reset()
	return m
}

// Reset clears the board and gives the first move back to X.
func (m *Match) Reset() {
	m.Board = [9]Cell{}
	m.Next = X
	m.Status = InProgress
	m.Winner = Empty
	m.Moves = 0
}

// CurrentTurn returns the mark expected to move next.
func (m *Match) CurrentTurn() Cell {
	return m.Next
}

// PlayMove marks cell with the current turn's symbol. It reports false, leaving
// the match untouched, when the match is over, the index is outside [0, 9) or
// the cell is already marked.
func (m *Match) PlayMove(cell int) bool {
	if m.Status != InProgress {
		return false
	}
	if cell < 0 || cell >= len(m.Board) {
		return false
	}
	if m.Board[cell] != Empty {
		return false
	}

	mark := m.Next
	m.Board[cell] = mark
	m.Moves++
	switch {
	case m.checkWin(mark):
		m.Status = Won
		m.Winner = mark
	case m.boardFull():
		m.Status = Draw
	default:
		m.Next = mark.other()
	}
	return true
}

// Snapshot is the public view of a match.
type Snapshot struct {
	Board       [9]Cell `json:"board"`
	CurrentTurn Cell    `json:"currentTurn"`
	Winner      Cell    `json:"winner"`
	IsDraw      bool    `json:"isDraw"`
}

func (m *Match) Snapshot() Snapshot {
	return Snapshot{
		Board:       m.Board,
		CurrentTurn: m.Next,
		Winner:      m.Winner,
		IsDraw:      m.Status == Draw,
	}
}

func (m *Match) State() any {
	return m.Snapshot()
}

func (m *Match) Turn() int {
	if m.Status != InProgress {
		return -1
	}
	return seatOf(m.Next)
}

type movePayload struct {
	Cell int `json:"cell"`
}

// ApplyAction plays a "move" action for the given seat.
func (m *Match) ApplyAction(seat int, action game.Action) error {
	if m.Status != InProgress {
		return fmt.Errorf("%w: game is over", ErrInvalidMove)
	}
	if seat != seatOf(m.Next) {
		return fmt.Errorf("%w: not your turn", ErrInvalidMove)
	}
	if action.Type != "move" {
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidMove, action.Type)
	}
	var move movePayload
	if err := json.Unmarshal(action.Payload, &move); err != nil {
		return fmt.Errorf("%w: invalid move payload: %v", ErrInvalidMove, err)
	}
	if !m.PlayMove(move.Cell) {
		return fmt.Errorf("%w: cell %d is not playable", ErrInvalidMove, move.Cell)
	}
	return nil
}

func (m *Match) IsOver() bool {
	return m.Status != InProgress
}

func (m *Match) Outcome() game.Outcome {
	out := game.Outcome{Winner: -1, Moves: m.Moves}
	switch m.Status {
	case Won:
		out.Winner = seatOf(m.Winner)
	case Draw:
		out.Draw = true
	}
	return out
}

func seatOf(c Cell) int {
	if c == O {
		return 1
	}
	return 0
}

var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // cols
	{0, 4, 8}, {2, 4, 6}, // diags
}

func (m *Match) checkWin(mark Cell) bool {
	for _, line := range winLines {
		if m.Board[line[0]] == mark && m.Board[line[1]] == mark && m.Board[line[2]] == mark {
			return true
		}
	}
	return false
}

func (m *Match) boardFull() bool {
	for _, v := range m.Board {
		if v == Empty {
			return false
		}
	}
	return true
}
