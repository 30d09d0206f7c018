package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// RoomRow is one room's lifetime. ClosedAt is zero while the room is live.
type RoomRow struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
	ClosedAt  time.Time `json:"closedAt,omitzero"`
}

// Result is the outcome of one finished match.
type Result struct {
	ID         int64     `json:"id"`
	RoomCode   string    `json:"roomCode"`
	Game       string    `json:"game"`
	Players    []string  `json:"players"`
	Winner     string    `json:"winner,omitempty"`
	Draw       bool      `json:"draw"`
	Moves      int       `json:"moves"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Store keeps the room and match history in SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations. ":memory:" keeps
// the history for the lifetime of the process only.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// an in-memory database exists per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS rooms (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			code       TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			closed_at  DATETIME
		);
		CREATE INDEX IF NOT EXISTS rooms_code ON rooms(code);
		CREATE TABLE IF NOT EXISTS match_results (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			room_code   TEXT NOT NULL,
			game        TEXT NOT NULL,
			player_x    TEXT NOT NULL,
			player_o    TEXT NOT NULL,
			winner      TEXT NOT NULL DEFAULT '',
			draw        BOOLEAN NOT NULL DEFAULT 0,
			moves       INTEGER NOT NULL,
			finished_at DATETIME NOT NULL
		);
	`)
	return err
}

// OpenRoom records a newly created room.
func (s *Store) OpenRoom(code string, createdAt time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO rooms (code, created_at) VALUES (?, ?)",
		code, createdAt.UTC(),
	)
	return err
}

// CloseRoom marks the open room with the given code as closed. Codes are
// reused after a room closes, so only the open row is touched.
func (s *Store) CloseRoom(code string, closedAt time.Time) error {
	_, err := s.db.Exec(
		"UPDATE rooms SET closed_at = ? WHERE code = ? AND closed_at IS NULL",
		closedAt.UTC(), code,
	)
	return err
}

// RoomHistory returns every recorded lifetime of a code, newest first.
func (s *Store) RoomHistory(code string) ([]RoomRow, error) {
	rows, err := s.db.Query(
		"SELECT id, code, created_at, closed_at FROM rooms WHERE code = ? ORDER BY id DESC",
		code,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []RoomRow
	for rows.Next() {
		var (
			rr     RoomRow
			closed sql.NullTime
		)
		if err := rows.Scan(&rr.ID, &rr.Code, &rr.CreatedAt, &closed); err != nil {
			return nil, err
		}
		if closed.Valid {
			rr.ClosedAt = closed.Time
		}
		result = append(result, rr)
	}
	return result, rows.Err()
}

// SaveResult inserts a finished match.
func (s *Store) SaveResult(r Result) error {
	var x, o string
	if len(r.Players) > 0 {
		x = r.Players[0]
	}
	if len(r.Players) > 1 {
		o = r.Players[1]
	}
	_, err := s.db.Exec(`
		INSERT INTO match_results (room_code, game, player_x, player_o, winner, draw, moves, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RoomCode, r.Game, x, o, r.Winner, r.Draw, r.Moves, r.FinishedAt.UTC())
	return err
}

// RecentResults returns up to limit results, newest first.
func (s *Store) RecentResults(limit int) ([]Result, error) {
	rows, err := s.db.Query(`
		SELECT id, room_code, game, player_x, player_o, winner, draw, moves, finished_at
		FROM match_results ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Result{}
	for rows.Next() {
		var (
			r    Result
			x, o string
		)
		if err := rows.Scan(&r.ID, &r.RoomCode, &r.Game, &x, &o, &r.Winner, &r.Draw, &r.Moves, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.Players = []string{x, o}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
