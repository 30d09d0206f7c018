package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Recorder writes history to a Store from its own goroutine so callers holding
// the room registry lock never wait on disk I/O. Events that do not fit in the
// buffer are dropped and logged.
type Recorder struct {
	store  *Store
	log    zerolog.Logger
	events chan func(*Store) error

	mu     sync.RWMutex // guards closed and sends on events
	closed bool
	done   chan struct{}
}

// NewRecorder starts a recorder with room for buffer pending events.
func NewRecorder(store *Store, buffer int, log zerolog.Logger) *Recorder {
	if buffer < 1 {
		buffer = 1
	}
	r := &Recorder{
		store:  store,
		log:    log.With().Str("component", "recorder").Logger(),
		events: make(chan func(*Store) error, buffer),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for ev := range r.events {
		if err := ev(r.store); err != nil {
			r.log.Error().Err(err).Msg("write history")
		}
	}
}

func (r *Recorder) enqueue(kind string, ev func(*Store) error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.Warn().Str("event", kind).Msg("recorder closed, dropping event")
		return
	}
	select {
	case r.events <- ev:
	default:
		r.log.Warn().Str("event", kind).Msg("history buffer full, dropping event")
	}
}

// RoomOpened records a created room.
func (r *Recorder) RoomOpened(code string, at time.Time) {
	r.enqueue("room_opened", func(s *Store) error { return s.OpenRoom(code, at) })
}

// RoomClosed records a deleted room.
func (r *Recorder) RoomClosed(code string, at time.Time) {
	r.enqueue("room_closed", func(s *Store) error { return s.CloseRoom(code, at) })
}

// MatchFinished records a finished match.
func (r *Recorder) MatchFinished(res Result) {
	r.enqueue("match_finished", func(s *Store) error { return s.SaveResult(res) })
}

// Close stops accepting events and waits until the pending ones are written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()
	<-r.done
}
