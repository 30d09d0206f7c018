package room

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxPlayers is the room capacity used when none is configured.
const DefaultMaxPlayers = 2

// Registry owns the live rooms and the connection-to-room links. It is the
// only place rooms are created, mutated or deleted.
type Registry struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	links      map[string]map[string]struct{} // connID -> codes
	gen        Generator
	maxPlayers int
	now        func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxPlayers sets the capacity of newly created rooms.
func WithMaxPlayers(n int) Option {
	return func(r *Registry) { r.maxPlayers = n }
}

// WithGenerator replaces the room code generator.
func WithGenerator(g Generator) Option {
	return func(r *Registry) { r.gen = g }
}

// WithClock replaces the time source used for room and player timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:      make(map[string]*Room),
		links:      make(map[string]map[string]struct{}),
		gen:        NewRandomGenerator(nil),
		maxPlayers: DefaultMaxPlayers,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxPlayers < 1 {
		r.maxPlayers = DefaultMaxPlayers
	}
	return r
}

// Update runs fn with exclusive access to the registry. Everything fn does
// through tx, including reading snapshots for broadcast, is atomic with respect
// to every other Update.
func (r *Registry) Update(fn func(tx *Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&Tx{r: r})
}

// Snapshot returns the public view of a live room.
func (r *Registry) Snapshot(code string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[code]
	if !ok {
		return Snapshot{}, false
	}
	return rm.Snapshot(), true
}

// List returns snapshots of all live rooms, oldest first.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// LeaveEverything is Tx.LeaveEverything in its own critical section.
func (r *Registry) LeaveEverything(connID string) []string {
	var codes []string
	_ = r.Update(func(tx *Tx) error {
		codes = tx.LeaveEverything(connID)
		return nil
	})
	return codes
}

// Tx is the registry as seen from inside Update. It must not be retained
// after the Update callback returns.
type Tx struct {
	r *Registry
}

// Now returns the registry clock's current time.
func (tx *Tx) Now() time.Time { return tx.r.now() }

// CreateRoom stores an empty room under a fresh unique code.
func (tx *Tx) CreateRoom() (*Room, error) {
	code, err := UniqueCode(tx.r.gen, func(c string) bool {
		_, taken := tx.r.rooms[c]
		return taken
	})
	if err != nil {
		return nil, err
	}
	rm := New(code, tx.r.maxPlayers, tx.r.now())
	tx.r.rooms[code] = rm
	return rm, nil
}

// Get looks up a live room. A missing room is not an error.
func (tx *Tx) Get(code string) (*Room, bool) {
	rm, ok := tx.r.rooms[code]
	return rm, ok
}

// Link records that connID participates in code.
func (tx *Tx) Link(connID, code string) {
	codes, ok := tx.r.links[connID]
	if !ok {
		codes = make(map[string]struct{})
		tx.r.links[connID] = codes
	}
	codes[code] = struct{}{}
}

// Unlink forgets that connID participates in code. Unlinking an absent link
// is a no-op; the connection's entry is dropped once it has no codes left.
func (tx *Tx) Unlink(connID, code string) {
	codes, ok := tx.r.links[connID]
	if !ok {
		return
	}
	delete(codes, code)
	if len(codes) == 0 {
		delete(tx.r.links, connID)
	}
}

// Links returns the codes connID is linked to, sorted.
func (tx *Tx) Links(connID string) []string {
	codes := make([]string, 0, len(tx.r.links[connID]))
	for code := range tx.r.links[connID] {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Delete removes a room and every link pointing at it. It reports whether the
// room existed.
func (tx *Tx) Delete(code string) bool {
	rm, ok := tx.r.rooms[code]
	if !ok {
		return false
	}
	for _, id := range rm.order {
		tx.Unlink(id, code)
	}
	delete(tx.r.rooms, code)
	return true
}

// LeaveEverything removes connID from every room it is linked to, deleting
// rooms left empty, and returns each affected code once. Calling it for a
// connection without links returns nil.
func (tx *Tx) LeaveEverything(connID string) []string {
	codes := tx.Links(connID)
	if len(codes) == 0 {
		return nil
	}
	for _, code := range codes {
		tx.Unlink(connID, code)
		rm, ok := tx.r.rooms[code]
		if !ok {
			continue
		}
		rm.Remove(connID)
		if rm.IsEmpty() {
			delete(tx.r.rooms, code)
		}
	}
	return codes
}

// Len returns the number of live rooms.
func (tx *Tx) Len() int { return len(tx.r.rooms) }
