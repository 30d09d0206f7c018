package server

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Client is one live websocket connection as seen by the hub.
type Client struct {
	ID   string
	send chan []byte

	closeOnce sync.Once
}

func newClient(id string, buffer int) *Client {
	return &Client{ID: id, send: make(chan []byte, buffer)}
}

// Send returns the channel of encoded outbound messages.
func (c *Client) Send() <-chan []byte { return c.send }

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub tracks live connections and the broadcast group of every room code.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[string]map[string]*Client // code -> connID -> client
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]*Client),
		log:     log,
	}
}

// Register adds a connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a connection from the hub and every group and closes its
// send channel. It is safe to call more than once.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	for code, members := range h.groups {
		delete(members, id)
		if len(members) == 0 {
			delete(h.groups, code)
		}
	}
	c.close()
}

// Join adds a connection to a room's broadcast group.
func (h *Hub) Join(code, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	members, ok := h.groups[code]
	if !ok {
		members = make(map[string]*Client)
		h.groups[code] = members
	}
	members[id] = c
}

// Leave removes a connection from a room's broadcast group.
func (h *Hub) Leave(code, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[code]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.groups, code)
	}
}

// Members returns the number of connections in a room's group.
func (h *Hub) Members(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[code])
}

// Send delivers one event to a single connection.
func (h *Hub) Send(id, msgType string, payload any) {
	msg, err := encode(msgType, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", msgType).Msg("encode message")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[id]; ok {
		h.push(c, msgType, msg)
	}
}

// Broadcast delivers one event to every connection in a room's group.
func (h *Hub) Broadcast(code, msgType string, payload any) {
	msg, err := encode(msgType, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", msgType).Msg("encode message")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.groups[code] {
		h.push(c, msgType, msg)
	}
}

// push never blocks; a client that cannot keep up loses the message.
func (h *Hub) push(c *Client, msgType string, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn().Str("conn", c.ID).Str("event", msgType).Msg("send buffer full, dropping message")
	}
}

func encode(msgType string, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: msgType, Payload: p})
}

func (h *Hub) ids() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}
