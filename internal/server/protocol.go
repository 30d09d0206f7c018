package server

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// WSMessage is the JSON envelope for websocket messages in both directions.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event names.
const (
	evPing          = "ping"
	evCreateRoom    = "createRoom"
	evJoinRoomCode  = "joinRoomCode"
	evLeaveRoomCode = "leaveRoomCode"
	evStartGame     = "startGame"
	evPlayMove      = "playMove"
	evResetGame     = "resetGame"
)

// Outbound event names.
const (
	evServerMessage = "serverMessage"
	evPong          = "pong"
	evRoomJoined    = "roomJoined"
	evRoomUpdate    = "roomUpdate"
	evErrorMessage  = "errorMessage"
	evRoomDeleted   = "roomDeleted"
	evGameUpdate    = "gameUpdate"
)

// Error kinds carried by errorMessage.
const (
	kindValidation = "validation"
	kindCapacity   = "capacity"
	kindProtocol   = "protocol"
)

const (
	defaultUsername = "Anonymous"
	maxUsernameLen  = 32
	defaultGame     = "tictactoe"
)

// The client timestamp is echoed verbatim; clients send integers or
// fractional milliseconds.
type pingPayload struct {
	When json.RawMessage `json:"when"`
}

type pongPayload struct {
	ClientTime json.RawMessage `json:"clientTime"`
}

type serverMessagePayload struct {
	Msg string `json:"msg"`
}

type createRoomPayload struct {
	Username string `json:"username"`
}

type joinRoomPayload struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type codePayload struct {
	Code string `json:"code"`
}

type startGamePayload struct {
	Code string `json:"code"`
	Game string `json:"game"`
}

type playMovePayload struct {
	Code string `json:"code"`
	Cell *int   `json:"cell"`
}

type errorPayload struct {
	Msg  string `json:"msg"`
	Kind string `json:"kind"`
}

type gamePayload struct {
	Code  string   `json:"code"`
	Game  string   `json:"game"`
	Seats []string `json:"seats"`
	State any      `json:"state"`
}

// decodePayload unmarshals an optional payload; a missing payload decodes to
// the zero value.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// cleanUsername trims a display name, substitutes the default for an empty
// one and caps its length.
func cleanUsername(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultUsername
	}
	if utf8.RuneCountInString(name) > maxUsernameLen {
		runes := []rune(name)
		name = strings.TrimSpace(string(runes[:maxUsernameLen]))
	}
	return name
}
