package server

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case data, ok := <-c.Send():
			if !ok {
				return out
			}
			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func TestHubBroadcastReachesGroupOnly(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a, b, c := newClient("a", 4), newClient("b", 4), newClient("c", 4)
	h.Register(a)
	h.Register(b)
	h.Register(c)
	h.Join("AB12CD", "a")
	h.Join("AB12CD", "b")
	h.Join("AB12CD", "missing")

	h.Broadcast("AB12CD", evRoomUpdate, map[string]int{"n": 1})

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(c))
	assert.Equal(t, 2, h.Members("AB12CD"))
}

func TestHubLeaveAndUnregister(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a, b := newClient("a", 4), newClient("b", 4)
	h.Register(a)
	h.Register(b)
	h.Join("AB12CD", "a")
	h.Join("XY34ZW", "a")
	h.Join("XY34ZW", "b")

	h.Leave("AB12CD", "a")
	assert.Equal(t, 0, h.Members("AB12CD"))

	h.Unregister("a")
	h.Unregister("a")
	assert.Equal(t, 1, h.Members("XY34ZW"))
	_, open := <-a.Send()
	assert.False(t, open, "send channel should be closed")

	h.Send("a", evPong, nil)
	h.Broadcast("XY34ZW", evPong, nil)
	msgs := drain(b)
	require.Len(t, msgs, 1)
	assert.Equal(t, evPong, msgs[0].Type)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := newClient("a", 1)
	h.Register(a)

	h.Send("a", evPong, pongPayload{})
	h.Send("a", evPong, pongPayload{})

	assert.Len(t, drain(a), 1)
}

func TestCleanUsername(t *testing.T) {
	long := "abcdefghijklmnopqrstuvwxyzabcdefghij"
	tests := []struct {
		in, want string
	}{
		{"Alice", "Alice"},
		{"  Bob  ", "Bob"},
		{"", defaultUsername},
		{" \t ", defaultUsername},
		{long, long[:maxUsernameLen]},
		{"ééééééééééééééééééééééééééééééééé", "éééééééééééééééééééééééééééééééé"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanUsername(tt.in), "cleanUsername(%q)", tt.in)
	}
}

func TestDecodePayload(t *testing.T) {
	var p codePayload
	require.NoError(t, decodePayload(nil, &p))
	require.NoError(t, decodePayload(json.RawMessage("null"), &p))
	assert.Equal(t, "", p.Code)

	require.NoError(t, decodePayload(json.RawMessage(`{"code":"AB12CD"}`), &p))
	assert.Equal(t, "AB12CD", p.Code)

	assert.Error(t, decodePayload(json.RawMessage(`[1]`), &p))
}
