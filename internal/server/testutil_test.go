package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"lobby/internal/game"
	"lobby/internal/game/tictactoe"
	"lobby/internal/room"
	"lobby/internal/storage"
)

// --- Test environment ---

type testEnv struct {
	ts    *httptest.Server
	srv   *Server
	rooms *room.Registry
	store *storage.Store
	rec   *storage.Recorder
}

// scriptedCodes hands out the given codes first, then random ones.
type scriptedCodes struct {
	mu    sync.Mutex
	codes []string
	rnd   *room.RandomGenerator
}

func newScriptedCodes(codes ...string) *scriptedCodes {
	return &scriptedCodes{codes: codes, rnd: room.NewRandomGenerator(nil)}
}

func (g *scriptedCodes) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return g.rnd.Generate()
	}
	code := g.codes[0]
	g.codes = g.codes[1:]
	return code
}

func setupTestEnv(t *testing.T, opts ...room.Option) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	rec := storage.NewRecorder(store, 64, zerolog.Nop())
	t.Cleanup(func() {
		rec.Close()
		store.Close()
	})

	games := game.NewRegistry()
	games.Register(tictactoe.TicTacToe{})
	rooms := room.NewRegistry(opts...)

	srv := New(rooms, games, Options{
		Logger:  zerolog.Nop(),
		History: rec,
		Store:   store,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, srv: srv, rooms: rooms, store: store, rec: rec}
}

func timeoutCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/ws"
}

// wsConnect dials the server and consumes the welcome message.
func wsConnect(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := timeoutCtx(t)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts), nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	msg := wsRead(ctx, t, conn)
	if msg.Type != evServerMessage {
		t.Fatalf("expected %s, got %s", evServerMessage, msg.Type)
	}
	return conn
}

// wsSend marshals and writes one event, calling t.Fatal on error.
func wsSend(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	p, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: p})
	if err != nil {
		t.Fatalf("marshal ws message: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("ws write: %v", err)
	}
}

// wsRead reads and unmarshals one message, calling t.Fatal on error.
func wsRead(ctx context.Context, t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal ws message: %v", err)
	}
	return msg
}

// expect reads one message, checks its type and decodes its payload into v.
func expect(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, v any) {
	t.Helper()
	msg := wsRead(ctx, t, conn)
	if msg.Type != msgType {
		t.Fatalf("expected %s, got %s: %s", msgType, msg.Type, string(msg.Payload))
	}
	if v != nil {
		if err := json.Unmarshal(msg.Payload, v); err != nil {
			t.Fatalf("unmarshal %s payload: %v", msgType, err)
		}
	}
}

func expectSnapshot(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string) room.Snapshot {
	t.Helper()
	var snap room.Snapshot
	expect(ctx, t, conn, msgType, &snap)
	return snap
}

func expectError(ctx context.Context, t *testing.T, conn *websocket.Conn) errorPayload {
	t.Helper()
	var ep errorPayload
	expect(ctx, t, conn, evErrorMessage, &ep)
	return ep
}

// expectQuiet proves nothing else is queued for conn by round-tripping a ping.
func expectQuiet(ctx context.Context, t *testing.T, conn *websocket.Conn) {
	t.Helper()
	when := strconv.FormatInt(time.Now().UnixMilli(), 10)
	wsSend(ctx, t, conn, evPing, pingPayload{When: json.RawMessage(when)})
	var pong pongPayload
	expect(ctx, t, conn, evPong, &pong)
	require.JSONEq(t, when, string(pong.ClientTime))
}

// createRoom sends createRoom and returns the room code after draining the
// roomJoined and roomUpdate replies.
func createRoom(ctx context.Context, t *testing.T, conn *websocket.Conn, username string) string {
	t.Helper()
	wsSend(ctx, t, conn, evCreateRoom, createRoomPayload{Username: username})
	joined := expectSnapshot(ctx, t, conn, evRoomJoined)
	expectSnapshot(ctx, t, conn, evRoomUpdate)
	return joined.Code
}

// joinRoom sends joinRoomCode and drains the joiner's replies.
func joinRoom(ctx context.Context, t *testing.T, conn *websocket.Conn, username, code string) room.Snapshot {
	t.Helper()
	wsSend(ctx, t, conn, evJoinRoomCode, joinRoomPayload{Username: username, Code: code})
	joined := expectSnapshot(ctx, t, conn, evRoomJoined)
	expectSnapshot(ctx, t, conn, evRoomUpdate)
	return joined
}
