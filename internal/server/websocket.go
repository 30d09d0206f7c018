package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     s.opts.AllowedOrigins,
		InsecureSkipVerify: len(s.opts.AllowedOrigins) == 0,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")
	conn.SetReadLimit(s.opts.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := uuid.NewString()
	log := s.log.With().Str("conn", id).Logger()
	client := newClient(id, s.opts.SendBuffer)
	s.hub.Register(client)
	log.Info().Str("remote", r.RemoteAddr).Msg("connected")
	s.onConnect(id)

	go writeLoop(ctx, conn, client)
	if s.opts.PingInterval > 0 {
		go keepalive(ctx, conn, s.opts.PingInterval, log)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			logReadError(log, err)
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(id, "", protocolError{"invalid message"})
			continue
		}
		s.handleMessage(id, msg)
	}

	s.onDisconnect(id)
	s.hub.Unregister(id)
	log.Info().Msg("disconnected")
}

// messageConn is the part of *websocket.Conn the writer needs.
type messageConn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// writeLoop drains the client's send channel onto the socket. The channel is
// closed when the hub unregisters the client. A failed write closes the
// socket so the read loop ends and the client is unregistered.
func writeLoop(ctx context.Context, conn messageConn, c *Client) {
	for msg := range c.Send() {
		if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
			conn.Close(websocket.StatusInternalError, "write failed")
			return
		}
	}
	conn.Close(websocket.StatusGoingAway, "")
}

// keepalive pings the peer and drops the connection when a pong does not
// arrive within one interval.
func keepalive(ctx context.Context, conn *websocket.Conn, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Msg("ping failed, closing connection")
					conn.Close(websocket.StatusPolicyViolation, "ping timeout")
				}
				return
			}
		}
	}
}

func logReadError(log zerolog.Logger, err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Debug().Err(err).Msg("read")
}
