package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"lobby/internal/game"
	"lobby/internal/game/tictactoe"
	"lobby/internal/room"
	"lobby/internal/storage"
)

const welcomeMessage = "Welcome! Connection established"

// onConnect greets a new connection. No room state is touched.
func (s *Server) onConnect(id string) {
	s.hub.Send(id, evServerMessage, serverMessagePayload{Msg: welcomeMessage})
}

// onDisconnect removes the connection from every room it joined. Rooms that
// survive get a roomUpdate; deleted rooms get nothing since nobody is left to
// tell. Calling it twice for the same connection is harmless.
func (s *Server) onDisconnect(id string) {
	_ = s.rooms.Update(func(tx *room.Tx) error {
		codes := tx.LeaveEverything(id)
		for _, code := range codes {
			s.hub.Leave(code, id)
			rm, ok := tx.Get(code)
			if !ok {
				s.history.RoomClosed(code, tx.Now())
				s.log.Info().Str("conn", id).Str("code", code).Msg("room deleted on disconnect")
				continue
			}
			s.hub.Broadcast(code, evRoomUpdate, rm.Snapshot())
		}
		return nil
	})
}

// handleMessage dispatches one inbound event. Events from a single connection
// are handled in arrival order.
func (s *Server) handleMessage(id string, msg WSMessage) {
	var err error
	switch msg.Type {
	case evPing:
		err = s.onPing(id, msg.Payload)
	case evCreateRoom:
		err = s.onCreateRoom(id, msg.Payload)
	case evJoinRoomCode:
		err = s.onJoinRoomCode(id, msg.Payload)
	case evLeaveRoomCode:
		err = s.onLeaveRoomCode(id, msg.Payload)
	case evStartGame:
		err = s.onStartGame(id, msg.Payload)
	case evPlayMove:
		err = s.onPlayMove(id, msg.Payload)
	case evResetGame:
		err = s.onResetGame(id, msg.Payload)
	default:
		err = protocolError{fmt.Sprintf("unknown event type: %s", msg.Type)}
	}
	if err != nil {
		s.sendError(id, msg.Type, err)
	}
}

// protocolError reports a malformed event.
type protocolError struct{ msg string }

func (e protocolError) Error() string { return e.msg }

func (s *Server) sendError(id, event string, err error) {
	kind := kindValidation
	var perr protocolError
	switch {
	case errors.As(err, &perr):
		kind = kindProtocol
	case errors.Is(err, room.ErrCapacityExhausted):
		kind = kindCapacity
		s.log.Error().Err(err).Str("conn", id).Msg("room code space exhausted")
	case room.IsValidation(err), errors.Is(err, tictactoe.ErrInvalidMove):
	default:
		s.log.Error().Err(err).Str("conn", id).Str("event", event).Msg("handle event")
	}
	s.hub.Send(id, evErrorMessage, errorPayload{Msg: err.Error(), Kind: kind})
}

func (s *Server) onPing(id string, raw json.RawMessage) error {
	var p pingPayload
	if err := decodePayload(raw, &p); err != nil {
		return protocolError{"invalid ping payload"}
	}
	s.hub.Send(id, evPong, pongPayload{ClientTime: p.When})
	return nil
}

func (s *Server) onCreateRoom(id string, raw json.RawMessage) error {
	var p createRoomPayload
	if err := decodePayload(raw, &p); err != nil {
		return protocolError{"invalid createRoom payload"}
	}
	name := cleanUsername(p.Username)

	return s.rooms.Update(func(tx *room.Tx) error {
		rm, err := tx.CreateRoom()
		if err != nil {
			return err
		}
		if err := rm.Add(room.Player{ConnID: id, Name: name, JoinedAt: tx.Now()}); err != nil {
			tx.Delete(rm.Code)
			return err
		}
		s.hub.Join(rm.Code, id)
		tx.Link(id, rm.Code)
		s.history.RoomOpened(rm.Code, rm.CreatedAt)

		snap := rm.Snapshot()
		s.hub.Send(id, evRoomJoined, snap)
		s.hub.Broadcast(rm.Code, evRoomUpdate, snap)
		s.log.Info().Str("conn", id).Str("code", rm.Code).Str("user", name).Msg("room created")
		return nil
	})
}

func (s *Server) onJoinRoomCode(id string, raw json.RawMessage) error {
	var p joinRoomPayload
	if err := decodePayload(raw, &p); err != nil {
		return protocolError{"invalid joinRoomCode payload"}
	}
	name := cleanUsername(p.Username)
	code := room.NormalizeCode(p.Code)

	if !room.ValidCode(code) {
		return fmt.Errorf("room %q: %w", code, room.ErrRoomNotFound)
	}

	return s.rooms.Update(func(tx *room.Tx) error {
		rm, ok := tx.Get(code)
		if !ok {
			return fmt.Errorf("room %s: %w", code, room.ErrRoomNotFound)
		}
		if err := rm.Add(room.Player{ConnID: id, Name: name, JoinedAt: tx.Now()}); err != nil {
			return err
		}
		s.hub.Join(code, id)
		tx.Link(id, code)

		snap := rm.Snapshot()
		s.hub.Send(id, evRoomJoined, snap)
		s.hub.Broadcast(code, evRoomUpdate, snap)
		s.log.Info().Str("conn", id).Str("code", code).Str("user", name).Msg("room joined")
		return nil
	})
}

func (s *Server) onLeaveRoomCode(id string, raw json.RawMessage) error {
	var p codePayload
	if err := decodePayload(raw, &p); err != nil {
		return protocolError{"invalid leaveRoomCode payload"}
	}
	code := room.NormalizeCode(p.Code)

	return s.rooms.Update(func(tx *room.Tx) error {
		rm, ok := tx.Get(code)
		if !ok || !rm.Remove(id) {
			return nil
		}
		tx.Unlink(id, code)
		s.hub.Leave(code, id)

		if rm.IsEmpty() {
			tx.Delete(code)
			s.history.RoomClosed(code, tx.Now())
			s.hub.Send(id, evRoomDeleted, codePayload{Code: code})
			s.log.Info().Str("conn", id).Str("code", code).Msg("room deleted")
			return nil
		}
		s.hub.Broadcast(code, evRoomUpdate, rm.Snapshot())
		s.log.Info().Str("conn", id).Str("code", code).Msg("room left")
		return nil
	})
}

// memberRoom returns the room for code if id belongs to it.
func memberRoom(tx *room.Tx, code, id string) (*room.Room, error) {
	rm, ok := tx.Get(code)
	if !ok {
		return nil, fmt.Errorf("room %s: %w", code, room.ErrRoomNotFound)
	}
	if !rm.Has(id) {
		return nil, fmt.Errorf("room %s: %w", code, room.ErrNotMember)
	}
	return rm, nil
}

func (s *Server) onStartGame(id string, raw json.RawMessage) error {
	var p startGamePayload
	if err := decodePayload(raw, &p); err != nil {
		return protocolError{"invalid startGame payload"}
	}
	if p.Game == "" {
		p.Game = defaultGame
	}
	g, ok := s.games.Get(p.Game)
	if !ok {
		return protocolError{fmt.Sprintf("unknown game: %s", p.Game)}
	}
	code := room.NormalizeCode(p.Code)

	return s.rooms.Update(func(tx *room.Tx) error {
		rm, err := memberRoom(tx, code, id)
		if err != nil {
			return err
		}
		if err := rm.StartMatch(g); err != nil {
			return err
		}
		s.broadcastGame(rm)
		s.log.Info().Str("conn", id).Str("code", code).Str("game", p.Game).Msg("game started")
		return nil
	})
}

func (s *Server) onPlayMove(id string, raw json.RawMessage) error {
	var p playMovePayload
	if err := decodePayload(raw, &p); err != nil || p.Cell == nil {
		return protocolError{"invalid playMove payload"}
	}
	code := room.NormalizeCode(p.Code)
	move, _ := json.Marshal(struct {
		Cell int `json:"cell"`
	}{*p.Cell})

	return s.rooms.Update(func(tx *room.Tx) error {
		rm, err := memberRoom(tx, code, id)
		if err != nil {
			return err
		}
		m := rm.Match()
		if m == nil {
			return fmt.Errorf("room %s: %w", code, room.ErrNoMatch)
		}
		seat, ok := rm.Seat(id)
		if !ok {
			return fmt.Errorf("room %s: %w", code, room.ErrNotSeated)
		}
		if err := m.ApplyAction(seat, game.Action{Type: "move", Payload: move}); err != nil {
			return err
		}
		s.broadcastGame(rm)
		if m.IsOver() {
			s.history.MatchFinished(result(rm, tx))
		}
		return nil
	})
}

func (s *Server) onResetGame(id string, raw json.RawMessage) error {
	var p codePayload
	if err := decodePayload(raw, &p); err != nil {
		return protocolError{"invalid resetGame payload"}
	}
	code := room.NormalizeCode(p.Code)

	return s.rooms.Update(func(tx *room.Tx) error {
		rm, err := memberRoom(tx, code, id)
		if err != nil {
			return err
		}
		m := rm.Match()
		if m == nil {
			return fmt.Errorf("room %s: %w", code, room.ErrNoMatch)
		}
		m.Reset()
		s.broadcastGame(rm)
		return nil
	})
}

// broadcastGame must be called inside the registry critical section.
func (s *Server) broadcastGame(rm *room.Room) {
	s.hub.Broadcast(rm.Code, evGameUpdate, gamePayload{
		Code:  rm.Code,
		Game:  rm.MatchName(),
		Seats: rm.SeatNames(),
		State: rm.Match().State(),
	})
}

func result(rm *room.Room, tx *room.Tx) storage.Result {
	out := rm.Match().Outcome()
	seats := rm.SeatNames()
	res := storage.Result{
		RoomCode:   rm.Code,
		Game:       rm.MatchName(),
		Players:    seats,
		Draw:       out.Draw,
		Moves:      out.Moves,
		FinishedAt: tx.Now(),
	}
	if out.Winner >= 0 && out.Winner < len(seats) {
		res.Winner = seats[out.Winner]
	}
	return res
}
