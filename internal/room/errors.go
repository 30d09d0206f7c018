package room

import "errors"

// Validation errors are expected outcomes of client requests; they are
// reported back to the requesting connection only.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyJoined    = errors.New("already in room")
	ErrNotMember        = errors.New("not a member of the room")
	ErrNoMatch          = errors.New("no game in progress")
	ErrMatchInProgress  = errors.New("a game is already in progress")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrNotSeated        = errors.New("not seated in the game")
)

// ErrCapacityExhausted is returned when no unused room code could be found.
// Unlike the validation errors it means the server, not the request, failed.
var ErrCapacityExhausted = errors.New("unable to generate a unique room code")

// IsValidation reports whether err is one of the room validation errors.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrRoomNotFound, ErrRoomFull, ErrAlreadyJoined, ErrNotMember,
		ErrNoMatch, ErrMatchInProgress, ErrNotEnoughPlayers, ErrNotSeated,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
