package match

import (
	"errors"
	"fmt"

	"github.com/lox/triadsync/internal/rules"
)

// ErrStale reports that a transition's precondition no longer holds on the
// snapshot it was evaluated against.
var ErrStale = errors.New("transition no longer applies")

// Move rejections.
var (
	ErrNotPlaying          = errors.New("match is not in play")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrHandIndexOutOfRange = errors.New("hand index out of range")
	ErrPositionOccupied    = rules.ErrPositionOccupied
	ErrPositionOutOfRange  = rules.ErrPositionOutOfRange
)

// Room lifecycle rejections.
var (
	ErrRoomGone         = errors.New("room no longer exists")
	ErrRoomFull         = errors.New("room is full")
	ErrWrongPassword    = errors.New("wrong password")
	ErrPasswordRequired = errors.New("password protected rooms need a password")
	ErrNotParticipant   = errors.New("not a participant of this room")
	ErrSeatTaken        = errors.New("seat belongs to another participant")
)

// InvalidMoveError describes a rejected card placement.
type InvalidMoveError struct {
	Role      rules.Role
	Position  int
	HandIndex int
	Err       error
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("invalid move by %s (position %d, hand index %d): %v", e.Role, e.Position, e.HandIndex, e.Err)
}

func (e *InvalidMoveError) Unwrap() error {
	return e.Err
}

// IsInvalidMove reports whether err is a rejected move.
func IsInvalidMove(err error) bool {
	var target *InvalidMoveError
	return errors.As(err, &target)
}
