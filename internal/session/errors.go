package session

import (
	"errors"

	"github.com/lox/triadsync/internal/match"
)

var (
	// ErrRoomGone reports that the room document was deleted.
	ErrRoomGone = match.ErrRoomGone
	// ErrStoreUnavailable is returned for moves attempted while the store
	// is unreachable.
	ErrStoreUnavailable = errors.New("store unavailable, move not sent")
	// ErrNotStarted is returned by moves made before Start.
	ErrNotStarted = errors.New("session not started")
	// ErrClosed is returned by moves made after Leave.
	ErrClosed = errors.New("session closed")
)
