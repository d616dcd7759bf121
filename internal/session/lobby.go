package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/rules"
	"github.com/lox/triadsync/internal/store"
	"github.com/rs/zerolog"
)

var errRoomIDTaken = errors.New("room id already in use")

// Lobby creates, joins, lists and reclaims rooms for one participant.
type Lobby struct {
	conn          store.Conn
	participantID string
	opts          options
	rooms         *Reclaimer
	logger        zerolog.Logger
}

// NewLobby creates a lobby acting as participantID over conn.
func NewLobby(conn store.Conn, participantID string, opts ...Option) *Lobby {
	o := buildOptions(opts)
	machine := match.NewMachine(o.timings)
	logger := o.logger.With().Str("component", "lobby").Str("participant", participantID).Logger()
	return &Lobby{
		conn:          conn,
		participantID: participantID,
		opts:          o,
		rooms:         NewReclaimer(conn, o.clock, machine.Timings.EmptyGrace, logger),
		logger:        logger,
	}
}

// ParticipantID returns the id this lobby acts as.
func (l *Lobby) ParticipantID() string {
	return l.participantID
}

// CreateRoom writes a new room with the caller as host and returns the
// host's session. The session is not started.
func (l *Lobby) CreateRoom(ctx context.Context, name string, passwordProtected bool, password, displayName string) (*Session, error) {
	now := l.opts.clock.Now()
	room, err := match.NewRoom(l.opts.newID(), name, passwordProtected, password, l.participantID, displayName, now)
	if err != nil {
		return nil, err
	}

	res, err := updateRoom(ctx, l.conn, room.ID, func(cur *match.Room) (*match.Room, error) {
		if cur != nil {
			return nil, errRoomIDTaken
		}
		return room, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	if !res.Committed {
		return nil, store.Cause(res.Reason)
	}

	l.logger.Info().Str("room", room.ID).Str("name", room.Name).Bool("protected", passwordProtected).Msg("Room created")
	return l.open(room.ID, rules.Host, displayName), nil
}

// JoinRoom takes the guest seat of roomID. A participant who already holds
// a seat in the room gets that seat back.
func (l *Lobby) JoinRoom(ctx context.Context, roomID, password, displayName string) (*Session, error) {
	var role rules.Role
	res, err := updateRoom(ctx, l.conn, roomID, func(cur *match.Room) (*match.Room, error) {
		if cur == nil {
			return nil, ErrRoomGone
		}
		now := l.opts.clock.Now()
		if seat, ok := cur.RoleOf(l.participantID); ok {
			role = seat
			return match.Enter(cur, seat, l.participantID, displayName, now)
		}
		role = rules.Guest
		return match.Join(cur, l.participantID, displayName, password, now)
	})
	if err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}
	if !res.Committed {
		return nil, store.Cause(res.Reason)
	}

	l.logger.Info().Str("room", roomID).Str("role", role.String()).Msg("Joined room")
	return l.open(roomID, role, displayName), nil
}

// ListRooms returns the rooms open for play, newest first. Listing also
// reclaims rooms: a room whose participants are both offline is stamped
// empty, and one that stays empty past the grace period is deleted.
func (l *Lobby) ListRooms(ctx context.Context) ([]match.Summary, error) {
	return l.rooms.ListRooms(ctx)
}

// DeleteRoom removes a room outright.
func (l *Lobby) DeleteRoom(ctx context.Context, roomID string) error {
	return l.rooms.DeleteRoom(ctx, roomID)
}

func (l *Lobby) open(roomID string, role rules.Role, displayName string) *Session {
	return newSession(l.conn, roomID, role, l.participantID, displayName, l.opts)
}
