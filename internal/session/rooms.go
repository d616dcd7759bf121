package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/store"
	"github.com/rs/zerolog"
)

// RoomPrefix namespaces room documents in the store.
const RoomPrefix = "triad_rooms/"

// RoomKey is the store key of room id.
func RoomKey(id string) string {
	return RoomPrefix + id
}

// RoomIDFromKey reverses RoomKey.
func RoomIDFromKey(key string) string {
	return strings.TrimPrefix(key, RoomPrefix)
}

// DecodeRoom decodes a room snapshot and fills in its id. Missing documents
// decode to nil.
func DecodeRoom(snap store.Snapshot) (*match.Room, error) {
	room, err := store.Decode[match.Room](snap)
	if err != nil || room == nil {
		return nil, err
	}
	room.ID = RoomIDFromKey(snap.Key)
	return room, nil
}

// updateRoom runs fn as a conditional update of the room document. fn
// receives nil when the room is gone and returns nil to delete it. Errors
// from fn abort the update and come back as the result's Reason.
func updateRoom(ctx context.Context, b store.Backend, id string, fn func(*match.Room) (*match.Room, error)) (store.Result, error) {
	return store.UpdateJSON(ctx, b, RoomKey(id), func(cur *match.Room) (*match.Room, error) {
		if cur != nil {
			cur.ID = id
		}
		next, err := fn(cur)
		if err != nil {
			return nil, store.Abort(err)
		}
		return next, nil
	})
}

// Reclaimer lists rooms and applies the empty-room lifecycle to them: a
// room whose participants are both offline is stamped empty, and one that
// stays empty past the grace period is deleted. Lobbies and the store
// server's listing share it.
type Reclaimer struct {
	backend store.Backend
	clock   quartz.Clock
	grace   time.Duration
	logger  zerolog.Logger
}

// NewReclaimer creates a Reclaimer over b. A zero grace falls back to the
// default.
func NewReclaimer(b store.Backend, clock quartz.Clock, grace time.Duration, logger zerolog.Logger) *Reclaimer {
	return &Reclaimer{
		backend: b,
		clock:   clock,
		grace:   match.NewMachine(match.Timings{EmptyGrace: grace}).Timings.EmptyGrace,
		logger:  logger,
	}
}

// ListRooms returns the rooms open for play, newest first, reclaiming
// abandoned rooms along the way.
func (r *Reclaimer) ListRooms(ctx context.Context) ([]match.Summary, error) {
	snaps, err := r.backend.List(ctx, RoomPrefix)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	out := make([]match.Summary, 0, len(snaps))
	for _, snap := range snaps {
		room, err := DecodeRoom(snap)
		if err != nil {
			r.logger.Warn().Err(err).Str("key", snap.Key).Msg("Skipping undecodable room")
			continue
		}
		if room == nil {
			continue
		}
		room, err = r.sweep(ctx, room)
		if err != nil {
			return nil, err
		}
		if room != nil && room.Listed() {
			out = append(out, room.Summary())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// sweep applies reclamation to one room and returns what remains of it.
func (r *Reclaimer) sweep(ctx context.Context, room *match.Room) (*match.Room, error) {
	switch {
	case room.Reclaimable(r.clock.Now(), r.grace):
		res, err := updateRoom(ctx, r.backend, room.ID, func(cur *match.Room) (*match.Room, error) {
			if cur == nil || !cur.Reclaimable(r.clock.Now(), r.grace) {
				return nil, match.ErrStale
			}
			return nil, nil
		})
		if err != nil {
			return nil, fmt.Errorf("reclaim room %s: %w", room.ID, err)
		}
		if res.Committed {
			r.logger.Info().Str("room", room.ID).Msg("Reclaimed empty room")
			return nil, nil
		}
		return DecodeRoom(res.Snapshot)

	case room.Abandoned() && room.EmptySince == nil:
		res, err := updateRoom(ctx, r.backend, room.ID, func(cur *match.Room) (*match.Room, error) {
			return match.MarkEmpty(cur, r.clock.Now())
		})
		if err != nil {
			return nil, fmt.Errorf("mark room %s empty: %w", room.ID, err)
		}
		r.logger.Debug().Str("room", room.ID).Bool("stamped", res.Committed).Msg("Room is empty")
		return DecodeRoom(res.Snapshot)
	}
	return room, nil
}

// DeleteRoom removes a room outright. A missing room is ErrRoomGone.
func (r *Reclaimer) DeleteRoom(ctx context.Context, roomID string) error {
	res, err := updateRoom(ctx, r.backend, roomID, func(cur *match.Room) (*match.Room, error) {
		if cur == nil {
			return nil, ErrRoomGone
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if !res.Committed {
		return store.Cause(res.Reason)
	}
	r.logger.Info().Str("room", roomID).Msg("Room deleted")
	return nil
}

func sortNewestFirst(rooms []match.Summary) {
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt != rooms[j].CreatedAt {
			return rooms[i].CreatedAt > rooms[j].CreatedAt
		}
		return rooms[i].ID > rooms[j].ID
	})
}
