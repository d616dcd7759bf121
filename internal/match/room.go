package match

import (
	"strings"
	"time"

	"github.com/lox/triadsync/internal/rules"
)

// DefaultRoomName is used when a room is created without a name.
const DefaultRoomName = "Unnamed room"

// NewRoom builds the document for a freshly created room. The creator holds
// the host seat and is online.
func NewRoom(id, name string, passwordProtected bool, password, hostID, hostName string, now time.Time) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultRoomName
	}
	if passwordProtected && password == "" {
		return nil, ErrPasswordRequired
	}
	if !passwordProtected {
		password = ""
	}
	return &Room{
		ID:                id,
		Name:              name,
		PasswordProtected: passwordProtected,
		Password:          password,
		CreatedAt:         now.UnixMilli(),
		HostID:            hostID,
		HostName:          hostName,
		HostOnline:        true,
		LastActivityAt:    now.UnixMilli(),
		Game:              NewGame(),
	}, nil
}

// CheckPassword verifies password against a protected room.
func (r *Room) CheckPassword(password string) error {
	if r.PasswordProtected && r.Password != password {
		return ErrWrongPassword
	}
	return nil
}

// Join seats guestID as the guest. Re-joining with the same id is allowed.
func Join(r *Room, guestID, guestName, password string, now time.Time) (*Room, error) {
	if r == nil {
		return nil, ErrRoomGone
	}
	if err := r.CheckPassword(password); err != nil {
		return nil, err
	}
	if r.HostID == guestID {
		return nil, ErrSeatTaken
	}
	if r.GuestID != "" && r.GuestID != guestID {
		return nil, ErrRoomFull
	}

	out := r.Clone()
	out.GuestID = guestID
	out.GuestName = guestName
	out.GuestOnline = true
	out.LastActivityAt = now.UnixMilli()
	out.EmptySince = nil
	if out.Game == nil {
		out.Game = NewGame()
	}
	return out, nil
}

// Enter marks participantID online in its seat, claiming the host seat when
// it is still unassigned. It also makes sure the game sub-document exists.
func Enter(r *Room, role rules.Role, participantID, name string, now time.Time) (*Room, error) {
	if r == nil {
		return nil, ErrRoomGone
	}
	out := r.Clone()
	switch role {
	case rules.Host:
		if out.HostID != "" && out.HostID != participantID {
			return nil, ErrSeatTaken
		}
		out.HostID = participantID
		if name != "" {
			out.HostName = name
		}
		out.HostOnline = true
	case rules.Guest:
		if out.GuestID != participantID {
			return nil, ErrNotParticipant
		}
		if name != "" {
			out.GuestName = name
		}
		out.GuestOnline = true
	default:
		return nil, ErrNotParticipant
	}
	out.LastActivityAt = now.UnixMilli()
	out.EmptySince = nil
	if out.Game == nil {
		out.Game = NewGame()
	}
	return out, nil
}

// SetOnline updates role's presence flag. Coming online clears emptySince.
func SetOnline(r *Room, role rules.Role, online bool, now time.Time) (*Room, error) {
	if r == nil {
		return nil, ErrRoomGone
	}
	if r.Online(role) == online && (!online || r.EmptySince == nil) {
		return nil, ErrStale
	}
	out := r.Clone()
	if role == rules.Host {
		out.HostOnline = online
	} else {
		out.GuestOnline = online
	}
	out.LastActivityAt = now.UnixMilli()
	if online {
		out.EmptySince = nil
	}
	return out, nil
}

// MarkEmpty stamps emptySince the first time both participants are seen
// offline.
func MarkEmpty(r *Room, now time.Time) (*Room, error) {
	if r == nil {
		return nil, ErrRoomGone
	}
	if r.HostOnline || r.GuestOnline || r.EmptySince != nil {
		return nil, ErrStale
	}
	out := r.Clone()
	out.EmptySince = millis(now)
	return out, nil
}

// Abandoned reports whether both participants are offline.
func (r *Room) Abandoned() bool {
	return !r.HostOnline && !r.GuestOnline
}

// Reclaimable reports whether r has been empty for longer than grace.
func (r *Room) Reclaimable(now time.Time, grace time.Duration) bool {
	if r.EmptySince == nil {
		return false
	}
	return now.UnixMilli()-*r.EmptySince > grace.Milliseconds()
}

// Listed reports whether the lobby should show r.
func (r *Room) Listed() bool {
	return r.EmptySince == nil
}

// InitGame gives r a waiting game when it has none yet.
func InitGame(r *Room) (*Room, error) {
	if r == nil {
		return nil, ErrRoomGone
	}
	if r.Game != nil {
		return nil, ErrStale
	}
	out := r.Clone()
	out.Game = NewGame()
	return out, nil
}
