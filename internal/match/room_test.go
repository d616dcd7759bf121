package match

import (
	"testing"
	"time"

	"github.com/lox/triadsync/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoom(t *testing.T) {
	r, err := NewRoom("id", "  ", false, "ignored", "h", "Alice", t0)
	require.NoError(t, err)
	assert.Equal(t, DefaultRoomName, r.Name)
	assert.Empty(t, r.Password)
	assert.True(t, r.HostOnline)
	assert.False(t, r.GuestOnline)
	assert.Equal(t, PhaseWaiting, r.Phase())
	assert.Equal(t, t0.UnixMilli(), r.CreatedAt)

	_, err = NewRoom("id", "locked", true, "", "h", "Alice", t0)
	assert.ErrorIs(t, err, ErrPasswordRequired)
}

func TestJoin(t *testing.T) {
	open, err := NewRoom("id", "open", false, "", "h", "Alice", t0)
	require.NoError(t, err)
	locked, err := NewRoom("id", "locked", true, "secret", "h", "Alice", t0)
	require.NoError(t, err)

	t.Run("joins open room", func(t *testing.T) {
		r, err := Join(open, "g", "Bob", "", t0)
		require.NoError(t, err)
		assert.Equal(t, "g", r.GuestID)
		assert.True(t, r.GuestOnline)
		assert.True(t, r.Full())
		assert.Empty(t, open.GuestID, "input must not change")
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := Join(locked, "g", "Bob", "nope", t0)
		assert.ErrorIs(t, err, ErrWrongPassword)
	})

	t.Run("right password", func(t *testing.T) {
		_, err := Join(locked, "g", "Bob", "secret", t0)
		assert.NoError(t, err)
	})

	t.Run("full", func(t *testing.T) {
		r, err := Join(open, "g", "Bob", "", t0)
		require.NoError(t, err)
		_, err = Join(r, "g2", "Carol", "", t0)
		assert.ErrorIs(t, err, ErrRoomFull)

		again, err := Join(r, "g", "Bob", "", t0)
		require.NoError(t, err, "same guest may rejoin")
		assert.Equal(t, "g", again.GuestID)
	})

	t.Run("host cannot take guest seat", func(t *testing.T) {
		_, err := Join(open, "h", "Alice", "", t0)
		assert.ErrorIs(t, err, ErrSeatTaken)
	})

	t.Run("gone", func(t *testing.T) {
		_, err := Join(nil, "g", "Bob", "", t0)
		assert.ErrorIs(t, err, ErrRoomGone)
	})
}

func TestEnter(t *testing.T) {
	r := newFullRoom(t)
	r.HostOnline = false
	stamp := t0.UnixMilli()
	r.EmptySince = &stamp

	next, err := Enter(r, rules.Host, "host-id", "", t0)
	require.NoError(t, err)
	assert.True(t, next.HostOnline)
	assert.Nil(t, next.EmptySince)
	assert.Equal(t, "Alice", next.HostName)

	_, err = Enter(r, rules.Host, "intruder", "Eve", t0)
	assert.ErrorIs(t, err, ErrSeatTaken)
	_, err = Enter(r, rules.Guest, "intruder", "Eve", t0)
	assert.ErrorIs(t, err, ErrNotParticipant)

	noGame := newFullRoom(t)
	noGame.Game = nil
	next, err = Enter(noGame, rules.Guest, "guest-id", "Bob", t0)
	require.NoError(t, err)
	require.NotNil(t, next.Game)
	assert.Equal(t, PhaseWaiting, next.Game.Phase)
}

func TestPresenceAndReclamation(t *testing.T) {
	grace := DefaultTimings().EmptyGrace
	r := newFullRoom(t)

	_, err := MarkEmpty(r, t0)
	assert.ErrorIs(t, err, ErrStale, "both online")

	r, err = SetOnline(r, rules.Host, false, t0)
	require.NoError(t, err)
	_, err = SetOnline(r, rules.Host, false, t0)
	assert.ErrorIs(t, err, ErrStale)
	r, err = SetOnline(r, rules.Guest, false, t0)
	require.NoError(t, err)
	assert.True(t, r.Abandoned())

	r, err = MarkEmpty(r, t0)
	require.NoError(t, err)
	require.NotNil(t, r.EmptySince)
	assert.False(t, r.Listed())

	later, err := MarkEmpty(r, t0.Add(time.Minute))
	assert.ErrorIs(t, err, ErrStale, "stamped only once")
	assert.Nil(t, later)

	assert.False(t, r.Reclaimable(t0.Add(grace), grace))
	assert.True(t, r.Reclaimable(t0.Add(grace+time.Millisecond), grace))

	back, err := SetOnline(r, rules.Guest, true, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Nil(t, back.EmptySince)
	assert.True(t, back.Listed())
	assert.False(t, back.Reclaimable(t0.Add(time.Hour), grace))
}

func TestSummaryHidesPassword(t *testing.T) {
	r, err := NewRoom("id", "locked", true, "secret", "h", "Alice", t0)
	require.NoError(t, err)
	s := r.Summary()
	assert.Equal(t, "id", s.ID)
	assert.True(t, s.PasswordProtected)
	assert.False(t, s.Full)
	assert.Equal(t, PhaseWaiting, s.Phase)
}

func TestInitGame(t *testing.T) {
	r, err := NewRoom("id", "", false, "", "h", "Alice", t0)
	require.NoError(t, err)

	_, err = InitGame(r)
	assert.ErrorIs(t, err, ErrStale)

	r.Game = nil
	out, err := InitGame(r)
	require.NoError(t, err)
	require.NotNil(t, out.Game)
	assert.Equal(t, PhaseWaiting, out.Game.Phase)
	assert.Nil(t, r.Game, "input left untouched")
}
