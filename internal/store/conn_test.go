package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type presence struct {
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

func TestConnOnDisconnectAppliesPatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()
	conn := Connect(b)

	_, err := UpdateJSON(ctx, conn, "p", func(*presence) (*presence, error) {
		return &presence{Name: "alice", Online: true}, nil
	})
	require.NoError(t, err)
	require.NoError(t, conn.OnDisconnect(ctx, "p", Patch{"online": false}))

	require.NoError(t, conn.Close())

	got, _, err := GetJSON[presence](ctx, b, "p")
	require.NoError(t, err)
	assert.Equal(t, presence{Name: "alice", Online: false}, *got)
}

func TestConnCancelOnDisconnect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()
	conn := Connect(b)

	_, err := UpdateJSON(ctx, conn, "p", func(*presence) (*presence, error) {
		return &presence{Name: "alice", Online: true}, nil
	})
	require.NoError(t, err)
	require.NoError(t, conn.OnDisconnect(ctx, "p", Patch{"online": false}))
	require.NoError(t, conn.CancelOnDisconnect(ctx, "p"))
	require.NoError(t, conn.Close())

	got, _, err := GetJSON[presence](ctx, b, "p")
	require.NoError(t, err)
	assert.True(t, got.Online)
}

func TestConnDisconnectPatchDoesNotRecreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()
	conn := Connect(b)

	require.NoError(t, conn.OnDisconnect(ctx, "p", Patch{"online": false}))
	require.NoError(t, conn.Close())

	_, err := b.Get(ctx, "p")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConnClosedRejectsCalls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	conn := Connect(NewMemoryBackend())
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, err := conn.Get(ctx, "p")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = conn.Update(ctx, "p", PatchFunc(Patch{}))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, conn.OnDisconnect(ctx, "p", Patch{}), ErrClosed)
}

func TestConnCloseEndsSubscriptions(t *testing.T) {
	t.Parallel()
	conn := Connect(NewMemoryBackend())
	ch, err := conn.Subscribe(context.Background(), "p")
	require.NoError(t, err)
	next(t, ch)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}
