package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	N int `json:"n"`
}

func increment(current *counter) (*counter, error) {
	if current == nil {
		return &counter{N: 1}, nil
	}
	return &counter{N: current.N + 1}, nil
}

func TestMemoryGetMissing(t *testing.T) {
	t.Parallel()
	b := NewMemoryBackend()

	snap, err := b.Get(context.Background(), "rooms/nope")
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, snap.Exists)
	assert.Zero(t, snap.Version)
}

func TestMemoryUpdateCreatesAndVersions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()

	res, err := UpdateJSON(ctx, b, "c", increment)
	require.NoError(t, err)
	require.True(t, res.Committed)
	first := res.Snapshot.Version

	res, err = UpdateJSON(ctx, b, "c", increment)
	require.NoError(t, err)
	assert.Greater(t, res.Snapshot.Version, first)

	got, _, err := GetJSON[counter](ctx, b, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, got.N)
}

func TestMemoryUpdateRerunsOnConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()
	_, err := UpdateJSON(ctx, b, "c", increment)
	require.NoError(t, err)

	calls := 0
	res, err := UpdateJSON(ctx, b, "c", func(current *counter) (*counter, error) {
		calls++
		if calls == 1 {
			// Another writer commits between our read and our write.
			_, err := UpdateJSON(ctx, b, "c", increment)
			require.NoError(t, err)
		}
		return increment(current)
	})
	require.NoError(t, err)
	require.True(t, res.Committed)
	assert.Equal(t, 2, calls)

	got, _, err := GetJSON[counter](ctx, b, "c")
	require.NoError(t, err)
	assert.Equal(t, 3, got.N)
}

func TestMemoryConcurrentIncrements(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()
	b.maxRetries = 1000

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := UpdateJSON(ctx, b, "c", increment)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _, err := GetJSON[counter](ctx, b, "c")
	require.NoError(t, err)
	assert.Equal(t, 20, got.N)
}

func TestMemoryAbortLeavesDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()
	_, err := UpdateJSON(ctx, b, "c", increment)
	require.NoError(t, err)

	reason := errors.New("not your turn")
	res, err := UpdateJSON(ctx, b, "c", func(*counter) (*counter, error) {
		return nil, Abort(reason)
	})
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.ErrorIs(t, res.Reason, reason)
	assert.ErrorIs(t, res.Reason, ErrAbort)

	got, _, err := GetJSON[counter](ctx, b, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, got.N)
}

func TestMemoryUpdateErrorPropagates(t *testing.T) {
	t.Parallel()
	b := NewMemoryBackend()
	boom := errors.New("boom")
	_, err := b.Update(context.Background(), "c", func(Snapshot) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestMemoryTooManyRetries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()
	b.maxRetries = 3

	_, err := UpdateJSON(ctx, b, "c", func(current *counter) (*counter, error) {
		_, err := UpdateJSON(ctx, b, "c", increment)
		require.NoError(t, err)
		return increment(current)
	})
	assert.ErrorIs(t, err, ErrTooManyRetries)
}

func TestMemoryDeleteViaUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()
	_, err := UpdateJSON(ctx, b, "c", increment)
	require.NoError(t, err)

	res, err := UpdateJSON(ctx, b, "c", func(*counter) (*counter, error) { return nil, nil })
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.False(t, res.Snapshot.Exists)

	_, err = b.Get(ctx, "c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemoryBackend()
	for _, key := range []string{"rooms/b", "rooms/a", "other/x"} {
		_, err := UpdateJSON(ctx, b, key, increment)
		require.NoError(t, err)
	}

	snaps, err := b.List(ctx, "rooms/")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "rooms/a", snaps[0].Key)
	assert.Equal(t, "rooms/b", snaps[1].Key)
}

func next(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestMemorySubscribe(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewMemoryBackend()

	ch, err := b.Subscribe(ctx, "c")
	require.NoError(t, err)

	initial := next(t, ch)
	assert.False(t, initial.Exists)

	_, err = UpdateJSON(ctx, b, "c", increment)
	require.NoError(t, err)
	snap := next(t, ch)
	require.True(t, snap.Exists)
	var c counter
	require.NoError(t, json.Unmarshal(snap.Value, &c))
	assert.Equal(t, 1, c.N)

	require.NoError(t, b.Delete(ctx, "c"))
	gone := next(t, ch)
	assert.False(t, gone.Exists)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemorySubscribeDeliversLatest(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewMemoryBackend()

	ch, err := b.Subscribe(ctx, "c")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := UpdateJSON(ctx, b, "c", increment)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		select {
		case snap := <-ch:
			var c counter
			if snap.Exists && json.Unmarshal(snap.Value, &c) == nil {
				return c.N == 10
			}
		default:
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCause(t *testing.T) {
	t.Parallel()
	reason := errors.New("room full")
	assert.Equal(t, reason, Cause(Abort(reason)))
	assert.Equal(t, ErrAbort, Cause(Abort(nil)))
	assert.Equal(t, reason, Cause(reason))
}
