package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// closeTimeout bounds how long Close spends applying disconnect patches.
const closeTimeout = 5 * time.Second

// LocalConn is a Conn over a Backend living in the same process. A server
// opens one per remote client and closes it when the client's socket drops,
// which is what makes on-disconnect patches fire for crashed clients.
type LocalConn struct {
	backend Backend

	mu      sync.Mutex
	pending map[string]Patch
	closed  bool
	cancel  context.CancelFunc
	ctx     context.Context
}

// Connect opens a connection to b.
func Connect(b Backend) *LocalConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalConn{
		backend: b,
		pending: make(map[string]Patch),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *LocalConn) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Get implements Backend.
func (c *LocalConn) Get(ctx context.Context, key string) (Snapshot, error) {
	if err := c.check(); err != nil {
		return Snapshot{}, err
	}
	return c.backend.Get(ctx, key)
}

// List implements Backend.
func (c *LocalConn) List(ctx context.Context, prefix string) ([]Snapshot, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.backend.List(ctx, prefix)
}

// Subscribe implements Backend. Subscriptions end when either ctx is done or
// the connection closes.
func (c *LocalConn) Subscribe(ctx context.Context, key string) (<-chan Snapshot, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	subCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	ch, err := c.backend.Subscribe(subCtx, key)
	if err != nil {
		stop()
		cancel()
		return nil, err
	}
	go func() {
		<-subCtx.Done()
		stop()
	}()
	return ch, nil
}

// Update implements Backend.
func (c *LocalConn) Update(ctx context.Context, key string, fn UpdateFunc) (Result, error) {
	if err := c.check(); err != nil {
		return Result{}, err
	}
	return c.backend.Update(ctx, key, fn)
}

// Delete implements Backend.
func (c *LocalConn) Delete(ctx context.Context, key string) error {
	if err := c.check(); err != nil {
		return err
	}
	return c.backend.Delete(ctx, key)
}

// OnDisconnect registers patch to be merged into key when the connection
// closes. Registering again for the same key merges the patches.
func (c *LocalConn) OnDisconnect(_ context.Context, key string, patch Patch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.pending[key] = c.pending[key].Merge(patch)
	return nil
}

// CancelOnDisconnect drops any patch registered for key.
func (c *LocalConn) CancelOnDisconnect(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	delete(c.pending, key)
	return nil
}

// Close ends subscriptions and applies registered disconnect patches.
// Patches against documents that no longer exist are skipped.
func (c *LocalConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	for key, patch := range pending {
		if _, err := c.backend.Update(ctx, key, PatchFunc(patch)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
