package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type entry struct {
	value   []byte
	version uint64
}

// MemoryBackend is an in-process Backend. UpdateFuncs run without holding the
// lock, so concurrent writers genuinely race and the loser is retried.
type MemoryBackend struct {
	mu         sync.RWMutex
	docs       map[string]entry
	seq        uint64
	subs       map[string]map[*subscriber]struct{}
	maxRetries int
}

type subscriber struct {
	ch chan Snapshot
}

// deliver hands snap to the subscriber, replacing an undelivered older one.
// Callers hold the backend lock, so deliveries to one subscriber never race.
func (s *subscriber) deliver(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// NewMemoryBackend creates an empty store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs:       make(map[string]entry),
		subs:       make(map[string]map[*subscriber]struct{}),
		maxRetries: DefaultMaxRetries,
	}
}

func (b *MemoryBackend) snapshotLocked(key string) Snapshot {
	e, ok := b.docs[key]
	if !ok {
		return missing(key)
	}
	return Snapshot{Key: key, Value: append([]byte(nil), e.value...), Version: e.version, Exists: true}
}

// Get implements Backend.
func (b *MemoryBackend) Get(ctx context.Context, key string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := b.snapshotLocked(key)
	if !snap.Exists {
		return snap, ErrNotFound
	}
	return snap, nil
}

// List implements Backend. Results are ordered by key.
func (b *MemoryBackend) List(ctx context.Context, prefix string) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Snapshot, 0, len(b.docs))
	for key := range b.docs {
		if strings.HasPrefix(key, prefix) {
			out = append(out, b.snapshotLocked(key))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Subscribe implements Backend.
func (b *MemoryBackend) Subscribe(ctx context.Context, key string) (<-chan Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &subscriber{ch: make(chan Snapshot, 1)}

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[*subscriber]struct{})
	}
	b.subs[key][sub] = struct{}{}
	sub.deliver(b.snapshotLocked(key))
	b.mu.Unlock()

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer func() {
			b.mu.Lock()
			delete(b.subs[key], sub)
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
			b.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-sub.ch:
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Update implements Backend.
func (b *MemoryBackend) Update(ctx context.Context, key string, fn UpdateFunc) (Result, error) {
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		b.mu.RLock()
		current := b.snapshotLocked(key)
		b.mu.RUnlock()

		next, err := fn(current)
		if err != nil {
			if isAbort(err) {
				return Aborted(current, err), nil
			}
			return Result{}, err
		}

		b.mu.Lock()
		if b.versionLocked(key) != current.Version {
			b.mu.Unlock()
			continue
		}
		snap := b.writeLocked(key, next)
		b.mu.Unlock()
		return Result{Committed: true, Snapshot: snap}, nil
	}
	return Result{}, ErrTooManyRetries
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.docs[key]; ok {
		b.writeLocked(key, nil)
	}
	return nil
}

func (b *MemoryBackend) versionLocked(key string) uint64 {
	return b.docs[key].version
}

func (b *MemoryBackend) writeLocked(key string, value []byte) Snapshot {
	var snap Snapshot
	if value == nil {
		delete(b.docs, key)
		snap = missing(key)
	} else {
		b.seq++
		b.docs[key] = entry{value: append([]byte(nil), value...), version: b.seq}
		snap = b.snapshotLocked(key)
	}
	for sub := range b.subs[key] {
		sub.deliver(snap)
	}
	return snap
}
