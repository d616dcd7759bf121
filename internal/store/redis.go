package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	fieldDoc     = "doc"
	fieldVersion = "ver"
)

// RedisBackend stores each document as a hash of its JSON body and version.
// Writers use WATCH/MULTI for compare-and-set and publish every committed
// snapshot on a per-key channel.
type RedisBackend struct {
	rdb        *redis.Client
	ns         string
	maxRetries int
}

// NewRedisBackend connects to the Redis server at url (redis:// or
// rediss://) and namespaces every key under ns.
func NewRedisBackend(ctx context.Context, url, ns string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, unavailable(fmt.Errorf("redis ping: %w", err))
	}
	if ns == "" {
		ns = "triad"
	}
	return &RedisBackend{rdb: rdb, ns: ns, maxRetries: DefaultMaxRetries}, nil
}

// Close releases the client.
func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}

func (b *RedisBackend) docKey(key string) string  { return b.ns + ":doc:" + key }
func (b *RedisBackend) chanKey(key string) string { return b.ns + ":changes:" + key }
func (b *RedisBackend) seqKey() string            { return b.ns + ":seq" }

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

type redisGetter interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (b *RedisBackend) read(ctx context.Context, c redisGetter, key string) (Snapshot, error) {
	fields, err := c.HGetAll(ctx, b.docKey(key)).Result()
	if err != nil {
		return Snapshot{}, unavailable(err)
	}
	doc, ok := fields[fieldDoc]
	if !ok {
		return missing(key), nil
	}
	ver, err := strconv.ParseUint(fields[fieldVersion], 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("bad version for %s: %w", key, err)
	}
	return Snapshot{Key: key, Value: json.RawMessage(doc), Version: ver, Exists: true}, nil
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, key string) (Snapshot, error) {
	snap, err := b.read(ctx, b.rdb, key)
	if err != nil {
		return snap, err
	}
	if !snap.Exists {
		return snap, ErrNotFound
	}
	return snap, nil
}

// List implements Backend.
func (b *RedisBackend) List(ctx context.Context, prefix string) ([]Snapshot, error) {
	pattern := b.docKey(prefix) + "*"
	trim := len(b.docKey(""))

	var out []Snapshot
	iter := b.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()[trim:]
		snap, err := b.read(ctx, b.rdb, key)
		if err != nil {
			return nil, err
		}
		if snap.Exists {
			out = append(out, snap)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Subscribe implements Backend.
func (b *RedisBackend) Subscribe(ctx context.Context, key string) (<-chan Snapshot, error) {
	pubsub := b.rdb.Subscribe(ctx, b.chanKey(key))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, unavailable(err)
	}
	// Read after subscribing so no commit between the two is missed.
	initial, err := b.read(ctx, b.rdb, key)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		pending, have := initial, true
		var last uint64
		for {
			var send chan Snapshot
			if have {
				send = out
			}
			select {
			case <-ctx.Done():
				return
			case send <- pending:
				last = pending.Version
				have = false
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var snap Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					continue
				}
				// Tombstones carry version 0 and always apply.
				floor := last
				if have && pending.Version > floor {
					floor = pending.Version
				}
				if snap.Exists && snap.Version <= floor {
					continue
				}
				pending, have = snap, true
			}
		}
	}()
	return out, nil
}

func (b *RedisBackend) publish(ctx context.Context, pipe redis.Pipeliner, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	pipe.Publish(ctx, b.chanKey(snap.Key), payload)
	return nil
}

// Update implements Backend.
func (b *RedisBackend) Update(ctx context.Context, key string, fn UpdateFunc) (Result, error) {
	docKey := b.docKey(key)
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		var (
			result Result
			fnErr  error
		)
		txf := func(tx *redis.Tx) error {
			current, err := b.read(ctx, tx, key)
			if err != nil {
				return err
			}
			next, err := fn(current)
			if err != nil {
				if isAbort(err) {
					result = Aborted(current, err)
					return nil
				}
				fnErr = err
				return err
			}

			var snap Snapshot
			if next == nil {
				snap = missing(key)
			} else {
				ver, err := b.rdb.Incr(ctx, b.seqKey()).Uint64()
				if err != nil {
					return unavailable(err)
				}
				snap = Snapshot{Key: key, Value: json.RawMessage(next), Version: ver, Exists: true}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if snap.Exists {
					pipe.HSet(ctx, docKey, fieldDoc, string(snap.Value), fieldVersion, snap.Version)
				} else {
					pipe.Del(ctx, docKey)
				}
				return b.publish(ctx, pipe, snap)
			})
			if err != nil {
				return err
			}
			result = Result{Committed: true, Snapshot: snap}
			return nil
		}

		err := b.rdb.Watch(ctx, txf, docKey)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case fnErr != nil, errors.Is(err, ErrUnavailable), ctx.Err() != nil:
			return Result{}, err
		default:
			return Result{}, unavailable(err)
		}
	}
	return Result{}, ErrTooManyRetries
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.docKey(key))
		return b.publish(ctx, pipe, missing(key))
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}
