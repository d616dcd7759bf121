package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Decode unmarshals a snapshot into a fresh T. A missing document decodes
// to nil.
func Decode[T any](snap Snapshot) (*T, error) {
	if !snap.Exists {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(snap.Value, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", snap.Key, err)
	}
	return &v, nil
}

// GetJSON reads and decodes a document.
func GetJSON[T any](ctx context.Context, b Backend, key string) (*T, Snapshot, error) {
	snap, err := b.Get(ctx, key)
	if err != nil {
		return nil, snap, err
	}
	v, err := Decode[T](snap)
	return v, snap, err
}

// UpdateJSON runs a typed compare-and-set. fn receives nil when the document
// is missing and returns nil to delete it.
func UpdateJSON[T any](ctx context.Context, b Backend, key string, fn func(current *T) (*T, error)) (Result, error) {
	return b.Update(ctx, key, func(snap Snapshot) ([]byte, error) {
		cur, err := Decode[T](snap)
		if err != nil {
			return nil, err
		}
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		return json.Marshal(next)
	})
}
