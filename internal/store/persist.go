package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/lox/triadsync/internal/fileutil"
)

// dump is the on-disk form of a MemoryBackend.
type dump struct {
	Seq  uint64                   `json:"seq"`
	Docs map[string]dumpedDocument `json:"docs"`
}

type dumpedDocument struct {
	Version uint64          `json:"version"`
	Value   json.RawMessage `json:"value"`
}

// SaveFile writes every document to filename atomically. Subscribers are
// not persisted.
func (b *MemoryBackend) SaveFile(filename string) error {
	b.mu.RLock()
	d := dump{Seq: b.seq, Docs: make(map[string]dumpedDocument, len(b.docs))}
	for key, e := range b.docs {
		d.Docs[key] = dumpedDocument{Version: e.version, Value: append(json.RawMessage(nil), e.value...)}
	}
	b.mu.RUnlock()

	return fileutil.WriteJSONAtomic(filename, d, 0o600)
}

// LoadMemoryBackend restores a backend saved with SaveFile. A missing file
// yields an empty backend.
func LoadMemoryBackend(filename string) (*MemoryBackend, error) {
	b := NewMemoryBackend()

	var d dump
	if err := fileutil.ReadJSON(filename, &d); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return b, nil
		}
		return nil, err
	}

	for key, doc := range d.Docs {
		if doc.Version > d.Seq {
			return nil, fmt.Errorf("load %s: %s has version %d beyond sequence %d", filename, key, doc.Version, d.Seq)
		}
		b.docs[key] = entry{value: []byte(doc.Value), version: doc.Version}
	}
	b.seq = d.Seq
	return b, nil
}
