package store

import (
	"encoding/json"
	"fmt"
)

// Patch is a shallow merge of top-level JSON object fields.
type Patch map[string]any

// Apply merges p into the JSON object doc.
func (p Patch) Apply(doc []byte) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &fields); err != nil {
			return nil, fmt.Errorf("patch target is not an object: %w", err)
		}
	}
	for k, v := range p {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode patch field %s: %w", k, err)
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}

// Merge returns a new patch holding p's fields overlaid with other's.
func (p Patch) Merge(other Patch) Patch {
	out := make(Patch, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// PatchFunc returns an UpdateFunc applying p to an existing document. A
// missing document is left missing.
func PatchFunc(p Patch) UpdateFunc {
	return func(current Snapshot) ([]byte, error) {
		if !current.Exists {
			return nil, Abort(ErrNotFound)
		}
		return p.Apply(current.Value)
	}
}
