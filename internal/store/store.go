// Package store defines the replicated document store the match protocol is
// built on, and ships in-memory and Redis backends for it.
//
// Documents are opaque JSON values addressed by key. The only way to change
// a document is Update, a compare-and-set loop: the backend hands the
// UpdateFunc the latest snapshot, and if another writer commits first it runs
// the function again against the newer snapshot. An UpdateFunc must therefore
// be a pure function of its input.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrAbort is returned by an UpdateFunc to leave the document unchanged.
	ErrAbort = errors.New("update aborted")
	// ErrNotFound is returned by Get when the key holds no document.
	ErrNotFound = errors.New("document not found")
	// ErrUnavailable reports that the store cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
	// ErrTooManyRetries is returned when Update keeps losing races.
	ErrTooManyRetries = errors.New("too many conflicting writers")
	// ErrClosed is returned by a closed connection.
	ErrClosed = errors.New("connection closed")
)

// DefaultMaxRetries bounds the compare-and-set loop.
const DefaultMaxRetries = 25

// Snapshot is a document as of one committed version. Versions increase
// monotonically across the whole store; a missing document has version 0
// unless the store tracks a tombstone.
type Snapshot struct {
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value,omitempty"`
	Version uint64          `json:"version"`
	Exists  bool            `json:"exists"`
}

// UpdateFunc computes the replacement for current. Returning nil deletes
// the document. Returning an error that matches ErrAbort cancels the update
// without error.
type UpdateFunc func(current Snapshot) ([]byte, error)

// Result describes the outcome of an Update.
type Result struct {
	// Committed is true when the UpdateFunc's output was written.
	Committed bool
	// Snapshot is the committed document, or the snapshot the update was
	// aborted against.
	Snapshot Snapshot
	// Reason carries the abort cause when Committed is false.
	Reason error
}

// Backend is a shared document store.
type Backend interface {
	// Get reads a document once. Missing documents return ErrNotFound.
	Get(ctx context.Context, key string) (Snapshot, error)
	// List returns every document whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Snapshot, error)
	// Subscribe streams full snapshots of key, starting with the current
	// one. Intermediate versions may be skipped; the latest is always
	// delivered. The channel closes when ctx is done.
	Subscribe(ctx context.Context, key string) (<-chan Snapshot, error)
	// Update applies fn with compare-and-set semantics.
	Update(ctx context.Context, key string, fn UpdateFunc) (Result, error)
	// Delete removes a document unconditionally.
	Delete(ctx context.Context, key string) error
}

// Conn is one participant's connection to a Backend. Patches registered with
// OnDisconnect are applied on the participant's behalf when the connection
// goes away, however that happens.
type Conn interface {
	Backend
	OnDisconnect(ctx context.Context, key string, patch Patch) error
	CancelOnDisconnect(ctx context.Context, key string) error
	Close() error
}

type abortError struct {
	cause error
}

func (e *abortError) Error() string {
	return fmt.Sprintf("update aborted: %v", e.cause)
}

func (e *abortError) Unwrap() []error {
	return []error{ErrAbort, e.cause}
}

// Abort wraps cause so that an UpdateFunc can cancel the update while
// reporting why. errors.Is matches both ErrAbort and cause.
func Abort(cause error) error {
	if cause == nil {
		return ErrAbort
	}
	return &abortError{cause: cause}
}

// Aborted builds the result for an update cancelled against current.
func Aborted(current Snapshot, reason error) Result {
	return Result{Committed: false, Snapshot: current, Reason: reason}
}

func missing(key string) Snapshot {
	return Snapshot{Key: key}
}

func isAbort(err error) bool {
	return errors.Is(err, ErrAbort)
}

// Cause strips the abort wrapper from err, returning the reason an
// UpdateFunc gave. Other errors are returned unchanged.
func Cause(err error) error {
	var ae *abortError
	if errors.As(err, &ae) {
		return ae.cause
	}
	return err
}
