// Package match holds the shared room document and every transition that may
// be applied to it.
//
// Transitions are pure: each takes the latest snapshot of a Room and the
// current time and returns a brand new Room, or an error when its
// precondition does not hold. ErrStale means another participant already made
// the change, which callers treat as a successful no-op. Because nothing here
// performs I/O, a transition can be re-evaluated any number of times by the
// store's compare-and-set retry loop, from either participant, and the result
// only depends on the snapshot it was given.
//
// Phases cycle waiting -> countdown -> playing -> round_end -> playing ...
// until the room is reclaimed.
package match
