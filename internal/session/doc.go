// Package session runs one participant's side of a match on top of a shared
// store connection.
//
// There is no referee process: both participants' sessions watch the same
// room document and drive it forward with conditional updates. Every
// transition is re-validated against the snapshot it is applied to, so when
// both sessions race to start a countdown or deal the next round exactly one
// write lands and the other is dropped as stale.
package session
