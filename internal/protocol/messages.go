// Package protocol defines the JSON messages exchanged between remote store
// clients and the store server over a websocket.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/store"
)

// MessageType identifies the type of message
type MessageType string

const (
	// Client -> Server
	TypeGet                MessageType = "get"
	TypeList               MessageType = "list"
	TypeSubscribe          MessageType = "subscribe"
	TypeUnsubscribe        MessageType = "unsubscribe"
	TypeCAS                MessageType = "cas"
	TypeDelete             MessageType = "delete"
	TypeOnDisconnect       MessageType = "on_disconnect"
	TypeCancelOnDisconnect MessageType = "cancel_on_disconnect"

	// Server -> Client
	TypeResult   MessageType = "result"
	TypeSnapshot MessageType = "snapshot"
	TypeError    MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Error codes carried by ErrorData.
const (
	CodeInvalidMessage = "invalid_message"
	CodeUnknownType    = "unknown_message_type"
	CodeNotFound       = "not_found"
	CodeUnavailable    = "unavailable"
	CodeInternal       = "internal"
)

// Message is the envelope for every websocket frame. RequestID ties a
// result or error to its request; snapshot frames carry the id of the
// subscribe request that produced them.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// Client -> Server payloads

// KeyData addresses one document (get, subscribe, delete,
// cancel_on_disconnect).
type KeyData struct {
	Key string `json:"key"`
}

// ListData selects documents by key prefix.
type ListData struct {
	Prefix string `json:"prefix"`
}

// UnsubscribeData ends the subscription opened by request SubscriptionID.
type UnsubscribeData struct {
	SubscriptionID string `json:"subscriptionId"`
}

// CASData writes Value (or deletes, when Delete is set) only if the document
// is still at ExpectedVersion. ExpectedVersion 0 means "must not exist".
type CASData struct {
	Key             string          `json:"key"`
	ExpectedVersion uint64          `json:"expectedVersion"`
	Value           json.RawMessage `json:"value,omitempty"`
	Delete          bool            `json:"delete,omitempty"`
}

// OnDisconnectData registers a patch the server applies when this
// connection drops.
type OnDisconnectData struct {
	Key   string      `json:"key"`
	Patch store.Patch `json:"patch"`
}

// Server -> Client payloads

// ResultData answers a request. Which fields are set depends on the request:
// get and subscribe fill Snapshot, list fills Snapshots, cas fills Committed
// or Conflict together with the resulting Snapshot.
type ResultData struct {
	Snapshot  *store.Snapshot  `json:"snapshot,omitempty"`
	Snapshots []store.Snapshot `json:"snapshots,omitempty"`
	Committed bool             `json:"committed,omitempty"`
	Conflict  bool             `json:"conflict,omitempty"`
}

// ErrorData reports a failed request.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTP payloads

// Timings is the body of GET /timings: the match durations every
// participant of this server should use.
type Timings struct {
	CountdownMs       int64 `json:"countdownMs"`
	RoundEndMs        int64 `json:"roundEndMs"`
	EmptyGraceSeconds int64 `json:"emptyGraceSeconds"`
}

// RoomList is the body of GET /rooms.
type RoomList struct {
	Rooms []match.Summary `json:"rooms"`
}
