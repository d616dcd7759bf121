package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/store"
)

// ErrEmptyData is returned when a message carries no payload.
var ErrEmptyData = errors.New("message has no data")

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// NewRequest creates a message tagged with requestID.
func NewRequest(messageType MessageType, requestID string, data any) (*Message, error) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		return nil, err
	}
	msg.RequestID = requestID
	return msg, nil
}

// Decode unmarshals the message payload into v.
func (m *Message) Decode(v any) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return ErrEmptyData
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// CodeFor maps a store error to the error code sent on the wire.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, store.ErrUnavailable):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// Err converts a received error payload back into a Go error, restoring the
// store sentinels so callers can use errors.Is.
func (e ErrorData) Err() error {
	switch e.Code {
	case CodeNotFound:
		return fmt.Errorf("%w: %s", store.ErrNotFound, e.Message)
	case CodeUnavailable:
		return fmt.Errorf("%w: %s", store.ErrUnavailable, e.Message)
	default:
		return fmt.Errorf("%s: %s", e.Code, e.Message)
	}
}

// TimingsFrom converts match timings for the wire.
func TimingsFrom(t match.Timings) Timings {
	return Timings{
		CountdownMs:       t.Countdown.Milliseconds(),
		RoundEndMs:        t.RoundEnd.Milliseconds(),
		EmptyGraceSeconds: int64(t.EmptyGrace / time.Second),
	}
}

// Match converts wire timings back, leaving zero fields to the defaults.
func (t Timings) Match() match.Timings {
	return match.NewMachine(match.Timings{
		Countdown:  time.Duration(t.CountdownMs) * time.Millisecond,
		RoundEnd:   time.Duration(t.RoundEndMs) * time.Millisecond,
		EmptyGrace: time.Duration(t.EmptyGraceSeconds) * time.Second,
	}).Timings
}
