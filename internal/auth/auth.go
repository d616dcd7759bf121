// Package auth decides which participants may open a store connection and
// who they are once connected.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// ParticipantHeader carries the authenticated participant id back to
	// the client on the websocket handshake response.
	ParticipantHeader = "X-Triad-Participant"

	// AdminSecretHeader carries the shared admin secret, both to the token
	// service and on admin requests to the store server.
	AdminSecretHeader = "X-Admin-Secret"
)

// checkTimeout bounds one round trip to the token service.
const checkTimeout = 500 * time.Millisecond

// maxVerdictSize caps the token service's response body.
const maxVerdictSize = 64 << 10

var (
	// ErrInvalidToken means the token was checked and refused.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable means the token could not be checked. The server's
	// fail_open setting decides what happens to the connection.
	ErrUnavailable = errors.New("auth: unavailable")
)

// Identity is the participant behind a token. A lobby acting for the
// connection sits in rooms as ParticipantID.
type Identity struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}

// Validator resolves connection tokens to participants.
type Validator interface {
	// Validate returns the participant for token, ErrInvalidToken when the
	// token is refused or ErrUnavailable when no answer could be had. A nil
	// identity with a nil error admits the connection anonymously.
	Validate(ctx context.Context, token string) (*Identity, error)
}

// HTTPValidator delegates token checks to an external account service.
type HTTPValidator struct {
	endpoint    string
	adminSecret string
	client      *http.Client
}

// NewHTTPValidator creates a validator that POSTs {"token": ...} to
// endpoint, authenticating itself with adminSecret when set.
func NewHTTPValidator(endpoint string, adminSecret string) *HTTPValidator {
	return &HTTPValidator{
		endpoint:    endpoint,
		adminSecret: adminSecret,
		client:      &http.Client{Timeout: checkTimeout},
	}
}

type tokenCheck struct {
	Token string `json:"token"`
}

type verdict struct {
	Valid         bool   `json:"valid"`
	ParticipantID string `json:"participant_id,omitempty"`
	Name          string `json:"name,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	resp, err := v.post(ctx, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	var out verdict
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxVerdictSize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: bad verdict: %v", ErrUnavailable, err)
	}
	switch {
	case !out.Valid:
		return nil, ErrInvalidToken
	case out.ParticipantID == "":
		// seats are keyed by participant id
		return nil, fmt.Errorf("%w: verdict without participant id", ErrUnavailable)
	}
	return &Identity{ParticipantID: out.ParticipantID, Name: out.Name}, nil
}

func (v *HTTPValidator) post(ctx context.Context, token string) (*http.Response, error) {
	body, err := json.Marshal(tokenCheck{Token: token})
	if err != nil {
		return nil, fmt.Errorf("encode token check: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build token check: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.adminSecret != "" {
		req.Header.Set(AdminSecretHeader, v.adminSecret)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// statusError maps the token service's status to a validation outcome.
func statusError(status int) error {
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrInvalidToken
	default:
		return fmt.Errorf("%w: token service answered %d", ErrUnavailable, status)
	}
}

// NoopValidator admits every connection anonymously.
type NoopValidator struct{}

// NewNoopValidator creates a validator that allows all connections.
func NewNoopValidator() *NoopValidator {
	return &NoopValidator{}
}

func (v *NoopValidator) Validate(context.Context, string) (*Identity, error) {
	return nil, nil
}
