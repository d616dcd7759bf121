package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authServer(t *testing.T, handler http.HandlerFunc) *HTTPValidator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPValidator(srv.URL, "")
}

func TestHTTPValidatorValidToken(t *testing.T) {
	t.Parallel()
	v := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req tokenCheck
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Token != "valid-token" {
			_ = json.NewEncoder(w).Encode(verdict{Valid: false})
			return
		}
		_ = json.NewEncoder(w).Encode(verdict{Valid: true, ParticipantID: "p-123", Name: "Alice"})
	})

	id, err := v.Validate(context.Background(), "valid-token")
	require.NoError(t, err)
	assert.Equal(t, &Identity{ParticipantID: "p-123", Name: "Alice"}, id)

	_, err = v.Validate(context.Background(), "other")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidatorEmptyToken(t *testing.T) {
	t.Parallel()
	_, err := NewHTTPValidator("http://localhost:9999", "").Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidatorStatusCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrInvalidToken},
		{"forbidden", http.StatusForbidden, ErrInvalidToken},
		{"rate limited", http.StatusTooManyRequests, ErrUnavailable},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
		{"unexpected", http.StatusTeapot, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := authServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			})
			_, err := v.Validate(context.Background(), "token")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPValidatorTimeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	v := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	defer close(release)

	_, err := v.Validate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPValidatorAdminSecret(t *testing.T) {
	t.Parallel()
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(AdminSecretHeader)
		_ = json.NewEncoder(w).Encode(verdict{Valid: true, ParticipantID: "p-1"})
	}))
	defer srv.Close()

	_, err := NewHTTPValidator(srv.URL, "my-secret").Validate(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "my-secret", got)
}

func TestHTTPValidatorMalformedJSON(t *testing.T) {
	t.Parallel()
	v := authServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})
	_, err := v.Validate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPValidatorNeedsParticipant(t *testing.T) {
	t.Parallel()
	v := authServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(verdict{Valid: true, Name: "Alice"})
	})
	_, err := v.Validate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNoopValidator(t *testing.T) {
	t.Parallel()
	id, err := NewNoopValidator().Validate(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, id)
}
