package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubValidator struct {
	id  *Identity
	err error
}

func (s stubValidator) Validate(context.Context, string) (*Identity, error) {
	return s.id, s.err
}

func TestTokenFromRequest(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	assert.Equal(t, "query", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header")
	assert.Equal(t, "header", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, TokenFromRequest(r))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	alice := &Identity{ParticipantID: "p1", Name: "Alice"}
	tests := []struct {
		name       string
		validator  Validator
		failOpen   bool
		wantStatus int
		wantID     *Identity
	}{
		{"valid", stubValidator{id: alice}, false, http.StatusOK, alice},
		{"disabled", NewNoopValidator(), false, http.StatusOK, nil},
		{"invalid", stubValidator{err: ErrInvalidToken}, true, http.StatusUnauthorized, nil},
		{"unavailable closed", stubValidator{err: ErrUnavailable}, false, http.StatusServiceUnavailable, nil},
		{"unavailable open", stubValidator{err: ErrUnavailable}, true, http.StatusOK, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = FromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			h := Middleware(tt.validator, tt.failOpen, zerolog.Nop())(next)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token=t", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantID, seen)
		})
	}
}

func TestAdminOnly(t *testing.T) {
	t.Parallel()
	handler := AdminOnly("s3cret", zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		secret     string
		wantStatus int
	}{
		{"missing", "", http.StatusForbidden},
		{"wrong", "guess", http.StatusForbidden},
		{"match", "s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodDelete, "/rooms/r1", nil)
			if tt.secret != "" {
				r.Header.Set(AdminSecretHeader, tt.secret)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
