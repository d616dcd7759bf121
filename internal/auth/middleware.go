package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity Middleware attached, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// TokenFromRequest reads a bearer token from the Authorization header or,
// for browsers that cannot set headers on websocket upgrades, the token
// query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests whose token v refuses. With failOpen set,
// requests are admitted while the auth service is unavailable.
func Middleware(v Validator, failOpen bool, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "auth").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Validate(r.Context(), TokenFromRequest(r))
			switch {
			case err == nil:
				if id != nil {
					r = r.WithContext(WithIdentity(r.Context(), id))
				}
			case errors.Is(err, ErrUnavailable) && failOpen:
				logger.Warn().Err(err).Msg("Auth service unavailable, admitting connection")
			case errors.Is(err, ErrUnavailable):
				logger.Error().Err(err).Msg("Auth service unavailable, rejecting connection")
				http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)
				return
			default:
				logger.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("Rejected connection")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly admits requests whose AdminSecretHeader matches secret.
func AdminOnly(secret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "auth").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("Rejected admin request")
				http.Error(w, "admin secret required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
