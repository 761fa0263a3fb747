package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/token"
)

type actorKey struct{}

// WithActor returns ctx carrying a.
func WithActor(ctx context.Context, a token.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (token.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(token.Actor)
	return a, ok
}

// Authenticate verifies the bearer token and stores the actor in the request
// context. Requests without a valid token get 401.
func Authenticate(secret []byte, ttl time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := token.FromHeader(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}
			a, err := token.Verify(raw, secret, ttl)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, token.ErrExpired) {
					msg = "token expired"
				}
				LoggerFromRequest(r, logger).Debug("rejected token", zap.Error(err))
				unauthorized(w, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
		})
	}
}

// RequireModerator refuses actors without the moderator role with 403.
// It must run after Authenticate.
func RequireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFromContext(r.Context())
		if !ok {
			unauthorized(w, "missing bearer token")
			return
		}
		if !a.IsModerator() {
			writeError(w, http.StatusForbidden, "moderator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="trustsafety"`)
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
