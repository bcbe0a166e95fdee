package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/civicforum/constitution-platform/internal/model"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the stored user.
type contextKey string

const userKey contextKey = "user"

// Resolver turns a bearer token into the user it identifies.
// It returns an error for unknown or invalid tokens.
type Resolver interface {
	ResolveBearer(ctx context.Context, token string) (*model.User, error)
}

// RequireAuth enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <token>", resolves the token to a user and
// stores the user in the request context. A missing header, a header without
// the Bearer scheme or an unknown token all end the request with 401.
func RequireAuth(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "no bearer token provided")
				return
			}

			user, err := resolver.ResolveBearer(r.Context(), token)
			if err != nil {
				unauthorized(w, "user not found for bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth attaches the user when a valid bearer is present but never
// blocks the request. Handlers check UserFromContext to tell the difference.
func OptionalAuth(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if user, err := resolver.ResolveBearer(r.Context(), token); err == nil {
					r = r.WithContext(WithUser(r.Context(), user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or (nil, false) for an
// anonymous request.
//
//	user, ok := auth.UserFromContext(r.Context())
//	if !ok {
//	    // anonymous
//	}
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// unauthorized writes the same error envelope the handlers use.
func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
