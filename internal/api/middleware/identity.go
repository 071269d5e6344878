package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// UserIDKey is the context key for the authenticated user id.
const UserIDKey contextKey = "user_id"

// AnonymousUser is assumed when no identity is presented. Thread ids are
// still namespaced under it, so anonymous conversations stay isolated from
// every real user.
const AnonymousUser = "anonymous"

// Identity extracts the calling user from the request. It checks the
// X-User-Id header, then the user_id query parameter, and falls back to
// AnonymousUser.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get("X-User-Id"))
		if user == "" {
			user = strings.TrimSpace(r.URL.Query().Get("user_id"))
		}
		if user == "" {
			user = AnonymousUser
		}

		ctx := context.WithValue(r.Context(), UserIDKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID retrieves the user id from the request context.
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return AnonymousUser
}
