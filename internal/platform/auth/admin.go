package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/storycraft/social-interaction/internal/platform/api"
)

const RoleAdmin = "admin"

// IsAdmin reports whether RequireUser injected role=admin.
func IsAdmin(ctx context.Context) bool {
	role, _ := RoleFromContext(ctx)
	return strings.EqualFold(strings.TrimSpace(role), RoleAdmin)
}

// RequireAdmin allows the request only for admins. Must run after RequireUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			api.Forbidden(w, "FORBIDDEN", "admin role required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
