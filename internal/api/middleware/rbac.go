package middleware

import (
	"net/http"

	"github.com/good-yellow-bee/projectdesk/internal/access"
	"github.com/good-yellow-bee/projectdesk/internal/api/respond"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// RequireRole returns middleware that requires one of the given roles.
// Admins always pass.
func RequireRole(allowedRoles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				respond.Unauthorized(w, "authentication required")
				return
			}
			if access.IsAdmin(p) {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range allowedRoles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respond.Forbidden(w, "access denied")
		})
	}
}

// RequireAdmin is shorthand for RequireRole(RoleAdmin).
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}
