package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/projectdesk/internal/api/respond"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// ProjectIDParam parses the named chi URL parameter as a project id and
// stores it in the request context. Malformed ids are rejected with 400
// before any handler runs; membership is checked by the services.
func ProjectIDParam(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := models.ParseID(chi.URLParam(r, name))
			if err != nil || id <= 0 {
				respond.BadRequest(w, "invalid project id")
				return
			}
			ctx := context.WithValue(r.Context(), projectIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetProjectID returns the project id stored by ProjectIDParam, or 0.
func GetProjectID(ctx context.Context) int64 {
	id, _ := ctx.Value(projectIDKey).(int64)
	return id
}
