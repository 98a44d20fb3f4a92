package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/projectdesk/internal/models"
)

func asPrincipal(r *http.Request, id string, role models.Role) *http.Request {
	return r.WithContext(WithPrincipal(r.Context(), models.Principal{ID: id, Role: role}))
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		role     models.Role
		anon     bool
		allowed  []models.Role
		wantCode int
	}{
		{"exact match", models.RoleUser, false, []models.Role{models.RoleUser}, http.StatusOK},
		{"admin bypass", models.RoleAdmin, false, []models.Role{models.RoleUser}, http.StatusOK},
		{"user not admin", models.RoleUser, false, []models.Role{models.RoleAdmin}, http.StatusForbidden},
		{"anonymous", "", true, []models.Role{models.RoleUser}, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if !tc.anon {
				req = asPrincipal(req, "1", tc.role)
			}
			rec := httptest.NewRecorder()
			RequireRole(tc.allowed...)(ok).ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	called := false
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, asPrincipal(httptest.NewRequest("GET", "/", nil), "2", models.RoleUser))
	if rec.Code != http.StatusForbidden || called {
		t.Errorf("user: status %d, called %v", rec.Code, called)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, asPrincipal(httptest.NewRequest("GET", "/", nil), "1", models.RoleAdmin))
	if !called {
		t.Error("admin was rejected")
	}
}

func TestProjectIDParam(t *testing.T) {
	var got int64
	r := chi.NewRouter()
	r.With(ProjectIDParam("id")).Get("/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = GetProjectID(r.Context())
	})

	tests := []struct {
		path     string
		wantCode int
		wantID   int64
	}{
		{"/projects/42", http.StatusOK, 42},
		{"/projects/abc", http.StatusBadRequest, 0},
		{"/projects/0", http.StatusBadRequest, 0},
		{"/projects/-3", http.StatusBadRequest, 0},
	}
	for _, tc := range tests {
		got = 0
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", tc.path, nil))
		if rec.Code != tc.wantCode || got != tc.wantID {
			t.Errorf("%s: status %d id %d, want %d id %d", tc.path, rec.Code, got, tc.wantCode, tc.wantID)
		}
	}
}
