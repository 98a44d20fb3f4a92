package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/good-yellow-bee/projectdesk/internal/api/auth"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!")

func issue(t *testing.T, svc *auth.JWTService, user *models.User) string {
	t.Helper()
	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

func TestJWTAuth_ValidToken(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	token := issue(t, jwtService, &models.User{ID: 7, Name: "Ada", Role: models.RoleAdmin})

	var got models.Principal
	var claims *auth.Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetPrincipal(r.Context())
		claims = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	JWTAuth(jwtService)(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	want := models.Principal{ID: "7", Name: "Ada", Role: models.RoleAdmin}
	if got != want {
		t.Errorf("principal = %+v, want %+v", got, want)
	}
	if claims == nil || claims.UserID != "7" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	expired := issue(t, auth.NewJWTService(testSecret, -time.Minute), &models.User{ID: 1, Name: "a", Role: models.RoleUser})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})
	wrapped := JWTAuth(jwtService)(handler)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"invalid format", "NotBearer token"},
		{"invalid token", "Bearer invalid-token"},
		{"empty bearer", "Bearer "},
		{"expired", "Bearer " + expired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestOptionalJWTAuth(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	token := issue(t, jwtService, &models.User{ID: 3, Name: "b", Role: models.RoleUser})

	var seen bool
	var principal models.Principal
	wrapped := OptionalJWTAuth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, seen = GetPrincipal(r.Context())
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK || seen {
		t.Errorf("anonymous: status %d, principal seen %v", rec.Code, seen)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if !seen || principal.ID != "3" {
		t.Errorf("authenticated: principal = %+v, seen %v", principal, seen)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rec.Code)
	}
}

func TestWebSocketAuth_QueryToken(t *testing.T) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	token := issue(t, jwtService, &models.User{ID: 9, Name: "c", Role: models.RoleUser})

	var id string
	wrapped := WebSocketAuth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = GetUserID(r.Context())
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/ws?token="+token, nil))
	if rec.Code != http.StatusOK || id != "9" {
		t.Errorf("query token: status %d, id %q", rec.Code, id)
	}

	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", rec.Code)
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := httptest.NewRequest("GET", "/test", nil).Context()

	if _, ok := GetPrincipal(ctx); ok {
		t.Error("GetPrincipal() reported a principal")
	}
	if got := GetUserID(ctx); got != "" {
		t.Errorf("GetUserID() = %q, want empty", got)
	}
	if got := GetRole(ctx); got != "" {
		t.Errorf("GetRole() = %q, want empty", got)
	}
	if got := GetClaims(ctx); got != nil {
		t.Errorf("GetClaims() = %v, want nil", got)
	}
	if got := GetProjectID(ctx); got != 0 {
		t.Errorf("GetProjectID() = %d, want 0", got)
	}
}
