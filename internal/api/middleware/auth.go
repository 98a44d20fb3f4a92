package middleware

import (
	"context"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/good-yellow-bee/projectdesk/internal/api/auth"
	"github.com/good-yellow-bee/projectdesk/internal/api/respond"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// Context keys for storing request identity.
type contextKey string

const (
	principalKey contextKey = "principal"
	claimsKey    contextKey = "claims"
	requestIDKey contextKey = "request_id"
	projectIDKey contextKey = "project_id"
)

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true
	}
	return strings.TrimSpace(parts[1]), true
}

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = WithPrincipal(ctx, claims.Principal())
	return context.WithValue(ctx, claimsKey, claims)
}

func authenticate(jwtService *auth.JWTService, w http.ResponseWriter, r *http.Request, token string, next http.Handler) {
	claims, err := jwtService.ValidateToken(token)
	if err != nil {
		log.WithError(err).WithField("remote_addr", r.RemoteAddr).Debug("jwt auth failed")
		respond.Unauthorized(w, "invalid or expired token")
		return
	}
	next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
}

// JWTAuth returns middleware that requires a valid bearer token.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present := bearerToken(r)
			if !present {
				respond.Unauthorized(w, "authentication required")
				return
			}
			authenticate(jwtService, w, r, token, next)
		})
	}
}

// OptionalJWTAuth attaches the principal when a bearer token is present and
// lets anonymous requests through. A present but invalid token is rejected.
func OptionalJWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present := bearerToken(r)
			if !present {
				next.ServeHTTP(w, r)
				return
			}
			authenticate(jwtService, w, r, token, next)
		})
	}
}

// WebSocketAuth is JWTAuth that also accepts the token in the "token" query
// parameter, since browsers cannot set headers on websocket handshakes.
func WebSocketAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present := bearerToken(r)
			if !present {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				respond.Unauthorized(w, "authentication required")
				return
			}
			authenticate(jwtService, w, r, token, next)
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns the authenticated principal from context.
func GetPrincipal(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

// GetUserID returns the user ID from context.
func GetUserID(ctx context.Context) string {
	p, _ := GetPrincipal(ctx)
	return p.ID
}

// GetRole returns the user role from context.
func GetRole(ctx context.Context) models.Role {
	p, _ := GetPrincipal(ctx)
	return p.Role
}

// GetClaims returns the JWT claims from context.
func GetClaims(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// RequestPrincipal returns the authenticated principal, writing a 401 when
// the request carries none.
func RequestPrincipal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := GetPrincipal(r.Context())
	if !ok {
		respond.Unauthorized(w, "authentication required")
	}
	return p, ok
}
