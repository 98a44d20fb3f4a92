package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/good-yellow-bee/projectdesk/internal/api/respond"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/metrics"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// Handler handles authentication endpoints.
type Handler struct {
	accounts       *collab.AccountService
	jwtService     *JWTService
	tokenService   *TokenService
	lockoutTracker *LockoutTracker
}

// NewHandler creates a new auth handler.
func NewHandler(accounts *collab.AccountService, jwt *JWTService, tokens *TokenService, lockout *LockoutTracker) *Handler {
	return &Handler{
		accounts:       accounts,
		jwtService:     jwt,
		tokenService:   tokens,
		lockoutTracker: lockout,
	}
}

// LoginResponse is returned on successful login and refresh.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	TokenType    string       `json:"token_type"`
	User         *models.User `json:"user"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for token refresh and logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates a User account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in collab.AccountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}

	user, err := h.accounts.Register(r.Context(), &in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, user)
}

// Login exchanges credentials for an access and refresh token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respond.BadRequest(w, "email and password required")
		return
	}

	logger := log.WithField("email", req.Email)
	if h.lockoutTracker.IsLocked(req.Email) {
		metrics.AuthAttemptsTotal.WithLabelValues("locked").Inc()
		logger.WithField("remaining", h.lockoutTracker.RemainingLockoutTime(req.Email).String()).Warn("login blocked: account locked")
		respond.Fail(w, http.StatusTooManyRequests, respond.CodeAccountLocked, "account temporarily locked due to too many failed attempts")
		return
	}

	ctx := r.Context()
	user, err := h.accounts.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, collab.ErrInvalidCredentials) {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		if h.lockoutTracker.RecordFailure(req.Email) {
			logger.Warn("account locked after repeated login failures")
		}
		respond.Unauthorized(w, "invalid credentials")
		return
	}
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	h.lockoutTracker.ClearFailures(req.Email)

	resp, err := h.issue(r, user)
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	log.WithField("user_id", user.ID).Info("login success")
	respond.OK(w, resp)
}

// Refresh rotates a refresh token and issues a new access token. A token
// that was already exchanged is rejected like an unknown one.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		respond.BadRequest(w, "refresh_token required")
		return
	}

	user, refreshToken, err := h.tokenService.Rotate(r.Context(), req.RefreshToken)
	if errors.Is(err, ErrInvalidRefreshToken) {
		metrics.AuthAttemptsTotal.WithLabelValues("refresh_rejected").Inc()
		respond.Unauthorized(w, "invalid or expired token")
		return
	}
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()

	resp, err := h.loginResponse(user, refreshToken)
	if err != nil {
		respond.Internal(w, r, err)
		return
	}
	respond.OK(w, resp)
}

// Logout revokes a refresh token. Unknown tokens are not an error.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		respond.BadRequest(w, "refresh_token required")
		return
	}

	err := h.tokenService.Revoke(r.Context(), req.RefreshToken)
	if err != nil && !errors.Is(err, ErrInvalidRefreshToken) {
		log.WithError(err).Warn("logout: revoke refresh token")
	}
	respond.NoContent(w)
}

// issue creates a fresh refresh token for user and wraps it in a login response.
func (h *Handler) issue(r *http.Request, user *models.User) (*LoginResponse, error) {
	refreshToken, err := h.tokenService.Issue(r.Context(), user.ID)
	if err != nil {
		return nil, err
	}
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()
	return h.loginResponse(user, refreshToken)
}

func (h *Handler) loginResponse(user *models.User, refreshToken string) (*LoginResponse, error) {
	accessToken, err := h.jwtService.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	metrics.AuthTokensIssued.WithLabelValues("access").Inc()

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    h.jwtService.TTLSeconds(),
		TokenType:    "Bearer",
		User:         user,
	}, nil
}
