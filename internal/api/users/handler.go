// Package users provides account administration and self-service endpoints.
package users

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/api/respond"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// Handler handles user management endpoints.
type Handler struct {
	accounts *collab.AccountService
}

// NewHandler creates a new user handler.
func NewHandler(accounts *collab.AccountService) *Handler {
	return &Handler{accounts: accounts}
}

// MeResponse is the authenticated principal with its email.
type MeResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// ChangePasswordRequest is the request body for changing password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := models.ParseID(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		respond.BadRequest(w, "invalid user id")
		return 0, false
	}
	return id, true
}

// List returns all users (admin only).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.List(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, users)
}

// Create creates a user with any role (admin only).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in collab.AccountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	user, err := h.accounts.Create(r.Context(), &in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, user)
}

// GetByID returns a user (admin only).
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	user, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, user)
}

// Update changes a user (admin only). Admins cannot change their own role.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var in collab.AccountUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	user, err := h.accounts.Update(r.Context(), id, &in, p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, user)
}

// Delete deletes a user (admin only). Admins cannot delete themselves.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.accounts.Delete(r.Context(), id, p); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// Me returns the current authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	user, err := h.accounts.Get(r.Context(), p.UserID())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, MeResponse{
		ID:    models.FormatID(user.ID),
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	})
}

// ChangePassword changes the current user's password and signs out its
// other sessions.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	if req.CurrentPassword == "" {
		respond.Error(w, r, collab.NewValidationError("current_password", "current_password is required"))
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), p.UserID(), req.CurrentPassword, req.NewPassword); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}
