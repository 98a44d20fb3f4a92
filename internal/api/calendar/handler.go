// Package calendar serves the aggregated project and task calendar.
package calendar

import (
	"net/http"

	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/api/respond"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
)

// Handler handles the calendar endpoint.
type Handler struct {
	calendar *collab.CalendarService
}

// NewHandler creates a calendar handler.
func NewHandler(calendar *collab.CalendarService) *Handler {
	return &Handler{calendar: calendar}
}

// Get returns the caller's projects with their tasks.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	entries, err := h.calendar.For(r.Context(), p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, entries)
}
