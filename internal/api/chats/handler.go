// Package chats serves per-project chat over REST, Server-Sent Events and
// websockets.
package chats

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/api/respond"
	"github.com/good-yellow-bee/projectdesk/internal/chat"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/metrics"
)

// Config tunes the realtime transports.
type Config struct {
	Client chat.ClientConfig
	// Heartbeat is the SSE keepalive interval.
	Heartbeat time.Duration
	// MaxStreamDuration closes SSE streams after this long; clients reconnect.
	MaxStreamDuration time.Duration
	// Reconnect is the retry delay advertised to EventSource clients.
	Reconnect time.Duration
	// AllowedOrigins lists extra websocket origins. Same-origin is always allowed.
	AllowedOrigins []string
}

// DefaultConfig returns transport defaults.
func DefaultConfig() Config {
	return Config{
		Client:            chat.DefaultClientConfig(),
		Heartbeat:         30 * time.Second,
		MaxStreamDuration: 30 * time.Minute,
		Reconnect:         3 * time.Second,
	}
}

// Handler handles chat endpoints.
type Handler struct {
	chat     *collab.ChatService
	hub      *chat.Hub
	cfg      Config
	upgrader websocket.Upgrader
}

// NewHandler creates a chat handler. Messages posted through chatSvc reach
// stream and websocket subscribers through hub.
func NewHandler(chatSvc *collab.ChatService, hub *chat.Hub, cfg Config) *Handler {
	defaults := DefaultConfig()
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaults.Heartbeat
	}
	if cfg.MaxStreamDuration <= 0 {
		cfg.MaxStreamDuration = defaults.MaxStreamDuration
	}
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = defaults.Reconnect
	}
	h := &Handler{chat: chatSvc, hub: hub, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// PostRequest is the body of POST /api/chats/{projectId}. Any sender id in
// the body is ignored; the sender is the authenticated principal.
type PostRequest struct {
	Message string `json:"message"`
}

// History handles GET /api/chats/{projectId}?after=&limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	after, err := queryInt(r, "after")
	if err != nil {
		respond.Error(w, r, collab.NewValidationError("after", "after must be a non-negative integer"))
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		respond.Error(w, r, collab.NewValidationError("limit", "limit must be a non-negative integer"))
		return
	}

	msgs, err := h.chat.History(r.Context(), middleware.GetProjectID(r.Context()), p, int64(after), limit)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, msgs)
}

// Post handles POST /api/chats/{projectId}.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	var req PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	msg, err := h.chat.Post(r.Context(), middleware.GetProjectID(r.Context()), p, req.Message)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, msg)
}

// Stream handles GET /api/chats/{projectId}/stream, pushing new messages
// as "newMessage" events.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.Fail(w, http.StatusInternalServerError, respond.CodeInternalError, "streaming not supported")
		return
	}

	ctx := r.Context()
	projectID := middleware.GetProjectID(ctx)
	if err := h.chat.Authorize(ctx, projectID, p); err != nil {
		respond.Error(w, r, err)
		return
	}

	sub := h.hub.NewSubscriber()
	defer h.hub.Remove(sub)
	if err := h.hub.Join(ctx, sub, projectID); err != nil {
		respond.Fail(w, http.StatusServiceUnavailable, respond.CodeInternalError, "chat unavailable")
		return
	}

	metrics.ChatConnectionsActive.WithLabelValues("sse").Inc()
	defer metrics.ChatConnectionsActive.WithLabelValues("sse").Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sse := NewSSEWriter(w, flusher)
	logger := log.WithFields(log.Fields{"project_id": projectID, "user_id": p.ID})

	if err := sse.SendRetry(int(h.cfg.Reconnect.Milliseconds())); err != nil {
		return
	}
	if err := sse.SendEvent("joined", `{"projectId":`+strconv.FormatInt(projectID, 10)+`}`); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.cfg.Heartbeat)
	defer heartbeat.Stop()
	timeout := time.NewTimer(h.cfg.MaxStreamDuration)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout.C:
			sse.SendEvent("close", `{"reason":"timeout"}`)
			return
		case msg, ok := <-sub.C():
			if !ok {
				sse.SendEvent("close", `{"reason":"shutdown"}`)
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.WithError(err).Warn("encode chat message")
				continue
			}
			if err := sse.SendEvent(chat.EventNewMessage, string(data)); err != nil {
				logger.WithError(err).Debug("chat stream closed")
				return
			}
		case <-heartbeat.C:
			if err := sse.SendComment("ping"); err != nil {
				return
			}
		}
	}
}

// Socket handles GET /api/ws. The connection serves until the peer leaves
// or the request context, derived from the server's base context, ends.
func (h *Handler) Socket(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.WithError(err).WithField("user_id", p.ID).Debug("websocket upgrade failed")
		return
	}
	chat.NewClient(conn, h.hub, h.chat, p, h.cfg.Client).Serve(r.Context())
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
