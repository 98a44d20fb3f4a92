package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/metrics"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// Client events.
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
)

// Server events.
const (
	EventNewMessage = "newMessage"
	EventJoined     = "joined"
	EventLeft       = "left"
	EventError      = "error"
)

// Inbound is a frame sent by a websocket client.
type Inbound struct {
	Type      string `json:"type"`
	ProjectID int64  `json:"projectId"`
	Message   string `json:"message,omitempty"`
}

// Outbound is a frame sent to a websocket client.
type Outbound struct {
	Type      string              `json:"type"`
	ProjectID int64               `json:"projectId,omitempty"`
	Data      *models.ChatMessage `json:"data,omitempty"`
	Message   string              `json:"message,omitempty"`
}

// Service is what a connection needs from the chat domain service.
type Service interface {
	Authorize(ctx context.Context, projectID int64, requester models.Principal) error
	Post(ctx context.Context, projectID int64, sender models.Principal, text string) (*models.ChatMessage, error)
}

// ClientConfig tunes a websocket connection.
type ClientConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	// MessagesPerSecond and Burst limit sendMessage events per connection.
	MessagesPerSecond float64
	Burst             int
}

// DefaultClientConfig returns sensible connection defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteWait:         10 * time.Second,
		PongWait:          60 * time.Second,
		PingInterval:      54 * time.Second,
		MaxMessageSize:    16 * 1024,
		MessagesPerSecond: 2,
		Burst:             5,
	}
}

// Client is one authenticated websocket connection.
type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	svc       Service
	principal models.Principal
	cfg       ClientConfig
	sub       *Subscriber
	limiter   *rate.Limiter
	replies   chan Outbound
}

// NewClient wraps conn for principal.
func NewClient(conn *websocket.Conn, hub *Hub, svc Service, principal models.Principal, cfg ClientConfig) *Client {
	return &Client{
		conn:      conn,
		hub:       hub,
		svc:       svc,
		principal: principal,
		cfg:       cfg,
		sub:       hub.NewSubscriber(),
		limiter:   rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.Burst),
		replies:   make(chan Outbound, 16),
	}
}

// Serve runs the connection until the peer disconnects or ctx is canceled.
// It closes the connection before returning.
func (c *Client) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics.ChatConnectionsActive.WithLabelValues("websocket").Inc()
	defer metrics.ChatConnectionsActive.WithLabelValues("websocket").Dec()

	logger := log.WithFields(log.Fields{"user_id": c.principal.ID, "conn": c.sub.ID()})
	logger.Debug("websocket connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx)
		// Unblock the reader when the writer stops first.
		cancel()
		c.conn.Close()
	}()

	c.readPump(ctx, logger)

	cancel()
	c.hub.Remove(c.sub)
	<-writerDone
	logger.Debug("websocket disconnected")
}

func (c *Client) readPump(ctx context.Context, logger *log.Entry) {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).Debug("websocket read failed")
			}
			return
		}

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.reply(ctx, Outbound{Type: EventError, Message: "invalid frame"})
			continue
		}
		c.handle(ctx, in, logger)
	}
}

func (c *Client) handle(ctx context.Context, in Inbound, logger *log.Entry) {
	switch in.Type {
	case EventJoinRoom:
		if err := c.svc.Authorize(ctx, in.ProjectID, c.principal); err != nil {
			c.reply(ctx, Outbound{Type: EventError, ProjectID: in.ProjectID, Message: errorMessage(err)})
			return
		}
		if err := c.hub.Join(ctx, c.sub, in.ProjectID); err != nil {
			return
		}
		c.reply(ctx, Outbound{Type: EventJoined, ProjectID: in.ProjectID})

	case EventLeaveRoom:
		if err := c.hub.Leave(ctx, c.sub, in.ProjectID); err != nil {
			return
		}
		c.reply(ctx, Outbound{Type: EventLeft, ProjectID: in.ProjectID})

	case EventSendMessage:
		if !c.limiter.Allow() {
			c.reply(ctx, Outbound{Type: EventError, ProjectID: in.ProjectID, Message: "too many messages"})
			return
		}
		if _, err := c.svc.Post(ctx, in.ProjectID, c.principal, in.Message); err != nil {
			msg := errorMessage(err)
			if msg == internalMessage {
				logger.WithError(err).WithField("project_id", in.ProjectID).Error("websocket post failed")
			}
			c.reply(ctx, Outbound{Type: EventError, ProjectID: in.ProjectID, Message: msg})
		}

	default:
		c.reply(ctx, Outbound{Type: EventError, Message: "unknown event type"})
	}
}

func (c *Client) reply(ctx context.Context, out Outbound) {
	select {
	case c.replies <- out:
	case <-ctx.Done():
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg, ok := <-c.sub.C():
			if !ok {
				return
			}
			if err := c.writeJSON(Outbound{Type: EventNewMessage, ProjectID: msg.ProjectID, Data: msg}); err != nil {
				return
			}

		case out := <-c.replies:
			if err := c.writeJSON(out); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeJSON(v any) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.conn.WriteJSON(v)
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.conn.WriteMessage(messageType, data)
}

const internalMessage = "internal error"

func errorMessage(err error) string {
	var verr *collab.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, collab.ErrNotFound):
		return "project not found"
	case errors.Is(err, collab.ErrForbidden):
		return "access denied"
	case errors.Is(err, context.Canceled):
		return "connection closing"
	default:
		return internalMessage
	}
}
