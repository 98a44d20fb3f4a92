package collab

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/good-yellow-bee/projectdesk/internal/metrics"
	"github.com/good-yellow-bee/projectdesk/internal/models"
	"github.com/good-yellow-bee/projectdesk/internal/storage"
)

// MaxMessageLength is the longest chat message accepted, in characters.
const MaxMessageLength = 4000

// Publisher fans a persisted message out to the project's room.
type Publisher interface {
	Publish(ctx context.Context, msg *models.ChatMessage) error
}

// ChatService persists chat messages and hands them to a Publisher.
// The database is the source of truth; publication is best effort.
type ChatService struct {
	store     storage.Storage
	publisher Publisher
}

// NewChatService creates a ChatService. publisher may be nil.
func NewChatService(store storage.Storage, publisher Publisher) *ChatService {
	return &ChatService{store: store, publisher: publisher}
}

// Authorize checks that the principal may join the project's room.
func (s *ChatService) Authorize(ctx context.Context, projectID int64, requester models.Principal) error {
	_, err := loadViewable(ctx, s.store, projectID, requester)
	return err
}

// Post persists a message from sender and publishes it. A publish failure
// is logged; the persisted message is still returned.
func (s *ChatService) Post(ctx context.Context, projectID int64, sender models.Principal, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, NewValidationError("message", "message is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, NewValidationError("message", fmt.Sprintf("message must be at most %d characters", MaxMessageLength))
	}
	if _, err := loadMember(ctx, s.store, projectID, sender); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ProjectID: projectID,
		UserID:    sender.UserID(),
		Message:   text,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.Chats().Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	metrics.ChatMessagesTotal.Inc()

	saved, err := s.store.Chats().GetByID(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("reload message: %w", err)
	}
	if saved == nil {
		return nil, ErrNotFound
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, saved); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"project_id": projectID,
				"message_id": saved.ID,
			}).Warn("chat publish failed")
		}
	}
	return saved, nil
}

// History returns messages in timestamp order. afterID and limit page
// through the history; a zero limit returns everything.
func (s *ChatService) History(ctx context.Context, projectID int64, requester models.Principal, afterID int64, limit int) ([]*models.ChatMessage, error) {
	if _, err := loadViewable(ctx, s.store, projectID, requester); err != nil {
		return nil, err
	}
	msgs, err := s.store.Chats().ListByProject(ctx, projectID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}
	return msgs, nil
}
