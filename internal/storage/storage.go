// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"

	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// Sentinel errors returned by mutating repository methods. Lookups return
// (nil, nil) when nothing matches.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrInUse     = errors.New("record is referenced by other records")
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// EnsureAdminUser creates a bootstrap admin account when no admin exists.
	EnsureAdminUser(ctx context.Context, email, password string) (*models.User, error)

	Users() UserRepository
	Projects() ProjectRepository
	Files() FileRepository
	Tasks() TaskRepository
	Chats() ChatRepository
	Tokens() TokenRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// ProjectRepository defines operations on projects and their provisioning log.
//
// Creation is two-phase: CreatePending inserts the row together with a
// provision record naming the directory about to be created, and
// CompleteProvision stores the upload path and clears the record in one
// transaction. AbortProvision removes both.
type ProjectRepository interface {
	CreatePending(ctx context.Context, project *models.Project, uploadPath func(id int64) string) (*models.Provision, error)
	CompleteProvision(ctx context.Context, projectID int64, uploadPath string) error
	AbortProvision(ctx context.Context, projectID int64) error
	ListProvisions(ctx context.Context) ([]*models.Provision, error)

	GetByID(ctx context.Context, id int64) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.Project, error)
	ListForMember(ctx context.Context, principalID string) ([]*models.Project, error)
	ListPosted(ctx context.Context) ([]*models.ExploreEntry, error)
	SetPosted(ctx context.Context, id int64, posted bool) error
	SetNeedMembers(ctx context.Context, id int64, need bool) error
}

// FileRepository records stored file names per project. Each name is a row,
// so appends and removals are atomic and never lose concurrent updates.
type FileRepository interface {
	Append(ctx context.Context, projectID int64, name string) error
	Remove(ctx context.Context, projectID int64, name string) error
	List(ctx context.Context, projectID int64) ([]string, error)
	ListAll(ctx context.Context) (map[int64][]string, error)
}

// TaskRepository defines operations for project tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	ListByProject(ctx context.Context, projectID int64) ([]*models.Task, error)
	ListByProjects(ctx context.Context, projectIDs []int64) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id int64) error
}

// ChatRepository persists chat messages.
type ChatRepository interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	GetByID(ctx context.Context, id int64) (*models.ChatMessage, error)
	// ListByProject returns messages after afterID in ascending order.
	// A limit of zero means no limit.
	ListByProject(ctx context.Context, projectID, afterID int64, limit int) ([]*models.ChatMessage, error)
}

// TokenRepository defines operations for refresh token management.
type TokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	// Rotate atomically revokes the live token oldHash and stores next.
	// It returns ErrNotFound when oldHash is unknown or already revoked.
	Rotate(ctx context.Context, oldHash string, next *models.RefreshToken) error
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context) (int64, error)
}
