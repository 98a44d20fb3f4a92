package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/good-yellow-bee/projectdesk/internal/models"
	"github.com/good-yellow-bee/projectdesk/internal/storage"
)

// ErrInvalidRefreshToken is returned for unknown, revoked, expired or
// already rotated refresh tokens.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// TokenService issues and rotates opaque refresh tokens. Only their hashes
// are stored, and each token can be exchanged exactly once.
type TokenService struct {
	store storage.Storage
	ttl   time.Duration
}

// NewTokenService creates a token service whose tokens live for ttl.
func NewTokenService(store storage.Storage, ttl time.Duration) *TokenService {
	return &TokenService{store: store, ttl: ttl}
}

// Issue stores a fresh refresh token for userID and returns its plaintext.
func (s *TokenService) Issue(ctx context.Context, userID int64) (string, error) {
	token, plain, err := models.NewRefreshToken(userID, s.ttl)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.store.Tokens().Create(ctx, token); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return plain, nil
}

// Rotate exchanges plain for a new refresh token and returns the owning
// user with the replacement. Concurrent or repeated exchanges of the same
// token see ErrInvalidRefreshToken for all but the first.
func (s *TokenService) Rotate(ctx context.Context, plain string) (*models.User, string, error) {
	hash := models.HashToken(plain)
	current, err := s.store.Tokens().Find(ctx, hash)
	if err != nil {
		return nil, "", fmt.Errorf("lookup refresh token: %w", err)
	}
	if current == nil || !current.IsValid() {
		return nil, "", ErrInvalidRefreshToken
	}

	user, err := s.store.Users().GetByID(ctx, current.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, "", ErrInvalidRefreshToken
	}

	next, nextPlain, err := models.NewRefreshToken(user.ID, s.ttl)
	if err != nil {
		return nil, "", fmt.Errorf("generate refresh token: %w", err)
	}
	err = s.store.Tokens().Rotate(ctx, hash, next)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, "", fmt.Errorf("rotate refresh token: %w", err)
	}
	return user, nextPlain, nil
}

// Revoke ends a refresh token. Unknown and already revoked tokens report
// ErrInvalidRefreshToken.
func (s *TokenService) Revoke(ctx context.Context, plain string) error {
	err := s.store.Tokens().Revoke(ctx, models.HashToken(plain))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidRefreshToken
	}
	return err
}

// Cleanup removes expired tokens from storage.
func (s *TokenService) Cleanup(ctx context.Context) (int64, error) {
	return s.store.Tokens().DeleteExpired(ctx)
}

// TTL returns the refresh token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
