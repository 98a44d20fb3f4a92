package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/projectdesk/internal/models"
)

const tokenColumns = `id, user_id, token_hash, expires_at, created_at, revoked, revoked_at`

type sqliteTokenRepo struct {
	db *sql.DB
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertToken(ctx context.Context, db execer, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, NULL)`,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt, boolToInt(token.Revoked))
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", classify(err))
	}
	return nil
}

// revokeLive marks the token revoked if it still is live. It returns
// ErrNotFound when no unrevoked token has that hash.
func revokeLive(ctx context.Context, db execer, tokenHash string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, revoked_at = ? WHERE token_hash = ? AND revoked = 0`,
		time.Now().UTC(), tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteTokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	return insertToken(ctx, r.db, token)
}

// Find returns the token stored under tokenHash, or nil.
func (r *sqliteTokenRepo) Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var (
		token     models.RefreshToken
		revoked   int
		revokedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, tokenHash,
	).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt, &revoked, &revokedAt)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	token.Revoked = revoked != 0
	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}
	return &token, nil
}

// Rotate revokes the live token oldHash and stores next in one transaction.
// Only one caller can win for a given oldHash; the rest get ErrNotFound and
// nothing is inserted.
func (r *sqliteTokenRepo) Rotate(ctx context.Context, oldHash string, next *models.RefreshToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	defer tx.Rollback()

	if err := revokeLive(ctx, tx, oldHash); err != nil {
		return err
	}
	if err := insertToken(ctx, tx, next); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rotate: %w", err)
	}
	return nil
}

// Revoke revokes a live token. Unknown or already revoked hashes yield ErrNotFound.
func (r *sqliteTokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	return revokeLive(ctx, r.db, tokenHash)
}

func (r *sqliteTokenRepo) RevokeAllForUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, revoked_at = ? WHERE user_id = ? AND revoked = 0`,
		time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("revoke tokens of user %d: %w", userID, err)
	}
	return nil
}

// DeleteExpired removes expired tokens and returns how many went.
func (r *sqliteTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}
