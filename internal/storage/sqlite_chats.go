package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/good-yellow-bee/projectdesk/internal/models"
)

type sqliteChatRepo struct {
	db *sql.DB
}

const chatColumns = `c.id, c.project_id, c.user_id, COALESCE(u.name, ''), c.message, c.timestamp`

func (r *sqliteChatRepo) Create(ctx context.Context, msg *models.ChatMessage) error {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO chats (project_id, user_id, message, timestamp) VALUES (?, ?, ?, ?)",
		msg.ProjectID, msg.UserID, msg.Message, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", classify(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("chat message id: %w", err)
	}
	msg.ID = id
	return nil
}

// GetByID returns the message joined with the sender's display name.
func (r *sqliteChatRepo) GetByID(ctx context.Context, id int64) (*models.ChatMessage, error) {
	query := `SELECT ` + chatColumns + ` FROM chats c LEFT JOIN users u ON u.id = c.user_id WHERE c.id = ?`
	msg, err := scanChat(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat message: %w", err)
	}
	return msg, nil
}

func (r *sqliteChatRepo) ListByProject(ctx context.Context, projectID, afterID int64, limit int) ([]*models.ChatMessage, error) {
	query := `SELECT ` + chatColumns + ` FROM chats c LEFT JOIN users u ON u.id = c.user_id
		WHERE c.project_id = ? AND c.id > ?
		ORDER BY c.timestamp ASC, c.id ASC`
	args := []any{projectID, afterID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*models.ChatMessage, 0)
	for rows.Next() {
		msg, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func scanChat(row rowScanner) (*models.ChatMessage, error) {
	m := &models.ChatMessage{}
	if err := row.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.UserName, &m.Message, &m.Timestamp); err != nil {
		return nil, err
	}
	return m, nil
}
