package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type sqliteFileRepo struct {
	db *sql.DB
}

func (r *sqliteFileRepo) Append(ctx context.Context, projectID int64, name string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO project_files (project_id, name, created_at) VALUES (?, ?, ?)",
		projectID, name, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append file %q: %w", name, classify(err))
	}
	return nil
}

func (r *sqliteFileRepo) Remove(ctx context.Context, projectID int64, name string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM project_files WHERE project_id = ? AND name = ?",
		projectID, name,
	)
	if err != nil {
		return fmt.Errorf("remove file %q: %w", name, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("file %q: %w", name, ErrNotFound)
	}
	return nil
}

func (r *sqliteFileRepo) List(ctx context.Context, projectID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM project_files WHERE project_id = ? ORDER BY id",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListAll returns every recorded file grouped by project, used by reconciliation.
func (r *sqliteFileRepo) ListAll(ctx context.Context) (map[int64][]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT project_id, name FROM project_files ORDER BY project_id, id")
	if err != nil {
		return nil, fmt.Errorf("list all files: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var (
			projectID int64
			name      string
		)
		if err := rows.Scan(&projectID, &name); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out[projectID] = append(out[projectID], name)
	}
	return out, rows.Err()
}
