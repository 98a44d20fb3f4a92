package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/good-yellow-bee/projectdesk/internal/models"
)

type sqliteTaskRepo struct {
	db *sql.DB
}

const taskColumns = `id, project_id, title, assignee, status, deadline, created_at, updated_at`

func (r *sqliteTaskRepo) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (project_id, title, assignee, status, deadline, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		task.ProjectID, task.Title, task.Assignee, task.Status, task.Deadline,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", classify(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	task.ID = id
	return nil
}

func (r *sqliteTaskRepo) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task by id: %w", err)
	}
	return task, nil
}

func (r *sqliteTaskRepo) ListByProject(ctx context.Context, projectID int64) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = ? ORDER BY id`
	return r.queryTasks(ctx, query, projectID)
}

func (r *sqliteTaskRepo) ListByProjects(ctx context.Context, projectIDs []int64) ([]*models.Task, error) {
	if len(projectIDs) == 0 {
		return []*models.Task{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(projectIDs)), ",")
	args := make([]any, len(projectIDs))
	for i, id := range projectIDs {
		args[i] = id
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id IN (` + placeholders + `) ORDER BY project_id, id`
	return r.queryTasks(ctx, query, args...)
}

func (r *sqliteTaskRepo) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks SET title = ?, assignee = ?, status = ?, deadline = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		task.Title, task.Assignee, task.Status, task.Deadline, task.UpdatedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("task %d: %w", task.ID, ErrNotFound)
	}
	return nil
}

func (r *sqliteTaskRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteTaskRepo) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Assignee, &t.Status, &t.Deadline, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}
