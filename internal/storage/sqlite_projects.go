package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/good-yellow-bee/projectdesk/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

// projectColumns selects a project row plus its ordered file list as a JSON array.
const projectColumns = `
	p.id, p.title, p.description, p.department, p.start_date, p.end_date, p.priority,
	p.team_members, p.budget, p.status, p.tags, p.upload_path, p.owner_id,
	p.need_members, p.posted, p.created_at, p.updated_at,
	(SELECT json_group_array(name) FROM (
		SELECT f.name FROM project_files f WHERE f.project_id = p.id ORDER BY f.id
	)) AS files`

func (r *sqliteProjectRepo) CreatePending(ctx context.Context, project *models.Project, uploadPath func(id int64) string) (*models.Provision, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO projects (
			title, description, department, start_date, end_date, priority,
			team_members, budget, status, tags, upload_path, owner_id,
			need_members, posted, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		project.Title, project.Description, project.Department,
		project.StartDate, project.EndDate, project.Priority,
		project.TeamMembers, nullFloat(project.Budget), project.Status, project.Tags,
		project.OwnerID, boolToInt(project.NeedMembers), boolToInt(project.Posted),
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", classify(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("project id: %w", err)
	}

	prov := &models.Provision{
		ProjectID: id,
		Path:      uploadPath(id),
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO provisions (project_id, path, created_at) VALUES (?, ?, ?)",
		prov.ProjectID, prov.Path, prov.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("record provision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit project: %w", err)
	}

	project.ID = id
	project.UploadPath = ""
	return prov, nil
}

func (r *sqliteProjectRepo) CompleteProvision(ctx context.Context, projectID int64, uploadPath string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"UPDATE projects SET upload_path = ?, updated_at = ? WHERE id = ?",
		uploadPath, time.Now().UTC(), projectID,
	)
	if err != nil {
		return fmt.Errorf("set upload path: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("project %d: %w", projectID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM provisions WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("clear provision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit provision: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) AbortProvision(ctx context.Context, projectID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ? AND upload_path = ''", projectID); err != nil {
		return fmt.Errorf("delete unprovisioned project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM provisions WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("clear provision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit abort: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) ListProvisions(ctx context.Context) ([]*models.Provision, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT project_id, path, created_at FROM provisions ORDER BY project_id")
	if err != nil {
		return nil, fmt.Errorf("list provisions: %w", err)
	}
	defer rows.Close()

	var provs []*models.Provision
	for rows.Next() {
		p := &models.Provision{}
		if err := rows.Scan(&p.ProjectID, &p.Path, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan provision: %w", err)
		}
		provs = append(provs, p)
	}
	return provs, rows.Err()
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.id = ?`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	return project, nil
}

func (r *sqliteProjectRepo) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects SET
			title = ?, description = ?, department = ?, start_date = ?, end_date = ?,
			priority = ?, team_members = ?, budget = ?, status = ?, tags = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		project.Title, project.Description, project.Department,
		project.StartDate, project.EndDate, project.Priority,
		project.TeamMembers, nullFloat(project.Budget), project.Status, project.Tags,
		project.UpdatedAt, project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %d: %w", project.ID, ErrNotFound)
	}
	return nil
}

func (r *sqliteProjectRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteProjectRepo) List(ctx context.Context) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p ORDER BY p.id DESC`
	return r.queryProjects(ctx, query)
}

// ListForMember returns projects owned by principalID or listing it in team_members.
func (r *sqliteProjectRepo) ListForMember(ctx context.Context, principalID string) ([]*models.Project, error) {
	ownerID, err := models.ParseID(principalID)
	if err != nil {
		ownerID = -1
	}
	query := `SELECT ` + projectColumns + ` FROM projects p
		WHERE p.owner_id = ?
		   OR EXISTS (SELECT 1 FROM json_each(p.team_members) m WHERE m.value = ?)
		ORDER BY p.id DESC`
	return r.queryProjects(ctx, query, ownerID, principalID)
}

func (r *sqliteProjectRepo) ListPosted(ctx context.Context) ([]*models.ExploreEntry, error) {
	query := `SELECT ` + projectColumns + `, u.name, u.email
		FROM projects p JOIN users u ON u.id = p.owner_id
		WHERE p.posted = 1
		ORDER BY p.updated_at DESC, p.id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list posted projects: %w", err)
	}
	defer rows.Close()

	var entries []*models.ExploreEntry
	for rows.Next() {
		entry := &models.ExploreEntry{}
		project, err := scanProject(rows, &entry.OwnerName, &entry.OwnerEmail)
		if err != nil {
			return nil, fmt.Errorf("scan posted project: %w", err)
		}
		entry.Project = *project
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *sqliteProjectRepo) SetPosted(ctx context.Context, id int64, posted bool) error {
	return r.setFlag(ctx, "posted", id, posted)
}

func (r *sqliteProjectRepo) SetNeedMembers(ctx context.Context, id int64, need bool) error {
	return r.setFlag(ctx, "need_members", id, need)
}

// setFlag updates a boolean column. column is never user supplied.
func (r *sqliteProjectRepo) setFlag(ctx context.Context, column string, id int64, value bool) error {
	query := `UPDATE projects SET ` + column + ` = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, boolToInt(value), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqliteProjectRepo) queryProjects(ctx context.Context, query string, args ...any) ([]*models.Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// scanProject scans projectColumns followed by any extra destinations.
func scanProject(row rowScanner, extra ...any) (*models.Project, error) {
	p := &models.Project{}
	var (
		budget      sql.NullFloat64
		needMembers int
		posted      int
		files       sql.NullString
	)
	dest := []any{
		&p.ID, &p.Title, &p.Description, &p.Department, &p.StartDate, &p.EndDate, &p.Priority,
		&p.TeamMembers, &budget, &p.Status, &p.Tags, &p.UploadPath, &p.OwnerID,
		&needMembers, &posted, &p.CreatedAt, &p.UpdatedAt, &files,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if budget.Valid {
		b := budget.Float64
		p.Budget = &b
	}
	p.NeedMembers = needMembers != 0
	p.Posted = posted != 0
	p.Files = []string{}
	if files.Valid && files.String != "" {
		if err := json.Unmarshal([]byte(files.String), &p.Files); err != nil {
			return nil, fmt.Errorf("decode files: %w", err)
		}
	}
	return p, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
