package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tgienger/projectflow/internal/models"
)

const projectColumns = "id, name, description, status, due_date, created_date"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.DueDate, &p.CreatedDate)
	return p, err
}

// AddProject inserts a new project. It fails with ErrDuplicateKey if the id exists.
func (db *DB) AddProject(ctx context.Context, p models.Project) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, p.Status, p.DueDate, p.CreatedDate)
	if isDuplicateKey(err) {
		return fmt.Errorf("add project %s: %w", p.ID, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("add project %s: %w", p.ID, err)
	}
	return nil
}

// GetProject retrieves a project by ID. A missing project reports ok=false.
func (db *DB) GetProject(ctx context.Context, id string) (p models.Project, ok bool, err error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return models.Project{}, false, err
	}
	p, err = scanProject(conn.QueryRowContext(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return models.Project{}, false, nil
	}
	if err != nil {
		return models.Project{}, false, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, true, nil
}

// UpdateProject replaces the stored project in full, creating it if absent
func (db *DB) UpdateProject(ctx context.Context, p models.Project) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			status = excluded.status,
			due_date = excluded.due_date,
			created_date = excluded.created_date
	`, p.ID, p.Name, p.Description, p.Status, p.DueDate, p.CreatedDate)
	if err != nil {
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProject deletes a project. Its tasks are left alone; see DeleteTasksByProject.
func (db *DB) DeleteProject(ctx context.Context, id string) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

// ListProjects returns every project in no particular order
func (db *DB) ListProjects(ctx context.Context) ([]models.Project, error) {
	return db.queryProjects(ctx, "SELECT "+projectColumns+" FROM projects")
}

// ProjectsByStatus uses the status index
func (db *DB) ProjectsByStatus(ctx context.Context, status models.ProjectStatus) ([]models.Project, error) {
	return db.queryProjects(ctx, "SELECT "+projectColumns+" FROM projects WHERE status = ?", status)
}

func (db *DB) queryProjects(ctx context.Context, query string, args ...any) ([]models.Project, error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// BulkAddProjects adds every project concurrently. Failures do not undo the
// records that were inserted; inspect the result to see which ones failed.
func (db *DB) BulkAddProjects(ctx context.Context, projects []models.Project) (BatchResult, error) {
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	res := fanOut(ids, func(i int) error {
		return db.AddProject(ctx, projects[i])
	})
	db.logger.Printf("db: bulk add projects: %d ok, %d failed", len(res.Succeeded()), len(res.Failed()))
	return res, res.err("bulk add projects")
}
