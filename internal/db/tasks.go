package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tgienger/projectflow/internal/models"
)

const taskColumns = "id, title, description, project_id, priority, status, due_date, created_date"

func scanTask(row rowScanner) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.ProjectID, &t.Priority, &t.Status, &t.DueDate, &t.CreatedDate)
	return t, err
}

// AddTask inserts a new task. It fails with ErrDuplicateKey if the id exists.
// The project id is not checked.
func (db *DB) AddTask(ctx context.Context, t models.Task) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Title, t.Description, t.ProjectID, t.Priority, t.Status, t.DueDate, t.CreatedDate)
	if isDuplicateKey(err) {
		return fmt.Errorf("add task %s: %w", t.ID, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("add task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask retrieves a task by ID. A missing task reports ok=false.
func (db *DB) GetTask(ctx context.Context, id string) (t models.Task, ok bool, err error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return models.Task{}, false, err
	}
	t, err = scanTask(conn.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return models.Task{}, false, nil
	}
	if err != nil {
		return models.Task{}, false, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, true, nil
}

// UpdateTask replaces the stored task in full, creating it if absent
func (db *DB) UpdateTask(ctx context.Context, t models.Task) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			project_id = excluded.project_id,
			priority = excluded.priority,
			status = excluded.status,
			due_date = excluded.due_date,
			created_date = excluded.created_date
	`, t.ID, t.Title, t.Description, t.ProjectID, t.Priority, t.Status, t.DueDate, t.CreatedDate)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTask deletes a task; deleting a missing task is not an error
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// ListTasks returns every task in no particular order
func (db *DB) ListTasks(ctx context.Context) ([]models.Task, error) {
	return db.queryTasks(ctx, "SELECT "+taskColumns+" FROM tasks")
}

// TasksByProject returns the tasks of one project through the project_id index
func (db *DB) TasksByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	return db.queryTasks(ctx, "SELECT "+taskColumns+" FROM tasks WHERE project_id = ?", projectID)
}

func (db *DB) TasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	return db.queryTasks(ctx, "SELECT "+taskColumns+" FROM tasks WHERE status = ?", status)
}

func (db *DB) TasksByPriority(ctx context.Context, priority models.Priority) ([]models.Task, error) {
	return db.queryTasks(ctx, "SELECT "+taskColumns+" FROM tasks WHERE priority = ?", priority)
}

// TasksDueOn returns tasks whose due date is exactly date
func (db *DB) TasksDueOn(ctx context.Context, date models.Date) ([]models.Task, error) {
	if date.IsZero() {
		return []models.Task{}, nil
	}
	return db.queryTasks(ctx, "SELECT "+taskColumns+" FROM tasks WHERE due_date = ?", date)
}

func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DeleteTasksByProject looks up the project's tasks and deletes them one by
// one, concurrently. It returns how many were deleted. If some deletes fail
// the others stay deleted and the error is a *BatchError.
func (db *DB) DeleteTasksByProject(ctx context.Context, projectID string) (int, error) {
	tasks, err := db.TasksByProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete tasks of project %s: %w", projectID, err)
	}
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	res := fanOut(ids, func(i int) error {
		return db.DeleteTask(ctx, ids[i])
	})
	db.logger.Printf("db: deleted %d/%d tasks of project %s", len(res.Succeeded()), len(ids), projectID)
	return len(res.Succeeded()), res.err("delete tasks of project " + projectID)
}

// BulkAddTasks adds every task concurrently without rollback on failure
func (db *DB) BulkAddTasks(ctx context.Context, tasks []models.Task) (BatchResult, error) {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	res := fanOut(ids, func(i int) error {
		return db.AddTask(ctx, tasks[i])
	})
	db.logger.Printf("db: bulk add tasks: %d ok, %d failed", len(res.Succeeded()), len(res.Failed()))
	return res, res.err("bulk add tasks")
}
