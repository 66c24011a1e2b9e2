// Package testutil provides in-memory fakes for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/tgienger/projectflow/internal/db"
	"github.com/tgienger/projectflow/internal/models"
)

// MemStore is an in-memory stand-in for *db.DB with error injection.
type MemStore struct {
	mu       sync.RWMutex
	projects map[string]models.Project
	tasks    map[string]models.Task
	settings map[string]string

	// Error injection for testing
	FailIDs    map[string]error // add, update or delete of these ids fails
	CountsErr  error
	ListErr    error
	SettingErr error

	// Calls records mutating operations in the order they happened
	Calls []string
}

// NewMemStore creates an empty MemStore
func NewMemStore() *MemStore {
	return &MemStore{
		projects: make(map[string]models.Project),
		tasks:    make(map[string]models.Task),
		settings: make(map[string]string),
		FailIDs:  make(map[string]error),
	}
}

func (m *MemStore) record(format string, args ...any) {
	m.Calls = append(m.Calls, fmt.Sprintf(format, args...))
}

func (m *MemStore) failFor(id string) error {
	if err, ok := m.FailIDs[id]; ok {
		return err
	}
	return nil
}

func (m *MemStore) Counts(ctx context.Context) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.CountsErr != nil {
		return 0, 0, m.CountsErr
	}
	return len(m.projects), len(m.tasks), nil
}

func (m *MemStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("clear")
	m.projects = make(map[string]models.Project)
	m.tasks = make(map[string]models.Task)
	return nil
}

func (m *MemStore) AddProject(ctx context.Context, p models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("add project %s", p.ID)
	if err := m.failFor(p.ID); err != nil {
		return err
	}
	if _, exists := m.projects[p.ID]; exists {
		return fmt.Errorf("add project %s: %w", p.ID, db.ErrDuplicateKey)
	}
	m.projects[p.ID] = p
	return nil
}

func (m *MemStore) GetProject(ctx context.Context, id string) (models.Project, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	return p, ok, nil
}

func (m *MemStore) UpdateProject(ctx context.Context, p models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("update project %s", p.ID)
	if err := m.failFor(p.ID); err != nil {
		return err
	}
	m.projects[p.ID] = p
	return nil
}

func (m *MemStore) DeleteProject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete project %s", id)
	if err := m.failFor(id); err != nil {
		return err
	}
	delete(m.projects, id)
	return nil
}

func (m *MemStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]models.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *MemStore) BulkAddProjects(ctx context.Context, projects []models.Project) (db.BatchResult, error) {
	var res db.BatchResult
	for _, p := range projects {
		res.Outcomes = append(res.Outcomes, db.Outcome{ID: p.ID, Err: m.AddProject(ctx, p)})
	}
	return res, batchErr("bulk add projects", res)
}

func (m *MemStore) AddTask(ctx context.Context, t models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("add task %s", t.ID)
	if err := m.failFor(t.ID); err != nil {
		return err
	}
	if _, exists := m.tasks[t.ID]; exists {
		return fmt.Errorf("add task %s: %w", t.ID, db.ErrDuplicateKey)
	}
	m.tasks[t.ID] = t
	return nil
}

func (m *MemStore) GetTask(ctx context.Context, id string) (models.Task, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok, nil
}

func (m *MemStore) UpdateTask(ctx context.Context, t models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("update task %s", t.ID)
	if err := m.failFor(t.ID); err != nil {
		return err
	}
	m.tasks[t.ID] = t
	return nil
}

func (m *MemStore) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete task %s", id)
	if err := m.failFor(id); err != nil {
		return err
	}
	delete(m.tasks, id)
	return nil
}

func (m *MemStore) ListTasks(ctx context.Context) ([]models.Task, error) {
	return m.filterTasks(func(models.Task) bool { return true })
}

func (m *MemStore) TasksByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	return m.filterTasks(func(t models.Task) bool { return t.ProjectID == projectID })
}

func (m *MemStore) TasksDueOn(ctx context.Context, date models.Date) ([]models.Task, error) {
	return m.filterTasks(func(t models.Task) bool { return !date.IsZero() && t.DueDate == date })
}

func (m *MemStore) filterTasks(keep func(models.Task) bool) ([]models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]models.Task, 0)
	for _, t := range m.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemStore) DeleteTasksByProject(ctx context.Context, projectID string) (int, error) {
	tasks, err := m.TasksByProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	var res db.BatchResult
	for _, t := range tasks {
		res.Outcomes = append(res.Outcomes, db.Outcome{ID: t.ID, Err: m.DeleteTask(ctx, t.ID)})
	}
	return len(res.Succeeded()), batchErr("delete tasks of project "+projectID, res)
}

func (m *MemStore) BulkAddTasks(ctx context.Context, tasks []models.Task) (db.BatchResult, error) {
	var res db.BatchResult
	for _, t := range tasks {
		res.Outcomes = append(res.Outcomes, db.Outcome{ID: t.ID, Err: m.AddTask(ctx, t)})
	}
	return res, batchErr("bulk add tasks", res)
}

func (m *MemStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.SettingErr != nil {
		return "", false, m.SettingErr
	}
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *MemStore) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SettingErr != nil {
		return m.SettingErr
	}
	m.settings[key] = value
	return nil
}

func (m *MemStore) DeleteSetting(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SettingErr != nil {
		return m.SettingErr
	}
	delete(m.settings, key)
	return nil
}

func batchErr(op string, res db.BatchResult) error {
	if res.OK() {
		return nil
	}
	return &db.BatchError{Op: op, Result: res}
}
