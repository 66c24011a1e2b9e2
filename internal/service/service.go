// Package service is the tracker the presentation layer talks to. It owns
// id assignment, validation, the cascade on project delete, and the theme
// preference, on top of the storage engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/tgienger/projectflow/internal/bootstrap"
	"github.com/tgienger/projectflow/internal/db"
	"github.com/tgienger/projectflow/internal/models"
)

// Store is the storage surface the tracker needs; *db.DB satisfies it
type Store interface {
	bootstrap.Store

	AddProject(ctx context.Context, p models.Project) error
	GetProject(ctx context.Context, id string) (models.Project, bool, error)
	UpdateProject(ctx context.Context, p models.Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context) ([]models.Project, error)

	AddTask(ctx context.Context, t models.Task) error
	GetTask(ctx context.Context, id string) (models.Task, bool, error)
	UpdateTask(ctx context.Context, t models.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context) ([]models.Task, error)
	TasksByProject(ctx context.Context, projectID string) ([]models.Task, error)
	TasksDueOn(ctx context.Context, date models.Date) ([]models.Task, error)
	DeleteTasksByProject(ctx context.Context, projectID string) (int, error)

	Clear(ctx context.Context) error
}

// Bootstrapper prepares a new store; *bootstrap.Service satisfies it
type Bootstrapper interface {
	Run(ctx context.Context) (bootstrap.Outcome, error)
}

// ProjectFields are the user-editable fields of a project
type ProjectFields struct {
	Name        string
	Description string
	Status      models.ProjectStatus
	DueDate     models.Date
}

// TaskFields are the user-editable fields of a task
type TaskFields struct {
	Title       string
	Description string
	ProjectID   string
	Priority    models.Priority
	Status      models.TaskStatus
	DueDate     models.Date
}

// Tracker coordinates storage, bootstrap and derived state
type Tracker struct {
	store  Store
	boot   Bootstrapper
	clock  models.Clock
	logger *log.Logger
}

// New creates a Tracker. boot may be nil to skip bootstrapping, clock nil
// for the system clock, and logger nil to discard logs.
func New(store Store, boot Bootstrapper, clock models.Clock, logger *log.Logger) *Tracker {
	if clock == nil {
		clock = models.SystemClock
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Tracker{store: store, boot: boot, clock: clock, logger: logger}
}

// Today is the current local calendar date
func (t *Tracker) Today() models.Date {
	return models.Today(t.clock)
}

// LoadAll bootstraps the store and returns both collections ordered by
// creation date then id. An incomplete legacy migration is logged, not returned.
func (t *Tracker) LoadAll(ctx context.Context) (*models.Snapshot, error) {
	if t.boot != nil {
		out, err := t.boot.Run(ctx)
		var migErr *bootstrap.MigrationError
		switch {
		case errors.As(err, &migErr):
			t.logger.Printf("load: %v", migErr)
		case err != nil:
			return nil, fmt.Errorf("bootstrap: %w", err)
		default:
			t.logger.Printf("load: bootstrap %s, %s", out.State, out.Action)
		}
	}

	projects, err := t.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	tasks, err := t.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	sort.SliceStable(projects, func(i, j int) bool {
		return createdLess(projects[i].CreatedDate, projects[i].ID, projects[j].CreatedDate, projects[j].ID)
	})
	sort.SliceStable(tasks, func(i, j int) bool {
		return createdLess(tasks[i].CreatedDate, tasks[i].ID, tasks[j].CreatedDate, tasks[j].ID)
	})
	return &models.Snapshot{Projects: projects, Tasks: tasks}, nil
}

func createdLess(a models.Date, aID string, b models.Date, bID string) bool {
	if c := a.Compare(b); c != 0 {
		return c < 0
	}
	return aID < bID
}

// CreateProject assigns an id and today's creation date and stores the project
func (t *Tracker) CreateProject(ctx context.Context, f ProjectFields) (models.Project, error) {
	p := models.Project{
		ID:          models.NewProjectID(),
		CreatedDate: t.Today(),
	}
	applyProject(&p, f)
	if err := p.Validate(); err != nil {
		return models.Project{}, err
	}
	if err := t.store.AddProject(ctx, p); err != nil {
		return models.Project{}, fmt.Errorf("create project: %w", err)
	}
	t.logger.Printf("created project %s", p.ID)
	return p, nil
}

// UpdateProject replaces the editable fields of an existing project
func (t *Tracker) UpdateProject(ctx context.Context, id string, f ProjectFields) (models.Project, error) {
	p, ok, err := t.store.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, fmt.Errorf("load project %s: %w", id, err)
	}
	if !ok {
		return models.Project{}, fmt.Errorf("project %s: %w", id, db.ErrNotFound)
	}
	applyProject(&p, f)
	if err := p.Validate(); err != nil {
		return models.Project{}, err
	}
	if err := t.store.UpdateProject(ctx, p); err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

func applyProject(p *models.Project, f ProjectFields) {
	p.Name = strings.TrimSpace(f.Name)
	p.Description = f.Description
	p.Status = f.Status
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	p.DueDate = f.DueDate
}

// DeleteProject deletes the project's tasks, then the project, and returns
// how many tasks went with it. If any task delete fails the project is kept
// so the cascade can be retried.
func (t *Tracker) DeleteProject(ctx context.Context, id string) (int, error) {
	n, err := t.store.DeleteTasksByProject(ctx, id)
	if err != nil {
		return n, fmt.Errorf("delete tasks of project %s: %w", id, err)
	}
	if err := t.store.DeleteProject(ctx, id); err != nil {
		return n, fmt.Errorf("delete project %s: %w", id, err)
	}
	t.logger.Printf("deleted project %s and %d tasks", id, n)
	return n, nil
}

// CreateTask assigns an id and today's creation date and stores the task
func (t *Tracker) CreateTask(ctx context.Context, f TaskFields) (models.Task, error) {
	task := models.Task{
		ID:          models.NewTaskID(),
		CreatedDate: t.Today(),
	}
	applyTask(&task, f)
	if err := task.Validate(); err != nil {
		return models.Task{}, err
	}
	if err := t.store.AddTask(ctx, task); err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}
	t.logger.Printf("created task %s in %s", task.ID, task.ProjectID)
	return task, nil
}

// UpdateTask replaces the editable fields of an existing task
func (t *Tracker) UpdateTask(ctx context.Context, id string, f TaskFields) (models.Task, error) {
	task, ok, err := t.store.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("load task %s: %w", id, err)
	}
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", id, db.ErrNotFound)
	}
	applyTask(&task, f)
	if err := task.Validate(); err != nil {
		return models.Task{}, err
	}
	if err := t.store.UpdateTask(ctx, task); err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func applyTask(task *models.Task, f TaskFields) {
	task.Title = strings.TrimSpace(f.Title)
	task.Description = f.Description
	task.ProjectID = f.ProjectID
	task.Priority = f.Priority
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	task.Status = f.Status
	if task.Status == "" {
		task.Status = models.TaskTodo
	}
	task.DueDate = f.DueDate
}

// DeleteTask removes a task; deleting a missing task is not an error
func (t *Tracker) DeleteTask(ctx context.Context, id string) error {
	if err := t.store.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// ToggleTaskStatus flips a task between completed and todo
func (t *Tracker) ToggleTaskStatus(ctx context.Context, id string) (models.Task, error) {
	task, ok, err := t.store.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("load task %s: %w", id, err)
	}
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", id, db.ErrNotFound)
	}
	if task.Status == models.TaskCompleted {
		task.Status = models.TaskTodo
	} else {
		task.Status = models.TaskCompleted
	}
	if err := t.store.UpdateTask(ctx, task); err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (t *Tracker) TasksForProject(ctx context.Context, projectID string) ([]models.Task, error) {
	return t.store.TasksByProject(ctx, projectID)
}

func (t *Tracker) TasksDueOn(ctx context.Context, date models.Date) ([]models.Task, error) {
	return t.store.TasksDueOn(ctx, date)
}

// Reset empties the store and runs the bootstrap again. The bootstrap
// marker is dropped too, so the marker policy sets the store up afresh.
func (t *Tracker) Reset(ctx context.Context) (*models.Snapshot, error) {
	if err := t.store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear: %w", err)
	}
	if err := t.store.DeleteSetting(ctx, db.SettingInitialized); err != nil {
		return nil, fmt.Errorf("clear bootstrap marker: %w", err)
	}
	t.logger.Printf("store cleared")
	return t.LoadAll(ctx)
}
