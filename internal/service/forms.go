package service

import (
	"context"
	"fmt"

	"github.com/tgienger/projectflow/internal/models"
)

// Mode says whether a form creates a new record or edits an existing one
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// ProjectForm is the pending state of the project editor
type ProjectForm struct {
	Mode      Mode
	EditingID string
	Fields    ProjectFields
}

// NewProjectForm starts an empty create form with the default status
func NewProjectForm() ProjectForm {
	return ProjectForm{Mode: ModeCreate, Fields: ProjectFields{Status: models.ProjectActive}}
}

// EditProjectForm starts an edit form pre-filled from p
func EditProjectForm(p models.Project) ProjectForm {
	return ProjectForm{
		Mode:      ModeEdit,
		EditingID: p.ID,
		Fields: ProjectFields{
			Name:        p.Name,
			Description: p.Description,
			Status:      p.Status,
			DueDate:     p.DueDate,
		},
	}
}

// Title is the editor heading
func (f ProjectForm) Title() string {
	if f.Mode == ModeEdit {
		return "Edit Project"
	}
	return "Add Project"
}

// TaskForm is the pending state of the task editor
type TaskForm struct {
	Mode      Mode
	EditingID string
	Fields    TaskFields
}

// NewTaskForm starts a create form, optionally bound to a project
func NewTaskForm(projectID string) TaskForm {
	return TaskForm{
		Mode: ModeCreate,
		Fields: TaskFields{
			ProjectID: projectID,
			Priority:  models.PriorityMedium,
			Status:    models.TaskTodo,
		},
	}
}

// EditTaskForm starts an edit form pre-filled from t
func EditTaskForm(t models.Task) TaskForm {
	return TaskForm{
		Mode:      ModeEdit,
		EditingID: t.ID,
		Fields: TaskFields{
			Title:       t.Title,
			Description: t.Description,
			ProjectID:   t.ProjectID,
			Priority:    t.Priority,
			Status:      t.Status,
			DueDate:     t.DueDate,
		},
	}
}

func (f TaskForm) Title() string {
	if f.Mode == ModeEdit {
		return "Edit Task"
	}
	return "Add Task"
}

// SaveProject creates or updates depending on the form mode
func (t *Tracker) SaveProject(ctx context.Context, form ProjectForm) (models.Project, error) {
	switch form.Mode {
	case ModeCreate:
		return t.CreateProject(ctx, form.Fields)
	case ModeEdit:
		return t.UpdateProject(ctx, form.EditingID, form.Fields)
	}
	return models.Project{}, fmt.Errorf("save project: unknown form mode %d", form.Mode)
}

// SaveTask creates or updates depending on the form mode
func (t *Tracker) SaveTask(ctx context.Context, form TaskForm) (models.Task, error) {
	switch form.Mode {
	case ModeCreate:
		return t.CreateTask(ctx, form.Fields)
	case ModeEdit:
		return t.UpdateTask(ctx, form.EditingID, form.Fields)
	}
	return models.Task{}, fmt.Errorf("save task: unknown form mode %d", form.Mode)
}
