package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	ProjectIDPrefix = "proj-"
	TaskIDPrefix    = "task-"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid record")

// ProjectStatus is the lifecycle state of a project
type ProjectStatus string

const (
	ProjectActive     ProjectStatus = "active"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectOnHold     ProjectStatus = "on-hold"
	ProjectInProgress ProjectStatus = "in-progress"
)

// ProjectStatuses lists every valid project status in display order
var ProjectStatuses = []ProjectStatus{ProjectActive, ProjectInProgress, ProjectOnHold, ProjectCompleted}

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectOnHold, ProjectInProgress:
		return true
	}
	return false
}

// Label is the status with dashes replaced by spaces, e.g. "on hold"
func (s ProjectStatus) Label() string {
	return strings.ReplaceAll(string(s), "-", " ")
}

// TaskStatus is the workflow column of a task
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

// TaskStatuses lists the Kanban columns in order
var TaskStatuses = []TaskStatus{TaskTodo, TaskInProgress, TaskCompleted}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

func (s TaskStatus) Label() string {
	return strings.ReplaceAll(string(s), "-", " ")
}

// Priority of a task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists priorities from highest to lowest
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities: high=3, medium=2, low=1, unknown=0
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Project represents a tracked project
type Project struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Status      ProjectStatus `json:"status" yaml:"status"`
	DueDate     Date          `json:"dueDate" yaml:"dueDate"`
	CreatedDate Date          `json:"createdDate" yaml:"createdDate"`
}

// Task represents a single task belonging to a project
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	ProjectID   string     `json:"projectId" yaml:"projectId"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	Status      TaskStatus `json:"status" yaml:"status"`
	DueDate     Date       `json:"dueDate" yaml:"dueDate"`
	CreatedDate Date       `json:"createdDate" yaml:"createdDate"`
}

// NewProjectID returns a fresh "proj-" identifier
func NewProjectID() string {
	return ProjectIDPrefix + uuid.NewString()
}

// NewTaskID returns a fresh "task-" identifier
func NewTaskID() string {
	return TaskIDPrefix + uuid.NewString()
}

// IsOverdue reports whether the task is past due and not completed
func (t Task) IsOverdue(today Date) bool {
	return !t.DueDate.IsZero() && t.DueDate.Before(today) && t.Status != TaskCompleted
}

// IsOverdue reports whether the project is past due and not completed
func (p Project) IsOverdue(today Date) bool {
	return !p.DueDate.IsZero() && p.DueDate.Before(today) && p.Status != ProjectCompleted
}

// FieldError describes one invalid field
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError collects every invalid field of a record
type ValidationError struct {
	Kind   string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validate checks the boundary constraints of a project
func (p Project) Validate() error {
	verr := &ValidationError{Kind: "project"}
	if strings.TrimSpace(p.ID) == "" {
		verr.add("id", "is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		verr.add("name", "is required")
	}
	if !p.Status.Valid() {
		verr.add("status", fmt.Sprintf("%q is not one of active, completed, on-hold, in-progress", p.Status))
	}
	return verr.orNil()
}

// Validate checks the boundary constraints of a task
func (t Task) Validate() error {
	verr := &ValidationError{Kind: "task"}
	if strings.TrimSpace(t.ID) == "" {
		verr.add("id", "is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		verr.add("title", "is required")
	}
	if strings.TrimSpace(t.ProjectID) == "" {
		verr.add("projectId", "is required")
	}
	if !t.Priority.Valid() {
		verr.add("priority", fmt.Sprintf("%q is not one of low, medium, high", t.Priority))
	}
	if !t.Status.Valid() {
		verr.add("status", fmt.Sprintf("%q is not one of todo, in-progress, completed", t.Status))
	}
	return verr.orNil()
}
