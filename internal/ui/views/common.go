package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tgienger/projectflow/internal/models"
	"github.com/tgienger/projectflow/internal/service"
	"github.com/tgienger/projectflow/internal/ui/keys"
	"github.com/tgienger/projectflow/internal/ui/styles"
)

// Env is shared by every view. The app swaps Snap on reload and patches it
// after each mutation.
type Env struct {
	Tracker *service.Tracker
	Snap    *models.Snapshot
	Styles  *styles.Styles
	Keys    keys.KeyMap
}

// Today is the tracker's current date
func (e *Env) Today() models.Date {
	return e.Tracker.Today()
}

// SnapshotLoaded carries a freshly loaded snapshot
type SnapshotLoaded struct {
	Snap *models.Snapshot
}

// DataReset carries the snapshot taken after the store was reset
type DataReset struct {
	Snap *models.Snapshot
}

// ProjectSaved reports a created or updated project
type ProjectSaved struct {
	Project models.Project
	Mode    service.Mode
}

// ProjectDeleted reports a cascade delete
type ProjectDeleted struct {
	ID    string
	Tasks int
}

// TaskSaved reports a created, updated or toggled task
type TaskSaved struct {
	Task    models.Task
	Mode    service.Mode
	Toggled bool
}

// TaskDeleted reports a deleted task
type TaskDeleted struct {
	ID string
}

// Failed reports a tracker call that returned an error
type Failed struct {
	What string
	Err  error
}

func (f Failed) Error() string {
	return fmt.Sprintf("Failed to %s: %v", f.What, f.Err)
}

// Load reads the snapshot, running the bootstrap first
func Load(tr *service.Tracker) tea.Cmd {
	return func() tea.Msg {
		snap, err := tr.LoadAll(context.Background())
		if err != nil {
			return Failed{What: "load data", Err: err}
		}
		return SnapshotLoaded{Snap: snap}
	}
}

// Reset clears the store and bootstraps it again
func Reset(tr *service.Tracker) tea.Cmd {
	return func() tea.Msg {
		snap, err := tr.Reset(context.Background())
		if err != nil {
			return Failed{What: "reset data", Err: err}
		}
		return DataReset{Snap: snap}
	}
}

func saveProject(tr *service.Tracker, form service.ProjectForm) tea.Cmd {
	return func() tea.Msg {
		p, err := tr.SaveProject(context.Background(), form)
		if err != nil {
			return Failed{What: "save project", Err: err}
		}
		return ProjectSaved{Project: p, Mode: form.Mode}
	}
}

func deleteProject(tr *service.Tracker, id string) tea.Cmd {
	return func() tea.Msg {
		n, err := tr.DeleteProject(context.Background(), id)
		if err != nil {
			return Failed{What: "delete project", Err: err}
		}
		return ProjectDeleted{ID: id, Tasks: n}
	}
}

func saveTask(tr *service.Tracker, form service.TaskForm) tea.Cmd {
	return func() tea.Msg {
		t, err := tr.SaveTask(context.Background(), form)
		if err != nil {
			return Failed{What: "save task", Err: err}
		}
		return TaskSaved{Task: t, Mode: form.Mode}
	}
}

func toggleTask(tr *service.Tracker, id string) tea.Cmd {
	return func() tea.Msg {
		t, err := tr.ToggleTaskStatus(context.Background(), id)
		if err != nil {
			return Failed{What: "update task status", Err: err}
		}
		return TaskSaved{Task: t, Mode: service.ModeEdit, Toggled: true}
	}
}

func deleteTask(tr *service.Tracker, id string) tea.Cmd {
	return func() tea.Msg {
		if err := tr.DeleteTask(context.Background(), id); err != nil {
			return Failed{What: "delete task", Err: err}
		}
		return TaskDeleted{ID: id}
	}
}

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// FormatDate renders a date as "Jul 15, 2025", or "Not set"
func FormatDate(d models.Date) string {
	if d.IsZero() {
		return "Not set"
	}
	return d.Time().Format("Jan 2, 2006")
}

// RelativeDate renders a date relative to now, e.g. "3 days ago"
func RelativeDate(d models.Date, now time.Time) string {
	if d.IsZero() {
		return ""
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, now.Location())
	if models.DateOf(t) == models.DateOf(now) {
		return "today"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// DueLabel describes how far away a due date is
func DueLabel(due, today models.Date) string {
	if due.IsZero() {
		return "no due date"
	}
	days := today.DaysUntil(due)
	switch {
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	case days > 0:
		return fmt.Sprintf("%s days left", humanize.Comma(int64(days)))
	case days == -1:
		return "1 day overdue"
	}
	return fmt.Sprintf("%s days overdue", humanize.Comma(int64(-days)))
}

// ProgressBar draws a bar width cells wide filled to percent
func ProgressBar(s *styles.Styles, percent, width int) string {
	width = max(width, 1)
	filled := clamp(percent, 0, 100) * width / 100
	return s.ProgressFill.Render(strings.Repeat("█", filled)) +
		s.ProgressEmpty.Render(strings.Repeat("░", width-filled))
}

// truncate shortens s to at most n cells
func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 || len(r) <= 1 {
		return string(r[:min(len(r), max(n, 0))])
	}
	for lipgloss.Width(string(r)) > n-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

// helpLine renders "key desc • key desc"
func helpLine(s *styles.Styles, pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, s.HelpKey.Render(pairs[i])+" "+pairs[i+1])
	}
	return s.Help.Render(strings.Join(parts, " • "))
}

// placeCentered centers content within the content width, then the terminal
func placeCentered(content string, width, height int) string {
	contentWidth := styles.ContentWidth(width)
	centered := lipgloss.Place(contentWidth, height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, width, height)
}
