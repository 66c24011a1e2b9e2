package models

import (
	"math"
	"sort"
	"strings"
)

// UnknownProject is shown for tasks whose project no longer exists
const UnknownProject = "Unknown Project"

// Snapshot is the in-memory copy of both collections that views render from.
// It is refreshed from storage on load and patched after each mutation.
type Snapshot struct {
	Projects []Project `json:"projects" yaml:"projects"`
	Tasks    []Task    `json:"tasks" yaml:"tasks"`
}

// Project returns the project with the given id
func (s *Snapshot) Project(id string) (Project, bool) {
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// Task returns the task with the given id
func (s *Snapshot) Task(id string) (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// ProjectName resolves a project id for display, tolerating orphans
func (s *Snapshot) ProjectName(id string) string {
	if p, ok := s.Project(id); ok {
		return p.Name
	}
	return UnknownProject
}

func (s *Snapshot) TasksForProject(projectID string) []Task {
	var out []Task
	for _, t := range s.Tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out
}

// TasksOn returns tasks due on the given date
func (s *Snapshot) TasksOn(date Date) []Task {
	var out []Task
	for _, t := range s.Tasks {
		if !t.DueDate.IsZero() && t.DueDate == date {
			out = append(out, t)
		}
	}
	return out
}

// TasksByStatus groups tasks into Kanban columns. Every status has an entry.
func (s *Snapshot) TasksByStatus() map[TaskStatus][]Task {
	cols := make(map[TaskStatus][]Task, len(TaskStatuses))
	for _, st := range TaskStatuses {
		cols[st] = nil
	}
	for _, t := range s.Tasks {
		cols[t.Status] = append(cols[t.Status], t)
	}
	return cols
}

// Progress summarizes one project's tasks
type Progress struct {
	Total     int
	Completed int
	Percent   int
	Overdue   int
	// DaysUntilDue is nil when the project has no due date
	DaysUntilDue *int
	// ProjectOverdue is set when the project itself is past due
	ProjectOverdue bool
}

func (s *Snapshot) Progress(projectID string, today Date) Progress {
	var pr Progress
	for _, t := range s.TasksForProject(projectID) {
		pr.Total++
		if t.Status == TaskCompleted {
			pr.Completed++
		}
		if t.IsOverdue(today) {
			pr.Overdue++
		}
	}
	if pr.Total > 0 {
		pr.Percent = int(math.Round(float64(pr.Completed) / float64(pr.Total) * 100))
	}
	if p, ok := s.Project(projectID); ok && !p.DueDate.IsZero() {
		days := today.DaysUntil(p.DueDate)
		pr.DaysUntilDue = &days
		pr.ProjectOverdue = p.IsOverdue(today)
	}
	return pr
}

// Stats are the dashboard counters
type Stats struct {
	TotalProjects  int `json:"totalProjects" yaml:"totalProjects"`
	ActiveTasks    int `json:"activeTasks" yaml:"activeTasks"`
	CompletedTasks int `json:"completedTasks" yaml:"completedTasks"`
	DueToday       int `json:"dueToday" yaml:"dueToday"`
	OverdueTasks   int `json:"overdueTasks" yaml:"overdueTasks"`
}

func (s *Snapshot) Stats(today Date) Stats {
	st := Stats{TotalProjects: len(s.Projects)}
	for _, t := range s.Tasks {
		if t.Status == TaskCompleted {
			st.CompletedTasks++
		} else {
			st.ActiveTasks++
		}
		if t.DueDate == today {
			st.DueToday++
		}
		if t.IsOverdue(today) {
			st.OverdueTasks++
		}
	}
	return st
}

// SearchResult is a project or task matching a query. Exactly one field is set.
type SearchResult struct {
	Project *Project
	Task    *Task
}

// Search matches query case-insensitively against names, titles and descriptions.
// Projects come first. An empty query matches nothing.
func (s *Snapshot) Search(query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []SearchResult
	for i := range s.Projects {
		p := s.Projects[i]
		if contains(p.Name, q) || contains(p.Description, q) {
			out = append(out, SearchResult{Project: &p})
		}
	}
	for i := range s.Tasks {
		t := s.Tasks[i]
		if contains(t.Title, q) || contains(t.Description, q) {
			out = append(out, SearchResult{Task: &t})
		}
	}
	return out
}

func contains(field, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(field), lowerQuery)
}

// TaskFilter selects tasks; empty fields match everything
type TaskFilter struct {
	ProjectID string
	Priority  Priority
	Status    TaskStatus
}

// Filter returns the matching tasks sorted with SortTasks
func (s *Snapshot) Filter(f TaskFilter) []Task {
	var out []Task
	for _, t := range s.Tasks {
		if f.ProjectID != "" && t.ProjectID != f.ProjectID {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	SortTasks(out)
	return out
}

// SortTasks orders by due date (undated last), then by priority, highest first
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case !a.DueDate.IsZero() && !b.DueDate.IsZero():
			if c := a.DueDate.Compare(b.DueDate); c != 0 {
				return c < 0
			}
		case !a.DueDate.IsZero():
			return true
		case !b.DueDate.IsZero():
			return false
		}
		return a.Priority.Rank() > b.Priority.Rank()
	})
}

// Activity is one entry of the dashboard feed
type Activity struct {
	Text string
	When Date
	Kind string // "success" or "info"
}

// Activity returns recent completions and project creations, newest first
func (s *Snapshot) Activity(limit int) []Activity {
	completed := make([]Task, 0)
	for _, t := range s.Tasks {
		if t.Status == TaskCompleted {
			completed = append(completed, t)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].CreatedDate.After(completed[j].CreatedDate)
	})

	projects := append([]Project(nil), s.Projects...)
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedDate.After(projects[j].CreatedDate)
	})

	var out []Activity
	for i, t := range completed {
		if i == 3 {
			break
		}
		out = append(out, Activity{
			Text: `Completed task "` + t.Title + `" in ` + s.ProjectName(t.ProjectID),
			When: t.CreatedDate,
			Kind: "success",
		})
	}
	for i, p := range projects {
		if i == 2 {
			break
		}
		out = append(out, Activity{
			Text: `Created project "` + p.Name + `"`,
			When: p.CreatedDate,
			Kind: "info",
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].When.After(out[j].When)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PutProject inserts or replaces a project in the snapshot
func (s *Snapshot) PutProject(p Project) {
	for i := range s.Projects {
		if s.Projects[i].ID == p.ID {
			s.Projects[i] = p
			return
		}
	}
	s.Projects = append(s.Projects, p)
}

// PutTask inserts or replaces a task in the snapshot
func (s *Snapshot) PutTask(t Task) {
	for i := range s.Tasks {
		if s.Tasks[i].ID == t.ID {
			s.Tasks[i] = t
			return
		}
	}
	s.Tasks = append(s.Tasks, t)
}

func (s *Snapshot) RemoveTask(id string) {
	out := s.Tasks[:0]
	for _, t := range s.Tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	s.Tasks = out
}

// RemoveProject drops the project and every task that referenced it
func (s *Snapshot) RemoveProject(id string) {
	projects := s.Projects[:0]
	for _, p := range s.Projects {
		if p.ID != id {
			projects = append(projects, p)
		}
	}
	s.Projects = projects

	tasks := s.Tasks[:0]
	for _, t := range s.Tasks {
		if t.ProjectID != id {
			tasks = append(tasks, t)
		}
	}
	s.Tasks = tasks
}
