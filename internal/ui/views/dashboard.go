package views

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tgienger/projectflow/internal/models"
	"github.com/tgienger/projectflow/internal/ui/styles"
)

const (
	dashboardProjects = 5
	dashboardActivity = 5
)

// DashboardView summarizes the tracker: counters, project progress, recent
// activity and the tasks due today.
type DashboardView struct {
	env    *Env
	width  int
	height int
	row    int // cursor in the due-today list
}

func NewDashboardView(env *Env) *DashboardView {
	return &DashboardView{env: env}
}

func (v *DashboardView) dueToday() []models.Task {
	if v.env.Snap == nil {
		return nil
	}
	tasks := v.env.Snap.TasksOn(v.env.Today())
	models.SortTasks(tasks)
	return tasks
}

func (v *DashboardView) Refresh() {
	if n := len(v.dueToday()); v.row >= n {
		v.row = max(0, n-1)
	}
}

func (v *DashboardView) Busy() bool { return false }

func (v *DashboardView) Init() tea.Cmd { return nil }

func (v *DashboardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height

	case tea.KeyMsg:
		k := v.env.Keys
		switch {
		case key.Matches(msg, k.Up):
			if v.row > 0 {
				v.row--
			}
		case key.Matches(msg, k.Down):
			if v.row < len(v.dueToday())-1 {
				v.row++
			}
		case key.Matches(msg, k.Toggle):
			if tasks := v.dueToday(); v.row < len(tasks) {
				return v, toggleTask(v.env.Tracker, tasks[v.row].ID)
			}
		}
	}
	return v, nil
}

func (v *DashboardView) View() string {
	s := v.env.Styles
	if v.env.Snap == nil {
		return s.TitleMuted.Render("Loading...")
	}
	today := v.env.Today()
	contentWidth := styles.ContentWidth(v.width)
	st := v.env.Snap.Stats(today)

	cards := []string{
		v.card("Projects", st.TotalProjects, styles.Current.Primary),
		v.card("Active tasks", st.ActiveTasks, styles.Current.Accent),
		v.card("Completed", st.CompletedTasks, styles.Current.Success),
		v.card("Due today", st.DueToday, styles.Current.Warning),
		v.card("Overdue", st.OverdueTasks, styles.Current.Error),
	}
	var statsRow string
	if contentWidth >= 90 {
		statsRow = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	} else {
		statsRow = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.JoinHorizontal(lipgloss.Top, cards[:3]...),
			lipgloss.JoinHorizontal(lipgloss.Top, cards[3:]...),
		)
	}

	half := max(contentWidth/2-2, 30)
	panels := []string{v.renderProgress(today, half), v.renderActivity(today, half)}
	var body string
	if contentWidth >= 80 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, panels...)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, panels...)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Dashboard"),
		s.TitleMuted.Render(today.Time().Format("Monday, January 2, 2006")),
		"",
		statsRow,
		"",
		body,
		"",
		v.renderDueToday(today, contentWidth-4),
		helpLine(s, "1-5", "views", "space", "done", "T", "theme", "R", "reset", "q", "quit"),
	)
	return styles.CenterView(content, v.width, v.height)
}

func (v *DashboardView) card(label string, value int, color lipgloss.Color) string {
	s := v.env.Styles
	return s.Card.Render(lipgloss.JoinVertical(lipgloss.Left,
		s.StatValue.Foreground(color).Render(humanize.Comma(int64(value))),
		s.StatLabel.Render(label),
	))
}

func (v *DashboardView) renderProgress(today models.Date, width int) string {
	s := v.env.Styles
	lines := []string{s.ColumnHeader.Render("Project progress")}
	projects := v.env.Snap.Projects
	if len(projects) == 0 {
		lines = append(lines, s.TitleMuted.Render("No projects yet."))
	}
	for i, p := range projects {
		if i == dashboardProjects {
			lines = append(lines, s.TitleMuted.Render(fmt.Sprintf("and %d more", len(projects)-i)))
			break
		}
		pr := v.env.Snap.Progress(p.ID, today)
		name := truncate(p.Name, width-10)
		if pr.ProjectOverdue {
			name = s.Overdue.Render(name)
		}
		lines = append(lines,
			name,
			fmt.Sprintf("%s %3d%%", ProgressBar(s, pr.Percent, clamp(width-10, 10, 30)), pr.Percent),
		)
	}
	return s.Column.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (v *DashboardView) renderActivity(today models.Date, width int) string {
	s := v.env.Styles
	lines := []string{s.ColumnHeader.Render("Recent activity")}
	items := v.env.Snap.Activity(dashboardActivity)
	if len(items) == 0 {
		lines = append(lines, s.TitleMuted.Render("Nothing yet."))
	}
	// noon keeps humanize from rounding "yesterday" into "now"
	now := today.Time().Add(12 * time.Hour)
	for _, a := range items {
		mark := s.ToastInfo.Padding(0).Render("•")
		if a.Kind == "success" {
			mark = s.ToastSuccess.Padding(0).Render("✓")
		}
		lines = append(lines,
			mark+" "+truncate(a.Text, width-6),
			s.TitleMuted.Render("  "+RelativeDate(a.When, now)),
		)
	}
	return s.Column.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (v *DashboardView) renderDueToday(today models.Date, width int) string {
	s := v.env.Styles
	lines := []string{s.ColumnHeader.Render("Due today")}
	tasks := v.dueToday()
	if len(tasks) == 0 {
		lines = append(lines, s.TitleMuted.Render("Nothing due today."))
	}
	for i, t := range tasks {
		style := s.ListItem
		if i == v.row {
			style = s.ListSelected
		}
		title := t.Title
		if t.Status == models.TaskCompleted {
			title = s.Completed.Render(title)
		}
		lines = append(lines, style.Width(max(width, 20)).Render(fmt.Sprintf("%s %s • %s",
			styles.Priority(t.Priority).Render("●"), title,
			truncate(v.env.Snap.ProjectName(t.ProjectID), 24))))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
