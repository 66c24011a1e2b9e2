package views

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/projectflow/internal/models"
	"github.com/tgienger/projectflow/internal/ui/styles"
)

// CalendarView shows the week around a selected day and the tasks due on it
type CalendarView struct {
	env    *Env
	day    models.Date
	row    int
	width  int
	height int
}

func NewCalendarView(env *Env) *CalendarView {
	return &CalendarView{env: env}
}

func (v *CalendarView) current() models.Date {
	if v.day.IsZero() {
		return v.env.Today()
	}
	return v.day
}

func (v *CalendarView) shift(days int) {
	v.day = models.DateOf(v.current().Time().AddDate(0, 0, days))
	v.row = 0
}

func (v *CalendarView) tasks() []models.Task {
	if v.env.Snap == nil {
		return nil
	}
	tasks := v.env.Snap.TasksOn(v.current())
	models.SortTasks(tasks)
	return tasks
}

// Refresh keeps the cursor within the day's tasks
func (v *CalendarView) Refresh() {
	if n := len(v.tasks()); v.row >= n {
		v.row = max(0, n-1)
	}
}

func (v *CalendarView) Busy() bool { return false }

func (v *CalendarView) Init() tea.Cmd { return nil }

func (v *CalendarView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height

	case tea.KeyMsg:
		k := v.env.Keys
		switch {
		case key.Matches(msg, k.Left):
			v.shift(-1)
		case key.Matches(msg, k.Right):
			v.shift(1)
		case msg.String() == "[":
			v.shift(-7)
		case msg.String() == "]":
			v.shift(7)
		case msg.String() == "t":
			v.day = models.Date{}
			v.row = 0
		case key.Matches(msg, k.Up):
			if v.row > 0 {
				v.row--
			}
		case key.Matches(msg, k.Down):
			if v.row < len(v.tasks())-1 {
				v.row++
			}
		case key.Matches(msg, k.Toggle):
			if tasks := v.tasks(); v.row < len(tasks) {
				return v, toggleTask(v.env.Tracker, tasks[v.row].ID)
			}
		}
	}
	return v, nil
}

func (v *CalendarView) View() string {
	s := v.env.Styles
	if v.env.Snap == nil {
		return s.TitleMuted.Render("Loading...")
	}
	today := v.env.Today()
	day := v.current()

	// week strip, Monday first
	start := day.Time().AddDate(0, 0, -((int(day.Time().Weekday()) + 6) % 7))
	var cells []string
	for i := 0; i < 7; i++ {
		t := start.AddDate(0, 0, i)
		d := models.DateOf(t)
		count := len(v.env.Snap.TasksOn(d))
		label := fmt.Sprintf("%s %2d", t.Format("Mon"), t.Day())
		if count > 0 {
			label += fmt.Sprintf(" •%d", count)
		}
		style := s.Tab
		switch {
		case d == day:
			style = s.TabActive
		case d == today:
			style = s.Tab.Foreground(styles.Current.Accent).Bold(true)
		}
		cells = append(cells, style.Render(label))
	}

	heading := day.Time().Format("Monday, January 2, 2006")
	if day == today {
		heading += " (today)"
	} else {
		heading += " (" + RelativeDate(day, today.Time().Add(12*time.Hour)) + ")"
	}

	lines := []string{
		s.Title.Render("Due dates"),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, cells...),
		"",
		s.ColumnHeader.Render(heading),
	}
	tasks := v.tasks()
	if len(tasks) == 0 {
		lines = append(lines, s.TitleMuted.Render("Nothing due."))
	}
	width := max(styles.ContentWidth(v.width)-4, 20)
	for i, t := range tasks {
		style := s.ListItem
		if i == v.row {
			style = s.ListSelected
		}
		title := t.Title
		if t.Status == models.TaskCompleted {
			title = s.Completed.Render(title)
		} else if t.IsOverdue(today) {
			title = s.Overdue.Render(title)
		}
		lines = append(lines, style.Width(width).Render(fmt.Sprintf("%s %s • %s",
			styles.Priority(t.Priority).Render("●"), title,
			truncate(v.env.Snap.ProjectName(t.ProjectID), 24))))
	}
	lines = append(lines, helpLine(s, "←/→", "day", "[/]", "week", "t", "today", "space", "done"))

	return styles.CenterView(lipgloss.JoinVertical(lipgloss.Left, lines...), v.width, v.height)
}
