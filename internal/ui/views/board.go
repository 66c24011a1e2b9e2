package views

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/projectflow/internal/models"
	"github.com/tgienger/projectflow/internal/service"
	"github.com/tgienger/projectflow/internal/ui/styles"
)

// BoardView is the Kanban board: one column per task status
type BoardView struct {
	env     *Env
	columns map[models.TaskStatus][]models.Task
	project string // "" = all projects

	col    int
	row    int
	width  int
	height int

	editor *taskEditor
}

func NewBoardView(env *Env) *BoardView {
	v := &BoardView{env: env}
	v.Refresh()
	return v
}

// Refresh regroups the snapshot into columns
func (v *BoardView) Refresh() {
	v.columns = make(map[models.TaskStatus][]models.Task)
	if v.env.Snap == nil {
		return
	}
	if v.project != "" {
		if _, ok := v.env.Snap.Project(v.project); !ok {
			v.project = ""
		}
	}
	for status, tasks := range v.env.Snap.TasksByStatus() {
		var kept []models.Task
		for _, t := range tasks {
			if v.project == "" || t.ProjectID == v.project {
				kept = append(kept, t)
			}
		}
		models.SortTasks(kept)
		v.columns[status] = kept
	}
	v.clampRow()
}

func (v *BoardView) Busy() bool {
	return v.editor != nil
}

func (v *BoardView) status() models.TaskStatus {
	return models.TaskStatuses[v.col]
}

func (v *BoardView) clampRow() {
	n := len(v.columns[v.status()])
	if v.row >= n {
		v.row = max(0, n-1)
	}
}

func (v *BoardView) selected() (models.Task, bool) {
	tasks := v.columns[v.status()]
	if v.row < 0 || v.row >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[v.row], true
}

func (v *BoardView) Init() tea.Cmd {
	return nil
}

func (v *BoardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case TaskSaved:
		if !msg.Toggled {
			v.editor = nil
		}
		return v, nil

	case Failed:
		if v.editor != nil {
			v.editor.err = errorText(msg.Err)
		}
		return v, nil

	case tea.KeyMsg:
		if v.editor != nil {
			return v.updateEditing(msg)
		}
		return v.updateNormal(msg)
	}
	return v, nil
}

func (v *BoardView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := v.env.Keys
	switch {
	case key.Matches(msg, k.Left):
		if v.col > 0 {
			v.col--
			v.clampRow()
		}
	case key.Matches(msg, k.Right):
		if v.col < len(models.TaskStatuses)-1 {
			v.col++
			v.clampRow()
		}
	case key.Matches(msg, k.Up):
		if v.row > 0 {
			v.row--
		}
	case key.Matches(msg, k.Down):
		if v.row < len(v.columns[v.status()])-1 {
			v.row++
		}
	case key.Matches(msg, k.Toggle):
		if t, ok := v.selected(); ok {
			return v, toggleTask(v.env.Tracker, t.ID)
		}
	case msg.String() == "<", msg.String() == ">":
		// move the card to the neighbouring column
		t, ok := v.selected()
		if !ok {
			return v, nil
		}
		dir := 1
		if msg.String() == "<" {
			dir = -1
		}
		target := v.col + dir
		if target < 0 || target >= len(models.TaskStatuses) {
			return v, nil
		}
		form := service.EditTaskForm(t)
		form.Fields.Status = models.TaskStatuses[target]
		return v, saveTask(v.env.Tracker, form)
	case key.Matches(msg, k.Enter), key.Matches(msg, k.Edit):
		if t, ok := v.selected(); ok {
			v.editor = newTaskEditor(service.EditTaskForm(t), v.env.Snap.Projects, v.width)
			return v, textinput.Blink
		}
	case key.Matches(msg, k.New):
		projectID := v.project
		if projectID == "" && v.env.Snap != nil && len(v.env.Snap.Projects) > 0 {
			projectID = v.env.Snap.Projects[0].ID
		}
		form := service.NewTaskForm(projectID)
		form.Fields.Status = v.status()
		var projects []models.Project
		if v.env.Snap != nil {
			projects = v.env.Snap.Projects
		}
		v.editor = newTaskEditor(form, projects, v.width)
		return v, textinput.Blink
	case msg.String() == "p":
		var ids []string
		if v.env.Snap != nil {
			for _, p := range v.env.Snap.Projects {
				ids = append(ids, p.ID)
			}
		}
		v.project = cycle(v.project, ids)
		v.row = 0
		v.Refresh()
	}
	return v, nil
}

func (v *BoardView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	res, cmd := v.editor.update(msg, v.env.Keys)
	switch res {
	case editorCancel:
		v.editor = nil
		return v, nil
	case editorSubmit:
		form, err := v.editor.collect()
		if err != nil {
			v.editor.err = err.Error()
			return v, nil
		}
		return v, saveTask(v.env.Tracker, form)
	}
	return v, cmd
}

func (v *BoardView) View() string {
	if v.editor != nil {
		return placeCentered(v.editor.view(v.env.Styles, v.width), v.width, v.height)
	}
	if v.env.Snap == nil {
		return v.env.Styles.TitleMuted.Render("Loading...")
	}

	s := v.env.Styles
	contentWidth := styles.ContentWidth(v.width)
	colWidth := max((contentWidth-6)/3, 14)
	maxCards := max((v.height-10)/2, 1)
	today := v.env.Today()

	var cols []string
	for i, status := range models.TaskStatuses {
		tasks := v.columns[status]
		lines := []string{
			s.ColumnHeader.Render(fmt.Sprintf("%s (%d)", status.Label(), len(tasks))),
		}
		start := 0
		if i == v.col && v.row >= maxCards {
			start = v.row - maxCards + 1
		}
		for j := start; j < len(tasks) && j < start+maxCards; j++ {
			t := tasks[j]
			title := truncate(t.Title, colWidth-4)
			meta := truncate(v.env.Snap.ProjectName(t.ProjectID), colWidth-4)
			style := s.ListItem.Padding(0, 0)
			if t.IsOverdue(today) {
				meta = s.Overdue.Render("overdue")
			}
			if i == v.col && j == v.row {
				style = s.ListSelected.Padding(0, 0)
			}
			lines = append(lines,
				style.Width(colWidth-2).Render(styles.Priority(t.Priority).Render("●")+" "+title),
				s.TitleMuted.Render("  "+meta),
			)
		}
		if len(tasks) == 0 {
			lines = append(lines, s.TitleMuted.Render("empty"))
		}

		col := s.Column.Width(colWidth)
		if i == v.col {
			col = col.BorderForeground(styles.Current.BorderFocus)
		}
		cols = append(cols, col.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	}

	title := "Board • All projects"
	if v.project != "" {
		title = "Board • " + v.env.Snap.ProjectName(v.project)
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(title),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, cols...),
		helpLine(s, "←/→", "column", "</>", "move", "space", "done", "n", "new", "↵", "edit", "p", "project"),
	)
	return styles.CenterView(content, v.width, v.height)
}
