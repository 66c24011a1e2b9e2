package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/projectflow/internal/models"
	"github.com/tgienger/projectflow/internal/service"
	"github.com/tgienger/projectflow/internal/ui/styles"
)

// FocusArea represents which part of the UI has focus
type FocusArea int

const (
	FocusSearchInput FocusArea = iota
	FocusTaskList
)

// BackToProjects signals to go back to project list
type BackToProjects struct{}

// TaskListView shows every task, filtered and sorted by due date then priority
type TaskListView struct {
	env   *Env
	tasks []models.Task

	width  int
	height int

	// UI state
	focus       FocusArea
	cursor      int
	scrollY     int
	searchInput textinput.Model
	filter      models.TaskFilter

	// fromProject is set when the view was opened from the project list
	fromProject bool

	editor *taskEditor

	// Task view mode (read-only detail view)
	viewingTask bool

	// Delete confirmation
	confirmingDelete bool
	deleteTargetID   string
	deleteTargetName string

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

// NewTaskListView creates a new task list view
func NewTaskListView(env *Env) *TaskListView {
	search := textinput.New()
	search.Placeholder = "Search..."
	search.CharLimit = 100

	v := &TaskListView{
		env:         env,
		focus:       FocusTaskList,
		searchInput: search,
	}
	v.Refresh()
	return v
}

// ShowProject narrows the list to one project
func (v *TaskListView) ShowProject(id string) {
	v.filter = models.TaskFilter{ProjectID: id}
	v.fromProject = true
	v.cursor = 0
	v.scrollY = 0
	v.Refresh()
}

// Refresh re-applies the filters to the snapshot
func (v *TaskListView) Refresh() {
	if v.env.Snap == nil {
		v.tasks = nil
		return
	}
	if v.filter.ProjectID != "" {
		if _, ok := v.env.Snap.Project(v.filter.ProjectID); !ok {
			v.filter.ProjectID = ""
			v.fromProject = false
		}
	}
	tasks := v.env.Snap.Filter(v.filter)

	if q := strings.TrimSpace(v.searchInput.Value()); q != "" {
		hits := make(map[string]bool)
		for _, r := range v.env.Snap.Search(q) {
			if r.Task != nil {
				hits[r.Task.ID] = true
			}
		}
		kept := tasks[:0]
		for _, t := range tasks {
			if hits[t.ID] {
				kept = append(kept, t)
			}
		}
		tasks = kept
	}

	v.tasks = tasks
	if v.cursor >= len(v.tasks) {
		v.cursor = max(0, len(v.tasks)-1)
	}
	if len(v.tasks) == 0 {
		v.viewingTask = false
	}
}

// Busy reports whether the view is capturing keys
func (v *TaskListView) Busy() bool {
	return v.editor != nil || v.confirmingDelete || v.viewingTask || v.focus == FocusSearchInput
}

func (v *TaskListView) selected() (models.Task, bool) {
	if v.cursor < 0 || v.cursor >= len(v.tasks) {
		return models.Task{}, false
	}
	return v.tasks[v.cursor], true
}

// Init initializes the view
func (v *TaskListView) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (v *TaskListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}

		if v.editor != nil {
			return v.updateEditing(msg)
		}

		if v.viewingTask {
			return v.updateViewingTask(msg)
		}

		return v.updateNormal(msg)
	}

	return v, nil
}

func (v *TaskListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := v.env.Keys

	// Handle search input typing first - don't process hotkeys while typing
	if v.focus == FocusSearchInput {
		switch {
		case key.Matches(msg, k.Back), key.Matches(msg, k.Enter):
			v.searchInput.Blur()
			v.focus = FocusTaskList
			return v, nil
		default:
			var cmd tea.Cmd
			v.searchInput, cmd = v.searchInput.Update(msg)
			v.Refresh()
			return v, cmd
		}
	}

	switch {
	case key.Matches(msg, k.Back):
		if v.fromProject {
			v.fromProject = false
			v.filter.ProjectID = ""
			v.Refresh()
			return v, func() tea.Msg { return BackToProjects{} }
		}
		return v, nil

	case key.Matches(msg, k.Up):
		if v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, k.Down):
		if v.cursor < len(v.tasks)-1 {
			v.cursor++
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, k.Enter):
		if _, ok := v.selected(); ok {
			v.viewingTask = true
		}
		return v, nil

	case key.Matches(msg, k.Toggle):
		if t, ok := v.selected(); ok {
			return v, toggleTask(v.env.Tracker, t.ID)
		}
		return v, nil

	case key.Matches(msg, k.Edit):
		if t, ok := v.selected(); ok {
			v.editor = newTaskEditor(service.EditTaskForm(t), v.env.Snap.Projects, v.width)
			return v, textinput.Blink
		}
		return v, nil

	case key.Matches(msg, k.New):
		v.startNewTask()
		return v, textinput.Blink

	case key.Matches(msg, k.Delete):
		if t, ok := v.selected(); ok {
			v.confirmingDelete = true
			v.deleteTargetID = t.ID
			v.deleteTargetName = t.Title
		}
		return v, nil

	case key.Matches(msg, k.Search):
		v.focus = FocusSearchInput
		v.searchInput.Focus()
		return v, textinput.Blink

	case key.Matches(msg, k.Filter):
		v.filter.Priority = models.Priority(cycle(string(v.filter.Priority), priorityValues()))
		v.resetCursor()
		return v, nil

	case msg.String() == "s":
		v.filter.Status = models.TaskStatus(cycle(string(v.filter.Status), statusValues()))
		v.resetCursor()
		return v, nil

	case msg.String() == "p":
		v.filter.ProjectID = cycle(v.filter.ProjectID, v.projectIDs())
		v.fromProject = false
		v.resetCursor()
		return v, nil

	case msg.String() == "c":
		v.filter = models.TaskFilter{}
		v.fromProject = false
		v.searchInput.Reset()
		v.resetCursor()
		return v, nil

	case key.Matches(msg, k.Help):
		v.showHelpPopup = true
		return v, nil
	}

	return v, nil
}

func (v *TaskListView) resetCursor() {
	v.cursor = 0
	v.scrollY = 0
	v.Refresh()
}

// cycle steps through "" followed by options
func cycle(current string, options []string) string {
	all := append([]string{""}, options...)
	for i, o := range all {
		if o == current {
			return all[(i+1)%len(all)]
		}
	}
	return ""
}

func priorityValues() []string {
	out := make([]string, len(models.Priorities))
	for i, p := range models.Priorities {
		out[i] = string(p)
	}
	return out
}

func statusValues() []string {
	out := make([]string, len(models.TaskStatuses))
	for i, s := range models.TaskStatuses {
		out[i] = string(s)
	}
	return out
}

func (v *TaskListView) projectIDs() []string {
	if v.env.Snap == nil {
		return nil
	}
	out := make([]string, len(v.env.Snap.Projects))
	for i, p := range v.env.Snap.Projects {
		out[i] = p.ID
	}
	return out
}

func (v *TaskListView) startNewTask() {
	projectID := v.filter.ProjectID
	if projectID == "" && v.env.Snap != nil && len(v.env.Snap.Projects) > 0 {
		projectID = v.env.Snap.Projects[0].ID
	}
	var projects []models.Project
	if v.env.Snap != nil {
		projects = v.env.Snap.Projects
	}
	v.editor = newTaskEditor(service.NewTaskForm(projectID), projects, v.width)
}

func (v *TaskListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		v.viewingTask = false
		return v, deleteTask(v.env.Tracker, v.deleteTargetID)
	case "n", "N", "esc":
		v.confirmingDelete = false
		return v, nil
	}
	return v, nil
}

func (v *TaskListView) updateViewingTask(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := v.env.Keys
	t, ok := v.selected()
	if !ok {
		v.viewingTask = false
		return v, nil
	}
	switch {
	case key.Matches(msg, k.Back), key.Matches(msg, k.Enter):
		v.viewingTask = false
	case key.Matches(msg, k.Toggle):
		return v, toggleTask(v.env.Tracker, t.ID)
	case key.Matches(msg, k.Edit):
		v.editor = newTaskEditor(service.EditTaskForm(t), v.env.Snap.Projects, v.width)
		return v, textinput.Blink
	case key.Matches(msg, k.Delete):
		v.confirmingDelete = true
		v.deleteTargetID = t.ID
		v.deleteTargetName = t.Title
	}
	return v, nil
}

func (v *TaskListView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
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
		v.editor.err = ""
		return v, saveTask(v.env.Tracker, form)
	}
	return v, cmd
}

func (v *TaskListView) visibleItems() int {
	// Each task item is 2 lines + 1 margin = 3 lines
	availableHeight := max(v.height-12, 3)
	return max(availableHeight/3, 1)
}

func (v *TaskListView) ensureVisible() {
	visible := v.visibleItems()
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	} else if v.cursor >= v.scrollY+visible {
		v.scrollY = v.cursor - visible + 1
	}
}

// View renders the view
func (v *TaskListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}

	if v.editor != nil {
		return placeCentered(v.editor.view(v.env.Styles, v.width), v.width, v.height)
	}

	if v.viewingTask {
		return v.renderTaskView()
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(v.renderTaskList())
	b.WriteString("\n")
	b.WriteString(v.renderHelp())

	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TaskListView) renderHeader() string {
	s := v.env.Styles
	contentWidth := styles.ContentWidth(v.width)

	searchStyle := s.Input
	if v.focus == FocusSearchInput {
		searchStyle = s.InputFocused
	}
	searchBox := searchStyle.Width(clamp(contentWidth-8, 10, 30)).Render(v.searchInput.View())

	project := "All projects"
	title := "Tasks"
	if v.filter.ProjectID != "" && v.env.Snap != nil {
		project = v.env.Snap.ProjectName(v.filter.ProjectID)
		title = project
	}
	status := "any status"
	if v.filter.Status != "" {
		status = v.filter.Status.Label()
	}
	priority := "any priority"
	if v.filter.Priority != "" {
		priority = string(v.filter.Priority) + " priority"
	}
	filters := s.TitleMuted.Render(fmt.Sprintf("%s • %s • %s • %d shown",
		truncate(project, 24), status, priority, len(v.tasks)))

	return lipgloss.JoinVertical(lipgloss.Left, s.Title.Render(title), searchBox, filters)
}

func (v *TaskListView) renderTaskList() string {
	s := v.env.Styles

	if len(v.tasks) == 0 {
		return s.TitleMuted.Render("No tasks. Press 'n' to create one.")
	}

	var items []string
	endIdx := min(v.scrollY+v.visibleItems(), len(v.tasks))
	for i := v.scrollY; i < endIdx; i++ {
		items = append(items, v.renderTaskItem(v.tasks[i], i == v.cursor && v.focus == FocusTaskList))
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *TaskListView) renderTaskItem(task models.Task, selected bool) string {
	s := v.env.Styles
	width := max(styles.ContentWidth(v.width)-4, 20)
	today := v.env.Today()

	check := "[ ]"
	titleText := task.Title
	if task.Status == models.TaskCompleted {
		check = "[✓]"
		titleText = s.Completed.Render(task.Title)
	}
	badge := "-"
	if task.Priority != "" {
		badge = strings.ToUpper(string(task.Priority)[:1])
	}
	titleLine := fmt.Sprintf("%s %s %s", check, styles.Priority(task.Priority).Render(badge), titleText)

	due := DueLabel(task.DueDate, today)
	if task.IsOverdue(today) {
		due = s.Overdue.Render(due)
	}
	meta := fmt.Sprintf("%s • %s • %s",
		truncate(v.env.Snap.ProjectName(task.ProjectID), 24),
		styles.TaskStatus(task.Status).Render(task.Status.Label()),
		due)

	base := s.ListItem
	if selected {
		base = s.ListSelected
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		base.Width(width).Render(titleLine),
		base.Foreground(styles.Current.ForegroundDim).Width(width).Render(meta),
	) + "\n"
}

func (v *TaskListView) renderHelp() string {
	s := v.env.Styles
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 60 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}
	return helpLine(s, "space", "done", "n", "new", "e", "edit", "d", "del", "/", "search", "s/f/p", "filter", "c", "clear")
}

func (v *TaskListView) renderHelpPopup() string {
	s := v.env.Styles

	helpItems := []string{
		s.HelpKey.Render("↑/↓") + "    navigate",
		s.HelpKey.Render("↵") + "      view task",
		s.HelpKey.Render("space") + "  toggle completed",
		s.HelpKey.Render("n") + "      new task",
		s.HelpKey.Render("e") + "      edit task",
		s.HelpKey.Render("d") + "      delete task",
		s.HelpKey.Render("/") + "      search",
		s.HelpKey.Render("s") + "      cycle status filter",
		s.HelpKey.Render("f") + "      cycle priority filter",
		s.HelpKey.Render("p") + "      cycle project filter",
		s.HelpKey.Render("c") + "      clear filters",
		s.HelpKey.Render("esc") + "    back to projects",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)
	return placeCentered(s.FilterBar.Render(content), v.width, v.height)
}

func (v *TaskListView) renderDeleteConfirm() string {
	s := v.env.Styles
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Task?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("Are you sure you want to delete %q?", v.deleteTargetName)),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)
	return placeCentered(content, v.width, v.height)
}

func (v *TaskListView) renderTaskView() string {
	s := v.env.Styles
	t, _ := v.selected()
	today := v.env.Today()
	contentWidth := styles.ContentWidth(v.width)

	due := FormatDate(t.DueDate)
	if !t.DueDate.IsZero() {
		label := DueLabel(t.DueDate, today)
		if t.IsOverdue(today) {
			label = s.Overdue.Render(label)
		}
		due += " (" + label + ")"
	}
	desc := t.Description
	if desc == "" {
		desc = s.TitleMuted.Render("No description")
	}

	row := func(label, value string) string {
		return s.Label.Render(fmt.Sprintf("%-10s", label)) + value
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(t.Title),
		"",
		row("Project", v.env.Snap.ProjectName(t.ProjectID)),
		row("Status", styles.TaskStatus(t.Status).Render(t.Status.Label())),
		row("Priority", styles.Priority(t.Priority).Render(string(t.Priority))),
		row("Due", due),
		row("Created", FormatDate(t.CreatedDate)),
		"",
		lipgloss.NewStyle().Width(clamp(contentWidth-6, 20, 70)).Render(desc),
		"",
		helpLine(s, "space", "toggle", "e", "edit", "d", "delete", "esc", "back"),
	)
	return styles.CenterView(s.Card.Render(content), v.width, v.height)
}
