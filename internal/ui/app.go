package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/projectflow/internal/service"
	"github.com/tgienger/projectflow/internal/ui/keys"
	"github.com/tgienger/projectflow/internal/ui/styles"
	"github.com/tgienger/projectflow/internal/ui/views"
)

// Currently active view
type View int

const (
	ViewDashboard View = iota
	ViewProjects
	ViewTasks
	ViewBoard
	ViewCalendar
)

var viewNames = []string{"Dashboard", "Projects", "Tasks", "Board", "Due dates"}

// viewKeys are stored in the last_view setting
var viewKeys = []string{"dashboard", "projects", "tasks", "board", "due"}

func viewForKey(k string) (View, bool) {
	for i, name := range viewKeys {
		if name == k {
			return View(i), true
		}
	}
	return ViewDashboard, false
}

func (v View) String() string {
	if int(v) < len(viewNames) {
		return viewNames[v]
	}
	return "View(" + fmt.Sprint(int(v)) + ")"
}

const toastDuration = 3 * time.Second

type toastKind int

const (
	toastSuccess toastKind = iota
	toastError
	toastInfo
)

type toast struct {
	text string
	kind toastKind
	seq  int
}

type toastExpired struct{ seq int }

type themeChanged struct {
	theme service.Theme
	err   error
}

// page is implemented by every view
type page interface {
	tea.Model
	Refresh()
	Busy() bool
}

// Options tune the app at startup
type Options struct {
	// SystemDark resolves the auto theme
	SystemDark bool
	// Theme is the stored preference
	Theme service.Theme
	// LastView reopens the view the previous session ended on
	LastView string
}

type App struct {
	env         *views.Env
	opts        Options
	currentView View

	dashboard   *views.DashboardView
	projectList *views.ProjectListView
	taskList    *views.TaskListView
	board       *views.BoardView
	calendar    *views.CalendarView

	toast  toast
	width  int
	height int

	// loadErr is set when the first load failed and there is no snapshot
	loadErr         error
	confirmingReset bool
}

// Creates a new application
func NewApp(tracker *service.Tracker, opts Options) *App {
	applyTheme(opts.Theme.Resolve(opts.SystemDark))
	env := &views.Env{
		Tracker: tracker,
		Styles:  styles.NewStyles(),
		Keys:    keys.DefaultKeyMap(),
	}
	start, _ := viewForKey(opts.LastView)
	return &App{
		env:         env,
		opts:        opts,
		currentView: start,
		dashboard:   views.NewDashboardView(env),
		projectList: views.NewProjectListView(env),
		taskList:    views.NewTaskListView(env),
		board:       views.NewBoardView(env),
		calendar:    views.NewCalendarView(env),
	}
}

func applyTheme(th service.Theme) {
	styles.Current = styles.ForName(string(th))
}

func (a *App) pages() []page {
	return []page{a.dashboard, a.projectList, a.taskList, a.board, a.calendar}
}

func (a *App) page() page {
	return a.pages()[a.currentView]
}

func (a *App) refresh() {
	for _, p := range a.pages() {
		p.Refresh()
	}
}

// patch applies a mutation to the loaded snapshot and refreshes the views.
// Without a snapshot (the initial load failed) there is nothing to patch.
func (a *App) patch(fn func()) {
	if a.env.Snap == nil {
		return
	}
	fn()
	a.refresh()
}

func (a *App) Init() tea.Cmd {
	return views.Load(a.env.Tracker)
}

func (a *App) notify(text string, kind toastKind) tea.Cmd {
	seq := a.toast.seq + 1
	a.toast = toast{text: text, kind: kind, seq: seq}
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpired{seq: seq}
	})
}

func (a *App) toggleTheme() tea.Cmd {
	tr, dark := a.env.Tracker, a.opts.SystemDark
	return func() tea.Msg {
		th, err := tr.ToggleTheme(context.Background(), dark)
		return themeChanged{theme: th, err: err}
	}
}

// show switches the current view and remembers it for the next session
func (a *App) show(v View) tea.Cmd {
	if v == a.currentView {
		return nil
	}
	a.currentView = v
	tr, name := a.env.Tracker, viewKeys[v]
	return func() tea.Msg {
		if err := tr.SetLastView(context.Background(), name); err != nil {
			return views.Failed{What: "save last view", Err: err}
		}
		return nil
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// every view keeps its size; two lines go to the tab bar and status line
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: max(msg.Height-2, 1)}
		for _, p := range a.pages() {
			p.Update(inner)
		}
		return a, nil

	case toastExpired:
		if msg.seq == a.toast.seq {
			a.toast.text = ""
		}
		return a, nil

	case views.SnapshotLoaded:
		a.env.Snap = msg.Snap
		a.loadErr = nil
		a.refresh()
		return a, nil

	case views.DataReset:
		a.env.Snap = msg.Snap
		a.loadErr = nil
		a.refresh()
		text := fmt.Sprintf("Reset complete: %d projects, %d tasks", len(msg.Snap.Projects), len(msg.Snap.Tasks))
		return a, a.notify(text, toastSuccess)

	case views.ProjectSaved:
		a.patch(func() { a.env.Snap.PutProject(msg.Project) })
		text := "Project updated successfully"
		if msg.Mode == service.ModeCreate {
			text = "Project created successfully"
		}
		_, cmd := a.page().Update(msg)
		return a, tea.Batch(cmd, a.notify(text, toastSuccess))

	case views.ProjectDeleted:
		a.patch(func() { a.env.Snap.RemoveProject(msg.ID) })
		return a, a.notify(fmt.Sprintf("Project and %d associated tasks deleted successfully", msg.Tasks), toastSuccess)

	case views.TaskSaved:
		a.patch(func() { a.env.Snap.PutTask(msg.Task) })
		var text string
		switch {
		case msg.Toggled:
			text = fmt.Sprintf("Task marked as %s", strings.ToLower(msg.Task.Status.Label()))
		case msg.Mode == service.ModeCreate:
			text = "Task created successfully"
		default:
			text = "Task updated successfully"
		}
		_, cmd := a.page().Update(msg)
		return a, tea.Batch(cmd, a.notify(text, toastSuccess))

	case views.TaskDeleted:
		a.patch(func() { a.env.Snap.RemoveTask(msg.ID) })
		return a, a.notify("Task deleted successfully", toastSuccess)

	case views.Failed:
		_, cmd := a.page().Update(msg)
		cmds := []tea.Cmd{cmd, a.notify(msg.Error(), toastError)}
		switch msg.What {
		case "load data":
			if a.env.Snap == nil {
				a.loadErr = msg.Err
			}
		case "delete project", "delete task", "reset data":
			// part of the change may have been applied; show what the store holds
			cmds = append(cmds, views.Load(a.env.Tracker))
		}
		return a, tea.Batch(cmds...)

	case themeChanged:
		if msg.err != nil {
			return a, a.notify("Failed to save theme: "+msg.err.Error(), toastError)
		}
		a.opts.Theme = msg.theme
		applyTheme(msg.theme)
		*a.env.Styles = *styles.NewStyles()
		a.refresh()
		return a, a.notify(fmt.Sprintf("Switched to %s theme", msg.theme), toastInfo)

	case views.SelectedProject:
		a.taskList.ShowProject(msg.ID)
		return a, a.show(ViewTasks)

	case views.BackToProjects:
		return a, a.show(ViewProjects)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a, tea.Quit
		}
		if a.confirmingReset {
			return a, a.updateConfirmReset(msg)
		}
		if a.loadErr != nil && key.Matches(msg, a.env.Keys.Retry) {
			a.loadErr = nil
			return a, views.Load(a.env.Tracker)
		}
		if !a.page().Busy() {
			if cmd, handled := a.globalKey(msg); handled {
				return a, cmd
			}
		}
	}

	_, cmd := a.page().Update(msg)
	return a, cmd
}

// globalKey handles keys that apply to every view
func (a *App) globalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	k := a.env.Keys
	switch {
	case key.Matches(msg, k.Quit):
		return tea.Quit, true
	case key.Matches(msg, k.Theme):
		return a.toggleTheme(), true
	case key.Matches(msg, k.Reset):
		a.confirmingReset = true
		return nil, true
	case key.Matches(msg, k.Dashboard):
		return a.show(ViewDashboard), true
	case key.Matches(msg, k.Projects):
		return a.show(ViewProjects), true
	case key.Matches(msg, k.Tasks):
		return a.show(ViewTasks), true
	case key.Matches(msg, k.Board):
		return a.show(ViewBoard), true
	case key.Matches(msg, k.Calendar):
		return a.show(ViewCalendar), true
	}
	return nil, false
}

func (a *App) updateConfirmReset(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y":
		a.confirmingReset = false
		return views.Reset(a.env.Tracker)
	case "n", "N", "esc":
		a.confirmingReset = false
	}
	return nil
}

func (a *App) View() string {
	body := a.page().View()
	switch {
	case a.confirmingReset:
		body = a.renderResetConfirm()
	case a.loadErr != nil && a.env.Snap == nil:
		body = a.renderLoadError()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderTabs(),
		body,
		a.renderStatus(),
	)
}

func (a *App) center(content string) string {
	return lipgloss.Place(a.width, max(a.height-2, 1), lipgloss.Center, lipgloss.Center, content)
}

func (a *App) renderLoadError() string {
	s := a.env.Styles
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Could not load your data"),
		"",
		s.TitleMuted.Render(a.loadErr.Error()),
		"",
		s.Help.Render("r retry • q quit"),
	)
	return a.center(content)
}

func (a *App) renderResetConfirm() string {
	s := a.env.Styles
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Reset All Data?"),
		"",
		s.TitleMuted.Render("Every project and task will be deleted and first-start setup runs again."),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)
	return a.center(content)
}

func (a *App) renderTabs() string {
	s := a.env.Styles
	tabs := make([]string, len(viewNames))
	for i, name := range viewNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if View(i) == a.currentView {
			tabs[i] = s.TabActive.Render(label)
		} else {
			tabs[i] = s.Tab.Render(label)
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	return lipgloss.PlaceHorizontal(a.width, lipgloss.Center, bar)
}

func (a *App) renderStatus() string {
	if a.toast.text == "" {
		return ""
	}
	s := a.env.Styles
	style := s.ToastSuccess
	switch a.toast.kind {
	case toastError:
		style = s.ToastError
	case toastInfo:
		style = s.ToastInfo
	}
	return lipgloss.PlaceHorizontal(a.width, lipgloss.Center, style.Render(a.toast.text))
}
