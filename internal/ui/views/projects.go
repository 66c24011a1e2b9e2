package views

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/projectflow/internal/models"
	"github.com/tgienger/projectflow/internal/service"
	"github.com/tgienger/projectflow/internal/ui/styles"
)

type projectItem struct {
	project  models.Project
	progress models.Progress
	today    models.Date
}

func (i projectItem) Title() string       { return i.project.Name }
func (i projectItem) Description() string { return i.project.Description }
func (i projectItem) FilterValue() string { return i.project.Name + " " + i.project.Description }

type projectDelegate struct {
	styles *styles.Styles
	width  int
}

func (d projectDelegate) Height() int                               { return 3 }
func (d projectDelegate) Spacing() int                              { return 1 }
func (d projectDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d projectDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	p, ok := item.(projectItem)
	if !ok {
		return
	}

	selected := index == m.Index()
	width := max(d.width-4, 20)

	base := d.styles.ListItem
	if selected {
		base = d.styles.ListSelected
	}
	titleStyle := base.Width(width)
	lineStyle := base.Foreground(styles.Current.ForegroundDim).Width(width)

	status := styles.ProjectStatus(p.project.Status).Render(p.project.Status.Label())
	due := DueLabel(p.project.DueDate, p.today)
	if p.progress.ProjectOverdue {
		due = d.styles.Overdue.Render(due)
	}
	meta := fmt.Sprintf("%s • %s", status, due)
	if p.progress.Overdue > 0 {
		meta += " • " + d.styles.Overdue.Render(fmt.Sprintf("%d overdue", p.progress.Overdue))
	}

	barWidth := clamp(width-24, 10, 40)
	bar := fmt.Sprintf("%s %3d%% (%d/%d tasks)",
		ProgressBar(d.styles, p.progress.Percent, barWidth),
		p.progress.Percent, p.progress.Completed, p.progress.Total)

	fmt.Fprintf(w, "%s\n%s\n%s",
		titleStyle.Render(truncate(p.project.Name, width-4)),
		lineStyle.Render(meta),
		lineStyle.Render(bar),
	)
}

// SelectedProject asks the app to show the tasks of a project
type SelectedProject struct {
	ID string
}

// ProjectListView lists projects with their progress
type ProjectListView struct {
	env      *Env
	list     list.Model
	delegate *projectDelegate
	width    int
	height   int

	editor *projectEditor

	confirmingDelete bool
	deleteTargetID   string
	deleteTargetName string
	deleteTaskCount  int

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

func NewProjectListView(env *Env) *ProjectListView {
	delegate := &projectDelegate{styles: env.Styles, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Projects"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = env.Styles.Title
	l.SetShowHelp(false)

	v := &ProjectListView{
		env:      env,
		list:     l,
		delegate: delegate,
	}
	v.Refresh()
	return v
}

// Refresh rebuilds the items from the snapshot
func (v *ProjectListView) Refresh() {
	v.list.Styles.Title = v.env.Styles.Title
	if v.env.Snap == nil {
		return
	}
	today := v.env.Today()
	items := make([]list.Item, len(v.env.Snap.Projects))
	for i, p := range v.env.Snap.Projects {
		items[i] = projectItem{project: p, progress: v.env.Snap.Progress(p.ID, today), today: today}
	}
	v.list.SetItems(items)
}

// Busy reports whether the view is capturing keys
func (v *ProjectListView) Busy() bool {
	return v.editor != nil || v.confirmingDelete || v.list.FilterState() == list.Filtering
}

func (v *ProjectListView) Init() tea.Cmd {
	return nil
}

func (v *ProjectListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		// Use content width (capped at MaxWidth) for internal layout
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-8)
		return v, nil

	case ProjectSaved:
		v.editor = nil
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

		if v.list.FilterState() == list.Filtering {
			break
		}

		k := v.env.Keys
		switch {
		case key.Matches(msg, k.New):
			v.editor = newProjectEditor(service.NewProjectForm())
			return v, textinput.Blink
		case key.Matches(msg, k.Help):
			v.showHelpPopup = true
			return v, nil
		case key.Matches(msg, k.Enter):
			if item, ok := v.list.SelectedItem().(projectItem); ok {
				return v, func() tea.Msg {
					return SelectedProject{ID: item.project.ID}
				}
			}
		case key.Matches(msg, k.Edit):
			if item, ok := v.list.SelectedItem().(projectItem); ok {
				v.editor = newProjectEditor(service.EditProjectForm(item.project))
				return v, textinput.Blink
			}
		case key.Matches(msg, k.Delete):
			if item, ok := v.list.SelectedItem().(projectItem); ok {
				v.confirmingDelete = true
				v.deleteTargetID = item.project.ID
				v.deleteTargetName = item.project.Name
				v.deleteTaskCount = item.progress.Total
				return v, nil
			}
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v *ProjectListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		return v, deleteProject(v.env.Tracker, v.deleteTargetID)
	case "n", "N", "esc":
		v.confirmingDelete = false
		return v, nil
	}
	return v, nil
}

func (v *ProjectListView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
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
		return v, saveProject(v.env.Tracker, form)
	}
	return v, cmd
}

// View renders the view
func (v *ProjectListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}

	if v.editor != nil {
		return placeCentered(v.editor.view(v.env.Styles, v.width), v.width, v.height)
	}

	if v.env.Snap == nil {
		return v.env.Styles.TitleMuted.Render("Loading...")
	}

	if len(v.list.Items()) == 0 {
		return v.renderEmpty()
	}

	content := v.list.View() + "\n" + v.renderHelp()
	return styles.CenterView(content, v.width, v.height)
}

func (v *ProjectListView) renderEmpty() string {
	s := v.env.Styles
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Render("No Projects"),
		"",
		s.TitleMuted.Render("Press 'n' to create your first project"),
		"",
		s.ButtonPrimary.Render(" New Project "),
	)
	return placeCentered(content, v.width, v.height)
}

func (v *ProjectListView) renderHelp() string {
	s := v.env.Styles
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 50 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}
	return helpLine(s, "↵", "tasks", "n", "new", "e", "edit", "d", "del", "/", "filter", "q", "quit")
}

func (v *ProjectListView) renderHelpPopup() string {
	s := v.env.Styles

	helpItems := []string{
		s.HelpKey.Render("↵") + "      show tasks",
		s.HelpKey.Render("n") + "      new project",
		s.HelpKey.Render("e") + "      edit project",
		s.HelpKey.Render("d") + "      delete project",
		s.HelpKey.Render("/") + "      filter",
		s.HelpKey.Render("1-5") + "    switch view",
		s.HelpKey.Render("T") + "      toggle theme",
		s.HelpKey.Render("R") + "      reset all data",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)
	return placeCentered(s.FilterBar.Render(content), v.width, v.height)
}

func (v *ProjectListView) renderDeleteConfirm() string {
	s := v.env.Styles

	warning := "This project has no tasks."
	if v.deleteTaskCount > 0 {
		warning = fmt.Sprintf("All %d associated tasks will also be deleted.", v.deleteTaskCount)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Project?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("Are you sure you want to delete %q?", v.deleteTargetName)),
		s.TitleMuted.Render(warning),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)
	return placeCentered(content, v.width, v.height)
}
