package views

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/projectflow/internal/models"
	"github.com/tgienger/projectflow/internal/service"
	"github.com/tgienger/projectflow/internal/ui/keys"
	"github.com/tgienger/projectflow/internal/ui/styles"
)

// choice is a left/right selector over a fixed option list
type choice struct {
	values []string
	labels []string
	idx    int
}

func newChoice(values, labels []string, current string) choice {
	c := choice{values: values, labels: labels}
	for i, v := range values {
		if v == current {
			c.idx = i
		}
	}
	return c
}

func (c *choice) move(dir int) {
	if len(c.values) == 0 {
		return
	}
	c.idx = (c.idx + dir + len(c.values)) % len(c.values)
}

func (c choice) value() string {
	if len(c.values) == 0 {
		return ""
	}
	return c.values[c.idx]
}

func (c choice) label() string {
	if len(c.labels) == 0 {
		return "(none)"
	}
	return c.labels[c.idx]
}

// editorResult is what a key press did to a form
type editorResult int

const (
	editorContinue editorResult = iota
	editorSubmit
	editorCancel
)

func newDateInput(d models.Date) textinput.Model {
	in := textinput.New()
	in.Placeholder = "YYYY-MM-DD"
	in.CharLimit = 10
	if !d.IsZero() {
		in.SetValue(d.String())
	}
	return in
}

func parseDateInput(in textinput.Model) (models.Date, error) {
	v := strings.TrimSpace(in.Value())
	if v == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(v)
	if err != nil {
		return models.Date{}, fmt.Errorf("due date %q is not a valid YYYY-MM-DD date", v)
	}
	return d, nil
}

// errorText turns a save failure into a short inline message
func errorText(err error) string {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		parts := make([]string, len(verr.Fields))
		for i, f := range verr.Fields {
			parts[i] = f.Field + " " + f.Reason
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}

// projectEditor edits a service.ProjectForm
type projectEditor struct {
	form   service.ProjectForm
	name   textinput.Model
	desc   textinput.Model
	due    textinput.Model
	status choice
	focus  int // 0=name, 1=desc, 2=status, 3=due, 4=save
	err    string
}

const projectEditorFields = 5

func newProjectEditor(form service.ProjectForm) *projectEditor {
	name := textinput.New()
	name.Placeholder = "Project name"
	name.CharLimit = 100
	name.SetValue(form.Fields.Name)

	desc := textinput.New()
	desc.Placeholder = "Description (optional)"
	desc.CharLimit = 500
	desc.SetValue(form.Fields.Description)

	var values, labels []string
	for _, st := range models.ProjectStatuses {
		values = append(values, string(st))
		labels = append(labels, st.Label())
	}

	e := &projectEditor{
		form:   form,
		name:   name,
		desc:   desc,
		due:    newDateInput(form.Fields.DueDate),
		status: newChoice(values, labels, string(form.Fields.Status)),
	}
	e.updateFocus()
	return e
}

func (e *projectEditor) updateFocus() {
	e.name.Blur()
	e.desc.Blur()
	e.due.Blur()
	switch e.focus {
	case 0:
		e.name.Focus()
	case 1:
		e.desc.Focus()
	case 3:
		e.due.Focus()
	}
}

// collect copies the inputs into the form
func (e *projectEditor) collect() (service.ProjectForm, error) {
	due, err := parseDateInput(e.due)
	if err != nil {
		return e.form, err
	}
	form := e.form
	form.Fields = service.ProjectFields{
		Name:        strings.TrimSpace(e.name.Value()),
		Description: strings.TrimSpace(e.desc.Value()),
		Status:      models.ProjectStatus(e.status.value()),
		DueDate:     due,
	}
	if form.Fields.Name == "" {
		return form, errors.New("project name is required")
	}
	return form, nil
}

func (e *projectEditor) update(msg tea.KeyMsg, k keys.KeyMap) (editorResult, tea.Cmd) {
	switch {
	case key.Matches(msg, k.Back):
		return editorCancel, nil
	case key.Matches(msg, k.Save):
		return editorSubmit, nil
	case key.Matches(msg, k.Tab):
		e.focus = (e.focus + 1) % projectEditorFields
		e.updateFocus()
		return editorContinue, nil
	case msg.String() == "shift+tab":
		e.focus = (e.focus + projectEditorFields - 1) % projectEditorFields
		e.updateFocus()
		return editorContinue, nil
	case key.Matches(msg, k.Enter):
		if e.focus == projectEditorFields-1 {
			return editorSubmit, nil
		}
		e.focus++
		e.updateFocus()
		return editorContinue, nil
	}

	if e.focus == 2 {
		switch msg.String() {
		case "left", "h":
			e.status.move(-1)
		case "right", "l", " ":
			e.status.move(1)
		}
		return editorContinue, nil
	}

	var cmd tea.Cmd
	switch e.focus {
	case 0:
		e.name, cmd = e.name.Update(msg)
	case 1:
		e.desc, cmd = e.desc.Update(msg)
	case 3:
		e.due, cmd = e.due.Update(msg)
	}
	return editorContinue, cmd
}

func (e *projectEditor) view(s *styles.Styles, width int) string {
	inputWidth := clamp(styles.ContentWidth(width)-6, 20, 50)
	field := func(idx int) lipgloss.Style {
		if e.focus == idx {
			return s.InputFocused.Width(inputWidth)
		}
		return s.Input.Width(inputWidth)
	}
	btn := s.Button
	if e.focus == 4 {
		btn = s.ButtonFocused
	}

	rows := []string{
		s.Title.Render(e.form.Title()),
		"",
		s.Label.Render("Name:"),
		field(0).Render(e.name.View()),
		s.Label.Render("Description:"),
		field(1).Render(e.desc.View()),
		s.Label.Render("Status:"),
		field(2).Render("◀ " + styles.ProjectStatus(models.ProjectStatus(e.status.value())).Render(e.status.label()) + " ▶"),
		s.Label.Render("Due date:"),
		field(3).Render(e.due.View()),
		"",
		btn.Render(" Save "),
	}
	if e.err != "" {
		rows = append(rows, "", s.ToastError.Render(e.err))
	}
	rows = append(rows, "", s.TitleMuted.Render("Tab: next • ←/→: change • Ctrl+S: save • Esc: cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// taskEditor edits a service.TaskForm
type taskEditor struct {
	form     service.TaskForm
	title    textinput.Model
	desc     textarea.Model
	project  choice
	priority choice
	status   choice
	due      textinput.Model
	focus    int // 0=title, 1=desc, 2=project, 3=priority, 4=status, 5=due, 6=save
	err      string
}

const taskEditorFields = 7

func newTaskEditor(form service.TaskForm, projects []models.Project, width int) *taskEditor {
	title := textinput.New()
	title.Placeholder = "Task title"
	title.CharLimit = 200
	title.SetValue(form.Fields.Title)

	desc := textarea.New()
	desc.Placeholder = "Description"
	desc.CharLimit = 1000
	desc.SetWidth(clamp(styles.ContentWidth(width)-10, 20, 50))
	desc.SetHeight(3)
	desc.ShowLineNumbers = false
	desc.SetValue(form.Fields.Description)

	var pIDs, pNames []string
	for _, p := range projects {
		pIDs = append(pIDs, p.ID)
		pNames = append(pNames, p.Name)
	}
	var prValues, prLabels []string
	for _, p := range models.Priorities {
		prValues = append(prValues, string(p))
		prLabels = append(prLabels, string(p))
	}
	var stValues, stLabels []string
	for _, st := range models.TaskStatuses {
		stValues = append(stValues, string(st))
		stLabels = append(stLabels, st.Label())
	}

	e := &taskEditor{
		form:     form,
		title:    title,
		desc:     desc,
		project:  newChoice(pIDs, pNames, form.Fields.ProjectID),
		priority: newChoice(prValues, prLabels, string(form.Fields.Priority)),
		status:   newChoice(stValues, stLabels, string(form.Fields.Status)),
		due:      newDateInput(form.Fields.DueDate),
	}
	e.updateFocus()
	return e
}

func (e *taskEditor) updateFocus() {
	e.title.Blur()
	e.desc.Blur()
	e.due.Blur()
	switch e.focus {
	case 0:
		e.title.Focus()
	case 1:
		e.desc.Focus()
	case 5:
		e.due.Focus()
	}
}

func (e *taskEditor) collect() (service.TaskForm, error) {
	due, err := parseDateInput(e.due)
	if err != nil {
		return e.form, err
	}
	form := e.form
	form.Fields = service.TaskFields{
		Title:       strings.TrimSpace(e.title.Value()),
		Description: strings.TrimSpace(e.desc.Value()),
		ProjectID:   e.project.value(),
		Priority:    models.Priority(e.priority.value()),
		Status:      models.TaskStatus(e.status.value()),
		DueDate:     due,
	}
	switch {
	case form.Fields.Title == "":
		return form, errors.New("task title is required")
	case form.Fields.ProjectID == "":
		return form, errors.New("create a project first")
	}
	return form, nil
}

func (e *taskEditor) choiceAt(idx int) *choice {
	switch idx {
	case 2:
		return &e.project
	case 3:
		return &e.priority
	case 4:
		return &e.status
	}
	return nil
}

func (e *taskEditor) update(msg tea.KeyMsg, k keys.KeyMap) (editorResult, tea.Cmd) {
	switch {
	case key.Matches(msg, k.Back):
		return editorCancel, nil
	case key.Matches(msg, k.Save):
		return editorSubmit, nil
	case key.Matches(msg, k.Tab):
		e.focus = (e.focus + 1) % taskEditorFields
		e.updateFocus()
		return editorContinue, nil
	case msg.String() == "shift+tab":
		e.focus = (e.focus + taskEditorFields - 1) % taskEditorFields
		e.updateFocus()
		return editorContinue, nil
	case key.Matches(msg, k.Enter):
		// Enter in the description inserts a newline
		if e.focus != 1 {
			if e.focus == taskEditorFields-1 {
				return editorSubmit, nil
			}
			e.focus++
			e.updateFocus()
			return editorContinue, nil
		}
	}

	if c := e.choiceAt(e.focus); c != nil {
		switch msg.String() {
		case "left", "h":
			c.move(-1)
		case "right", "l", " ":
			c.move(1)
		}
		return editorContinue, nil
	}

	var cmd tea.Cmd
	switch e.focus {
	case 0:
		e.title, cmd = e.title.Update(msg)
	case 1:
		e.desc, cmd = e.desc.Update(msg)
	case 5:
		e.due, cmd = e.due.Update(msg)
	}
	return editorContinue, cmd
}

func (e *taskEditor) view(s *styles.Styles, width int) string {
	inputWidth := clamp(styles.ContentWidth(width)-6, 20, 50)
	field := func(idx int) lipgloss.Style {
		if e.focus == idx {
			return s.InputFocused.Width(inputWidth)
		}
		return s.Input.Width(inputWidth)
	}
	btn := s.Button
	if e.focus == 6 {
		btn = s.ButtonFocused
	}
	selector := func(c choice, st lipgloss.Style) string {
		return "◀ " + st.Render(c.label()) + " ▶"
	}

	rows := []string{
		s.Title.Render(e.form.Title()),
		"",
		s.Label.Render("Title:"),
		field(0).Render(e.title.View()),
		s.Label.Render("Description:"),
		field(1).Render(e.desc.View()),
		s.Label.Render("Project:"),
		field(2).Render(selector(e.project, s.Title)),
		lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.JoinVertical(lipgloss.Left, s.Label.Render("Priority:"),
				field(3).Width(inputWidth/2).Render(selector(e.priority, styles.Priority(models.Priority(e.priority.value()))))),
			lipgloss.JoinVertical(lipgloss.Left, s.Label.Render("Status:"),
				field(4).Width(inputWidth/2).Render(selector(e.status, styles.TaskStatus(models.TaskStatus(e.status.value()))))),
		),
		s.Label.Render("Due date:"),
		field(5).Render(e.due.View()),
		"",
		btn.Render(" Save "),
	}
	if e.err != "" {
		rows = append(rows, "", s.ToastError.Render(e.err))
	}
	rows = append(rows, "", s.TitleMuted.Render("Tab: next • ←/→: change • Ctrl+S: save • Esc: cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
