package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tgienger/projectflow/internal/db"
	"github.com/tgienger/projectflow/internal/models"
	"github.com/tgienger/projectflow/internal/service"
	"github.com/tgienger/projectflow/internal/testutil"
)

func TestProjectFormDispatch(t *testing.T) {
	tr, store := newTracker(t)
	ctx := context.Background()

	form := service.NewProjectForm()
	if form.Mode != service.ModeCreate || form.Title() != "Add Project" {
		t.Errorf("new form = %+v", form)
	}
	form.Fields.Name = "Created via form"
	p, err := tr.SaveProject(ctx, form)
	if err != nil {
		t.Fatalf("SaveProject create: %v", err)
	}

	edit := service.EditProjectForm(p)
	if edit.Mode != service.ModeEdit || edit.EditingID != p.ID || edit.Title() != "Edit Project" {
		t.Errorf("edit form = %+v", edit)
	}
	edit.Fields.Name = "Renamed"
	if _, err := tr.SaveProject(ctx, edit); err != nil {
		t.Fatalf("SaveProject edit: %v", err)
	}

	projects, _ := store.ListProjects(ctx)
	if len(projects) != 1 || projects[0].Name != "Renamed" {
		t.Errorf("projects = %+v, want one renamed project", projects)
	}
}

func TestTaskFormDispatch(t *testing.T) {
	tr, store := newTracker(t)
	ctx := context.Background()

	form := service.NewTaskForm("proj-1")
	form.Fields.Title = "From form"
	task, err := tr.SaveTask(ctx, form)
	if err != nil {
		t.Fatalf("SaveTask create: %v", err)
	}
	if task.ProjectID != "proj-1" || task.Priority != models.PriorityMedium {
		t.Errorf("task = %+v", task)
	}

	edit := service.EditTaskForm(task)
	edit.Fields.Status = models.TaskInProgress
	updated, err := tr.SaveTask(ctx, edit)
	if err != nil {
		t.Fatalf("SaveTask edit: %v", err)
	}
	if updated.ID != task.ID || updated.Status != models.TaskInProgress {
		t.Errorf("updated = %+v", updated)
	}
	if tasks, _ := store.ListTasks(ctx); len(tasks) != 1 {
		t.Errorf("edit created a new task: %d tasks", len(tasks))
	}
}

func TestEditFormForDeletedRecord(t *testing.T) {
	tr, _ := newTracker(t)
	form := service.EditTaskForm(models.Task{ID: "task-gone", Title: "x", ProjectID: "p"})
	if _, err := tr.SaveTask(context.Background(), form); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUnknownFormMode(t *testing.T) {
	tr, _ := newTracker(t)
	if _, err := tr.SaveProject(context.Background(), service.ProjectForm{Mode: service.Mode(9)}); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestTheme(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		stored     string
		systemDark bool
		want       service.Theme
	}{
		{"unset follows light system", "", false, service.ThemeDark},
		{"unset follows dark system", "", true, service.ThemeLight},
		{"explicit dark", "dark", false, service.ThemeLight},
		{"explicit light on dark system", "light", true, service.ThemeDark},
		{"garbage treated as auto", "neon", true, service.ThemeLight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMemStore()
			if tt.stored != "" {
				store.SetSetting(ctx, db.SettingTheme, tt.stored)
			}
			tr := service.New(store, nil, fixedClock, nil)

			got, err := tr.ToggleTheme(ctx, tt.systemDark)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ToggleTheme = %s, want %s", got, tt.want)
			}
			if stored := tr.Theme(ctx); stored != tt.want {
				t.Errorf("stored theme = %s, want %s", stored, tt.want)
			}
		})
	}
}

func TestSetThemeValidates(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	if err := tr.SetTheme(ctx, "sepia"); err == nil {
		t.Error("SetTheme should reject unknown themes")
	}
	if err := tr.SetTheme(ctx, service.ThemeAuto); err != nil {
		t.Fatal(err)
	}
	if got := tr.Theme(ctx); got != service.ThemeAuto {
		t.Errorf("Theme = %s", got)
	}
}

func TestThemeReadFailureFallsBackToAuto(t *testing.T) {
	store := testutil.NewMemStore()
	store.SettingErr = errors.New("boom")
	tr := service.New(store, nil, fixedClock, nil)
	if got := tr.Theme(context.Background()); got != service.ThemeAuto {
		t.Errorf("Theme = %s, want auto", got)
	}
}
