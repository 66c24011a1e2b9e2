package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgienger/projectflow/internal/bootstrap"
	"github.com/tgienger/projectflow/internal/db"
	"github.com/tgienger/projectflow/internal/models"
	"github.com/tgienger/projectflow/internal/service"
	"github.com/tgienger/projectflow/internal/testutil"
	"github.com/tgienger/projectflow/internal/ui/styles"
	"github.com/tgienger/projectflow/internal/ui/views"
)

var fixedClock = models.ClockFunc(func() time.Time {
	return time.Date(2025, time.July, 4, 12, 0, 0, 0, time.Local)
})

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// newLoadedApp builds an app over a seeded MemStore and delivers the
// initial snapshot.
func newLoadedApp(t *testing.T, opts Options) (*App, *service.Tracker, *testutil.MemStore) {
	t.Helper()
	prev := styles.Current
	t.Cleanup(func() { styles.Current = prev })

	store := testutil.NewMemStore()
	tr := service.New(store, nil, fixedClock, nil)
	ctx := context.Background()
	p, err := tr.CreateProject(ctx, service.ProjectFields{Name: "Website", Status: models.ProjectActive})
	if err != nil {
		t.Fatal(err)
	}
	for _, title := range []string{"Design", "Build"} {
		if _, err := tr.CreateTask(ctx, service.TaskFields{Title: title, ProjectID: p.ID}); err != nil {
			t.Fatal(err)
		}
	}

	app := NewApp(tr, opts)
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	msg := app.Init()()
	if _, ok := msg.(views.SnapshotLoaded); !ok {
		t.Fatalf("Init produced %T, want SnapshotLoaded", msg)
	}
	app.Update(msg)
	return app, tr, store
}

// messages runs cmd, following batches, and returns what arrives within a
// second. Toast ticks take longer and are left behind.
func messages(cmd tea.Cmd) []tea.Msg {
	ch := make(chan tea.Msg, 16)
	var run func(tea.Cmd)
	run = func(c tea.Cmd) {
		if c == nil {
			return
		}
		go func() {
			msg := c()
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, sub := range batch {
					run(sub)
				}
				return
			}
			ch <- msg
		}()
	}
	run(cmd)

	var out []tea.Msg
	timeout := time.After(time.Second)
	for {
		select {
		case msg := <-ch:
			out = append(out, msg)
		case <-timeout:
			return out
		}
	}
}

func findSnapshot(msgs []tea.Msg) (views.SnapshotLoaded, bool) {
	for _, msg := range msgs {
		if loaded, ok := msg.(views.SnapshotLoaded); ok {
			return loaded, true
		}
	}
	return views.SnapshotLoaded{}, false
}

func TestSnapshotLoaded(t *testing.T) {
	app, _, _ := newLoadedApp(t, Options{})
	if app.env.Snap == nil {
		t.Fatal("snapshot not set")
	}
	if len(app.env.Snap.Projects) != 1 || len(app.env.Snap.Tasks) != 2 {
		t.Errorf("snapshot = %d projects, %d tasks", len(app.env.Snap.Projects), len(app.env.Snap.Tasks))
	}
	if view := app.View(); !strings.Contains(view, "Dashboard") {
		t.Errorf("initial view does not show the dashboard:\n%s", view)
	}
}

func TestMutationsPatchSnapshot(t *testing.T) {
	app, tr, _ := newLoadedApp(t, Options{})
	ctx := context.Background()
	projectID := app.env.Snap.Projects[0].ID
	taskID := app.env.Snap.Tasks[0].ID

	toggled, err := tr.ToggleTaskStatus(ctx, taskID)
	if err != nil {
		t.Fatal(err)
	}
	app.Update(views.TaskSaved{Task: toggled, Mode: service.ModeEdit, Toggled: true})
	if got, _ := app.env.Snap.Task(taskID); got.Status != models.TaskCompleted {
		t.Errorf("task status = %s, want completed", got.Status)
	}
	if app.toast.text != "Task marked as completed" {
		t.Errorf("toast = %q", app.toast.text)
	}

	n, err := tr.DeleteProject(ctx, projectID)
	if err != nil {
		t.Fatal(err)
	}
	app.Update(views.ProjectDeleted{ID: projectID, Tasks: n})
	if len(app.env.Snap.Projects) != 0 || len(app.env.Snap.Tasks) != 0 {
		t.Errorf("snapshot after cascade = %d projects, %d tasks", len(app.env.Snap.Projects), len(app.env.Snap.Tasks))
	}
	if want := "Project and 2 associated tasks deleted successfully"; app.toast.text != want {
		t.Errorf("toast = %q, want %q", app.toast.text, want)
	}
}

func TestPatchWithoutSnapshot(t *testing.T) {
	app := NewApp(service.New(testutil.NewMemStore(), nil, fixedClock, nil), Options{})
	// must not panic before the first load
	app.Update(views.TaskDeleted{ID: "task-1"})
	if app.env.Snap != nil {
		t.Error("snapshot created by a patch")
	}
}

func TestFailedShowsToast(t *testing.T) {
	app, _, _ := newLoadedApp(t, Options{})
	app.Update(views.Failed{What: "save task", Err: errors.New("disk full")})
	if app.toast.text != "Failed to save task: disk full" || app.toast.kind != toastError {
		t.Errorf("toast = %+v", app.toast)
	}
}

func TestToastExpiry(t *testing.T) {
	app, _, _ := newLoadedApp(t, Options{})
	app.notify("first", toastInfo)
	stale := app.toast.seq
	app.notify("second", toastInfo)

	app.Update(toastExpired{seq: stale})
	if app.toast.text != "second" {
		t.Errorf("stale expiry cleared toast %q", app.toast.text)
	}
	app.Update(toastExpired{seq: app.toast.seq})
	if app.toast.text != "" {
		t.Errorf("toast = %q after expiry", app.toast.text)
	}
}

func TestViewSwitching(t *testing.T) {
	app, _, _ := newLoadedApp(t, Options{})
	tests := []struct {
		key  string
		want View
	}{
		{"2", ViewProjects},
		{"4", ViewBoard},
		{"5", ViewCalendar},
		{"3", ViewTasks},
		{"1", ViewDashboard},
	}
	for _, tt := range tests {
		app.Update(runes(tt.key))
		if app.currentView != tt.want {
			t.Errorf("after %q view = %s, want %s", tt.key, app.currentView, tt.want)
		}
	}
}

func TestBusyViewKeepsKeys(t *testing.T) {
	app, _, _ := newLoadedApp(t, Options{})
	app.Update(runes("2"))
	app.Update(runes("n")) // open the project editor
	if !app.projectList.Busy() {
		t.Fatal("editor did not open")
	}
	app.Update(runes("3"))
	if app.currentView != ViewProjects {
		t.Errorf("view switched to %s while editing", app.currentView)
	}
	app.Update(runes("q"))
	if !app.projectList.Busy() {
		t.Error("q closed the editor")
	}
}

func TestSelectedProjectOpensTasks(t *testing.T) {
	app, _, _ := newLoadedApp(t, Options{})
	id := app.env.Snap.Projects[0].ID
	app.Update(views.SelectedProject{ID: id})
	if app.currentView != ViewTasks {
		t.Fatalf("view = %s, want tasks", app.currentView)
	}
	app.Update(views.BackToProjects{})
	if app.currentView != ViewProjects {
		t.Errorf("view = %s, want projects", app.currentView)
	}
}

func TestToggleTheme(t *testing.T) {
	tests := []struct {
		name       string
		systemDark bool
		want       service.Theme
	}{
		{"dark terminal", true, service.ThemeLight},
		{"light terminal", false, service.ThemeDark},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _, store := newLoadedApp(t, Options{SystemDark: tt.systemDark, Theme: service.ThemeAuto})

			_, cmd := app.Update(runes("T"))
			if cmd == nil {
				t.Fatal("T produced no command")
			}
			app.Update(cmd())

			if styles.Current.Name != string(tt.want) {
				t.Errorf("styles.Current = %s, want %s", styles.Current.Name, tt.want)
			}
			v, _, _ := store.GetSetting(context.Background(), db.SettingTheme)
			if v != string(tt.want) {
				t.Errorf("stored theme = %q, want %q", v, tt.want)
			}
			if want := "Switched to " + string(tt.want) + " theme"; app.toast.text != want {
				t.Errorf("toast = %q, want %q", app.toast.text, want)
			}
		})
	}
}

func TestToggleThemeSaveFailure(t *testing.T) {
	app, _, store := newLoadedApp(t, Options{SystemDark: true})
	store.SettingErr = errors.New("locked")
	before := styles.Current.Name

	_, cmd := app.Update(runes("T"))
	app.Update(cmd())
	if styles.Current.Name != before {
		t.Errorf("theme changed to %s despite save failure", styles.Current.Name)
	}
	if app.toast.kind != toastError {
		t.Errorf("toast = %+v, want error", app.toast)
	}
}

func TestLastViewRemembered(t *testing.T) {
	app, tr, _ := newLoadedApp(t, Options{})
	_, cmd := app.Update(runes("4"))
	if cmd == nil {
		t.Fatal("switching views produced no command")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("save last view: %v", msg)
	}
	last := tr.LastView(context.Background())
	if last != "board" {
		t.Fatalf("LastView = %q, want board", last)
	}

	reopened := NewApp(tr, Options{LastView: last})
	if reopened.currentView != ViewBoard {
		t.Errorf("reopened on %s, want board", reopened.currentView)
	}
	if fresh := NewApp(tr, Options{LastView: "bogus"}); fresh.currentView != ViewDashboard {
		t.Errorf("unknown last view opened %s", fresh.currentView)
	}
}

func TestLoadFailureStaysVisible(t *testing.T) {
	prev := styles.Current
	t.Cleanup(func() { styles.Current = prev })

	store := testutil.NewMemStore()
	store.ListErr = db.ErrStorageUnavailable
	app := NewApp(service.New(store, nil, fixedClock, nil), Options{})
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	msg := app.Init()()
	if _, ok := msg.(views.Failed); !ok {
		t.Fatalf("Init produced %T, want Failed", msg)
	}
	app.Update(msg)
	app.Update(toastExpired{seq: app.toast.seq})

	view := app.View()
	if !strings.Contains(view, "Could not load your data") || !strings.Contains(view, "storage unavailable") {
		t.Errorf("load error not shown after the toast expired:\n%s", view)
	}
	if strings.Contains(view, "Loading...") {
		t.Errorf("view still claims to be loading:\n%s", view)
	}

	// storage comes back and the user retries
	store.ListErr = nil
	_, cmd := app.Update(runes("r"))
	if cmd == nil {
		t.Fatal("r produced no command")
	}
	app.Update(cmd())
	if app.loadErr != nil || app.env.Snap == nil {
		t.Errorf("after retry loadErr = %v, snapshot set %v", app.loadErr, app.env.Snap != nil)
	}
	if strings.Contains(app.View(), "Could not load your data") {
		t.Error("load error still shown after a successful retry")
	}
}

func TestReloadFailureKeepsSnapshot(t *testing.T) {
	app, _, _ := newLoadedApp(t, Options{})
	app.Update(views.Failed{What: "load data", Err: errors.New("busy")})
	if app.loadErr != nil {
		t.Errorf("loadErr = %v with a snapshot on screen", app.loadErr)
	}
	if strings.Contains(app.View(), "Could not load your data") {
		t.Error("error screen replaced a loaded snapshot")
	}
}

func TestFailedDeleteReloads(t *testing.T) {
	tests := []struct {
		what       string
		wantReload bool
	}{
		{"delete project", true},
		{"delete task", true},
		{"save task", false},
	}
	for _, tt := range tests {
		t.Run(tt.what, func(t *testing.T) {
			app, _, store := newLoadedApp(t, Options{})
			// the store dropped one task before the rest of the change failed
			if err := store.DeleteTask(context.Background(), app.env.Snap.Tasks[0].ID); err != nil {
				t.Fatal(err)
			}

			_, cmd := app.Update(views.Failed{What: tt.what, Err: errors.New("locked")})
			loaded, ok := findSnapshot(messages(cmd))
			if ok != tt.wantReload {
				t.Fatalf("reloaded = %v, want %v", ok, tt.wantReload)
			}
			if !ok {
				return
			}
			app.Update(loaded)
			if len(app.env.Snap.Tasks) != 1 {
				t.Errorf("snapshot has %d tasks after reload, want 1", len(app.env.Snap.Tasks))
			}
		})
	}
}

func TestResetFromApp(t *testing.T) {
	prev := styles.Current
	t.Cleanup(func() { styles.Current = prev })

	store := testutil.NewMemStore()
	boot := bootstrap.New(store, nil, bootstrap.Options{Seed: true, Policy: bootstrap.PolicyMarker})
	tr := service.New(store, boot, fixedClock, nil)
	app := NewApp(tr, Options{})
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	app.Update(app.Init()())
	if _, err := tr.CreateProject(context.Background(), service.ProjectFields{Name: "Extra", Status: models.ProjectActive}); err != nil {
		t.Fatal(err)
	}

	app.Update(runes("R"))
	if !app.confirmingReset || !strings.Contains(app.View(), "Reset All Data?") {
		t.Fatal("R did not ask for confirmation")
	}
	app.Update(runes("2"))
	if app.currentView != ViewDashboard {
		t.Errorf("view switched to %s during the confirmation", app.currentView)
	}
	app.Update(runes("n"))
	if app.confirmingReset {
		t.Fatal("n did not cancel")
	}
	if p, _, _ := store.Counts(context.Background()); p != 4 {
		t.Fatalf("cancelled reset changed the store: %d projects", p)
	}

	app.Update(runes("R"))
	_, cmd := app.Update(runes("y"))
	if cmd == nil {
		t.Fatal("y produced no command")
	}
	msg := cmd()
	if _, ok := msg.(views.DataReset); !ok {
		t.Fatalf("reset produced %T, want DataReset", msg)
	}
	app.Update(msg)
	if len(app.env.Snap.Projects) != 3 || len(app.env.Snap.Tasks) != 6 {
		t.Errorf("snapshot after reset = %d/%d, want the sample set", len(app.env.Snap.Projects), len(app.env.Snap.Tasks))
	}
	if want := "Reset complete: 3 projects, 6 tasks"; app.toast.text != want {
		t.Errorf("toast = %q, want %q", app.toast.text, want)
	}
}
