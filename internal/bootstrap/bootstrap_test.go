package bootstrap_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tgienger/projectflow/internal/bootstrap"
	"github.com/tgienger/projectflow/internal/db"
	"github.com/tgienger/projectflow/internal/legacy"
	"github.com/tgienger/projectflow/internal/models"
	"github.com/tgienger/projectflow/internal/testutil"
)

func newDB(t *testing.T) *db.DB {
	t.Helper()
	store := db.New(db.Options{Path: filepath.Join(t.TempDir(), "bootstrap.db")})
	if err := store.Open(context.Background()); err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func legacyProjects(n int) []models.Project {
	var out []models.Project
	for i := 0; i < n; i++ {
		out = append(out, models.Project{
			ID:          "proj-legacy-" + string(rune('a'+i)),
			Name:        "Legacy project",
			Status:      models.ProjectActive,
			CreatedDate: models.MustParseDate("2024-01-01"),
		})
	}
	return out
}

func legacyTasks(n int, projectID string) []models.Task {
	var out []models.Task
	for i := 0; i < n; i++ {
		out = append(out, models.Task{
			ID:        "task-legacy-" + string(rune('a'+i)),
			Title:     "Legacy task",
			ProjectID: projectID,
			Priority:  models.PriorityLow,
			Status:    models.TaskTodo,
		})
	}
	return out
}

func counts(t *testing.T, store bootstrap.Store) (int, int) {
	t.Helper()
	p, tk, err := store.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	return p, tk
}

func TestSeedsEmptyStore(t *testing.T) {
	store := newDB(t)
	svc := bootstrap.New(store, testutil.NewFakeLegacy(), bootstrap.Options{Seed: true})

	out, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.State != bootstrap.StateFresh || out.Action != bootstrap.ActionSeeded {
		t.Errorf("outcome = %s/%s, want fresh/seeded", out.State, out.Action)
	}
	p, tk := counts(t, store)
	if p != len(bootstrap.SampleProjects()) || tk != len(bootstrap.SampleTasks()) {
		t.Errorf("counts = %d/%d, want %d/%d", p, tk, len(bootstrap.SampleProjects()), len(bootstrap.SampleTasks()))
	}
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	for _, policy := range []bootstrap.Policy{bootstrap.PolicyCount, bootstrap.PolicyMarker} {
		t.Run(string(policy), func(t *testing.T) {
			store := newDB(t)
			svc := bootstrap.New(store, testutil.NewFakeLegacy(), bootstrap.Options{Seed: true, Policy: policy})
			ctx := context.Background()

			if _, err := svc.Run(ctx); err != nil {
				t.Fatal(err)
			}
			out, err := svc.Run(ctx)
			if err != nil {
				t.Fatalf("second Run: %v", err)
			}
			if out.State != bootstrap.StatePopulated || out.Action != bootstrap.ActionNone {
				t.Errorf("second run = %s/%s, want populated/none", out.State, out.Action)
			}
			p, tk := counts(t, store)
			if p != 3 || tk != 6 {
				t.Errorf("counts after two runs = %d/%d, want 3/6", p, tk)
			}
		})
	}
}

func TestMigratesLegacyData(t *testing.T) {
	store := newDB(t)
	dir := filepath.Join(t.TempDir(), "legacy")
	files, _ := legacy.NewFileStore(dir)

	fake := testutil.NewFakeLegacy()
	fake.SetJSON(t, legacy.ProjectsKey, legacyProjects(2))
	fake.SetJSON(t, legacy.TasksKey, legacyTasks(5, "proj-legacy-a"))
	for _, key := range []string{legacy.ProjectsKey, legacy.TasksKey} {
		v, _, _ := fake.Get(key)
		files.Set(key, v)
	}
	files.Set(legacy.ThemeKey, "dark")

	svc := bootstrap.New(store, files, bootstrap.Options{Seed: true})
	out, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.State != bootstrap.StateLegacyPresent || out.Action != bootstrap.ActionMigrated {
		t.Errorf("outcome = %s/%s, want legacy-present/migrated", out.State, out.Action)
	}
	if !out.LegacyErased || !out.ThemeImported {
		t.Errorf("LegacyErased=%v ThemeImported=%v, want both", out.LegacyErased, out.ThemeImported)
	}

	p, tk := counts(t, store)
	if p != 2 || tk != 5 {
		t.Errorf("counts = %d/%d, want 2/5", p, tk)
	}
	for _, key := range []string{legacy.ProjectsKey, legacy.TasksKey, legacy.ThemeKey} {
		if _, ok, _ := files.Get(key); ok {
			t.Errorf("legacy key %s should be erased", key)
		}
	}
	if theme, ok, _ := store.GetSetting(context.Background(), db.SettingTheme); !ok || theme != "dark" {
		t.Errorf("theme = %q, %v", theme, ok)
	}
}

func TestMigrationOnlyProjects(t *testing.T) {
	store := testutil.NewMemStore()
	fake := testutil.NewFakeLegacy()
	fake.SetJSON(t, legacy.ProjectsKey, legacyProjects(3))

	out, err := bootstrap.New(store, fake, bootstrap.Options{Seed: true}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Action != bootstrap.ActionMigrated {
		t.Errorf("Action = %s", out.Action)
	}
	if p, tk := counts(t, store); p != 3 || tk != 0 {
		t.Errorf("counts = %d/%d, want 3/0", p, tk)
	}
}

func TestPartialMigrationKeepsLegacyKeys(t *testing.T) {
	store := testutil.NewMemStore()
	store.FailIDs["task-legacy-b"] = errors.New("quota exceeded")

	fake := testutil.NewFakeLegacy()
	fake.SetJSON(t, legacy.ProjectsKey, legacyProjects(1))
	fake.SetJSON(t, legacy.TasksKey, legacyTasks(3, "proj-legacy-a"))

	svc := bootstrap.New(store, fake, bootstrap.Options{Seed: true})
	out, err := svc.Run(context.Background())

	var migErr *bootstrap.MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("Run err = %v, want *MigrationError", err)
	}
	if !errors.Is(err, db.ErrPartialBulkFailure) {
		t.Errorf("MigrationError should wrap ErrPartialBulkFailure: %v", err)
	}
	if out.LegacyErased {
		t.Error("LegacyErased must be false after a partial failure")
	}
	if !fake.Has(legacy.ProjectsKey) || !fake.Has(legacy.TasksKey) {
		t.Error("legacy keys must be kept after a partial failure")
	}
	if failed := out.Tasks.Failed(); len(failed) != 1 || failed[0].ID != "task-legacy-b" {
		t.Errorf("failed tasks = %+v", failed)
	}

	// applied records are not rolled back and nothing was seeded on top
	if p, tk := counts(t, store); p != 1 || tk != 2 {
		t.Errorf("counts = %d/%d, want 1/2", p, tk)
	}
}

func TestPartialMigrationResumes(t *testing.T) {
	for _, policy := range []bootstrap.Policy{bootstrap.PolicyCount, bootstrap.PolicyMarker} {
		t.Run(string(policy), func(t *testing.T) {
			store := testutil.NewMemStore()
			store.FailIDs["task-legacy-b"] = errors.New("quota exceeded")

			fake := testutil.NewFakeLegacy()
			fake.SetJSON(t, legacy.ProjectsKey, legacyProjects(1))
			fake.SetJSON(t, legacy.TasksKey, legacyTasks(3, "proj-legacy-a"))
			fake.Set(legacy.ThemeKey, "light")

			svc := bootstrap.New(store, fake, bootstrap.Options{Seed: true, Policy: policy})
			ctx := context.Background()
			if _, err := svc.Run(ctx); err == nil {
				t.Fatal("first run should report the failed task")
			}
			if state, _ := svc.Detect(ctx); state != bootstrap.StateMigrationPending {
				t.Fatalf("Detect after partial migration = %s, want migration-pending", state)
			}

			// the quota is freed before the next start
			delete(store.FailIDs, "task-legacy-b")
			out, err := svc.Run(ctx)
			if err != nil {
				t.Fatalf("resumed run: %v", err)
			}
			if out.State != bootstrap.StateMigrationPending || out.Action != bootstrap.ActionMigrated {
				t.Errorf("outcome = %s/%s, want migration-pending/migrated", out.State, out.Action)
			}
			if got := out.Tasks.Succeeded(); len(got) != 1 || got[0] != "task-legacy-b" {
				t.Errorf("newly inserted tasks = %v, want [task-legacy-b]", got)
			}
			if p, tk := counts(t, store); p != 1 || tk != 3 {
				t.Errorf("counts = %d/%d, want 1/3", p, tk)
			}
			if !out.LegacyErased || fake.Has(legacy.ProjectsKey) || fake.Has(legacy.TasksKey) {
				t.Error("legacy keys should be erased once every record is present")
			}
			if theme, ok, _ := store.GetSetting(ctx, db.SettingTheme); !ok || theme != "light" {
				t.Errorf("theme = %q, %v", theme, ok)
			}

			// settled: a third start leaves the store alone
			out, err = svc.Run(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if out.State != bootstrap.StatePopulated || out.Action != bootstrap.ActionNone {
				t.Errorf("third run = %s/%s, want populated/none", out.State, out.Action)
			}
		})
	}
}

func TestResumeStillFailing(t *testing.T) {
	store := testutil.NewMemStore()
	store.FailIDs["task-legacy-b"] = errors.New("quota exceeded")

	fake := testutil.NewFakeLegacy()
	fake.SetJSON(t, legacy.ProjectsKey, legacyProjects(1))
	fake.SetJSON(t, legacy.TasksKey, legacyTasks(2, "proj-legacy-a"))

	svc := bootstrap.New(store, fake, bootstrap.Options{Seed: true})
	ctx := context.Background()
	svc.Run(ctx)

	_, err := svc.Run(ctx)
	var migErr *bootstrap.MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("second run err = %v, want *MigrationError", err)
	}
	if !fake.Has(legacy.TasksKey) {
		t.Error("legacy keys must be kept while a record is still missing")
	}
	if state, _ := svc.Detect(ctx); state != bootstrap.StateMigrationPending {
		t.Errorf("Detect = %s, want migration-pending", state)
	}
}

func TestResumeWithoutLegacyStore(t *testing.T) {
	store := testutil.NewMemStore()
	ctx := context.Background()
	store.SetSetting(ctx, db.SettingMigrationPending, "1")

	_, err := bootstrap.New(store, nil, bootstrap.Options{Seed: true}).Run(ctx)
	var migErr *bootstrap.MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("Run err = %v, want *MigrationError", err)
	}
	if p, tk := counts(t, store); p != 0 || tk != 0 {
		t.Errorf("counts = %d/%d, want nothing seeded over a pending migration", p, tk)
	}
}

func TestUndecodableLegacyBlob(t *testing.T) {
	store := testutil.NewMemStore()
	fake := testutil.NewFakeLegacy()
	fake.Set(legacy.ProjectsKey, "{not json")
	fake.SetJSON(t, legacy.TasksKey, legacyTasks(1, "proj-x"))

	svc := bootstrap.New(store, fake, bootstrap.Options{Seed: true})
	_, err := svc.Run(context.Background())

	var migErr *bootstrap.MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("Run err = %v, want *MigrationError", err)
	}
	if !fake.Has(legacy.ProjectsKey) || !fake.Has(legacy.TasksKey) {
		t.Error("legacy keys must be kept when a blob cannot be decoded")
	}
	// the decodable collection still went in, and sample data was not mixed in
	if p, tk := counts(t, store); p != 0 || tk != 1 {
		t.Errorf("counts = %d/%d, want 0/1", p, tk)
	}
}

func TestFailedMigrationIsRetried(t *testing.T) {
	store := testutil.NewMemStore()
	fake := testutil.NewFakeLegacy()
	fake.Set(legacy.ProjectsKey, "garbage")

	svc := bootstrap.New(store, fake, bootstrap.Options{Seed: true})
	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected migration error")
	}

	// the store is still empty, so the next start tries again
	fake.SetJSON(t, legacy.ProjectsKey, legacyProjects(2))
	out, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if out.Action != bootstrap.ActionMigrated || !out.LegacyErased {
		t.Errorf("retry outcome = %+v", out)
	}
}

func TestEmptyLegacyArraysFallBackToSeed(t *testing.T) {
	store := testutil.NewMemStore()
	fake := testutil.NewFakeLegacy()
	fake.Set(legacy.ProjectsKey, "[]")
	fake.Set(legacy.TasksKey, "[]")

	out, err := bootstrap.New(store, fake, bootstrap.Options{Seed: true}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != bootstrap.ActionSeeded || !out.LegacyErased {
		t.Errorf("outcome = %s, erased %v; want seeded, erased", out.Action, out.LegacyErased)
	}
	if p, _ := counts(t, store); p != 3 {
		t.Errorf("projects = %d, want 3 sample projects", p)
	}
}

func TestPopulatedStoreIsUntouched(t *testing.T) {
	store := testutil.NewMemStore()
	store.AddTask(context.Background(), models.Task{ID: "task-x", Title: "x", ProjectID: "proj-gone", Priority: models.PriorityLow, Status: models.TaskTodo})
	store.Calls = nil

	fake := testutil.NewFakeLegacy()
	fake.SetJSON(t, legacy.ProjectsKey, legacyProjects(2))

	out, err := bootstrap.New(store, fake, bootstrap.Options{Seed: true}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.State != bootstrap.StatePopulated || out.Action != bootstrap.ActionNone {
		t.Errorf("outcome = %s/%s", out.State, out.Action)
	}
	if len(store.Calls) != 0 {
		t.Errorf("populated store was modified: %v", store.Calls)
	}
	if !fake.Has(legacy.ProjectsKey) {
		t.Error("legacy data must not be touched when the store is populated")
	}
}

func TestEmptiedStorePolicies(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		policy     bootstrap.Policy
		wantAction bootstrap.Action
		wantCount  int
	}{
		{bootstrap.PolicyCount, bootstrap.ActionSeeded, 3},
		{bootstrap.PolicyMarker, bootstrap.ActionNone, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			store := newDB(t)
			svc := bootstrap.New(store, nil, bootstrap.Options{Seed: true, Policy: tt.policy})
			if _, err := svc.Run(ctx); err != nil {
				t.Fatal(err)
			}

			// the user deletes everything
			if err := store.Clear(ctx); err != nil {
				t.Fatal(err)
			}

			out, err := svc.Run(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if out.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s", out.Action, tt.wantAction)
			}
			if p, _ := counts(t, store); p != tt.wantCount {
				t.Errorf("projects = %d, want %d", p, tt.wantCount)
			}
		})
	}
}

func TestMarkerPolicyAdoptsExistingStore(t *testing.T) {
	store := testutil.NewMemStore()
	ctx := context.Background()
	store.AddProject(ctx, models.Project{ID: "proj-1", Name: "x", Status: models.ProjectActive})

	svc := bootstrap.New(store, nil, bootstrap.Options{Seed: true, Policy: bootstrap.PolicyMarker})
	if _, err := svc.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.GetSetting(ctx, db.SettingInitialized); !ok {
		t.Error("marker should be written for a store that already had data")
	}
}

func TestSeedDisabled(t *testing.T) {
	store := testutil.NewMemStore()
	out, err := bootstrap.New(store, nil, bootstrap.Options{Seed: false}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != bootstrap.ActionNone {
		t.Errorf("Action = %s, want none", out.Action)
	}
	if p, tk := counts(t, store); p != 0 || tk != 0 {
		t.Errorf("counts = %d/%d, want empty", p, tk)
	}
}

func TestDetectErrors(t *testing.T) {
	store := testutil.NewMemStore()
	store.CountsErr = db.ErrStorageUnavailable
	if _, err := bootstrap.New(store, nil, bootstrap.Options{}).Run(context.Background()); !errors.Is(err, db.ErrStorageUnavailable) {
		t.Errorf("Run err = %v, want ErrStorageUnavailable", err)
	}

	fake := testutil.NewFakeLegacy()
	fake.GetErr = errors.New("permission denied")
	if _, err := bootstrap.New(testutil.NewMemStore(), fake, bootstrap.Options{}).Detect(context.Background()); err == nil {
		t.Error("Detect should surface legacy read errors")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    bootstrap.Policy
		wantErr bool
	}{
		{"", bootstrap.PolicyCount, false},
		{"count", bootstrap.PolicyCount, false},
		{"marker", bootstrap.PolicyMarker, false},
		{"always", "", true},
	}
	for _, tt := range tests {
		got, err := bootstrap.ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestSampleDataIsValid(t *testing.T) {
	projects := map[string]bool{}
	for _, p := range bootstrap.SampleProjects() {
		if err := p.Validate(); err != nil {
			t.Errorf("sample project %s: %v", p.ID, err)
		}
		projects[p.ID] = true
	}
	for _, task := range bootstrap.SampleTasks() {
		if err := task.Validate(); err != nil {
			t.Errorf("sample task %s: %v", task.ID, err)
		}
		if !projects[task.ProjectID] {
			t.Errorf("sample task %s references unknown project %s", task.ID, task.ProjectID)
		}
	}
}
