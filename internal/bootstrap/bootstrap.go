// Package bootstrap prepares the store on startup: it migrates the legacy flat
// storage into the database, or seeds sample data, when the store is new.
package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/tgienger/projectflow/internal/db"
	"github.com/tgienger/projectflow/internal/legacy"
	"github.com/tgienger/projectflow/internal/models"
)

// Store is the part of the storage engine the bootstrap needs
type Store interface {
	Counts(ctx context.Context) (projects, tasks int, err error)
	BulkAddProjects(ctx context.Context, projects []models.Project) (db.BatchResult, error)
	BulkAddTasks(ctx context.Context, tasks []models.Task) (db.BatchResult, error)
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Policy decides when the store counts as new
type Policy string

const (
	// PolicyCount treats an empty store as new, so emptying it reseeds on next start
	PolicyCount Policy = "count"
	// PolicyMarker bootstraps once and records that in the settings table
	PolicyMarker Policy = "marker"
)

// ParsePolicy accepts "count" or "marker"; empty means PolicyCount
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyCount:
		return PolicyCount, nil
	case PolicyMarker:
		return PolicyMarker, nil
	}
	return "", fmt.Errorf("unknown bootstrap policy %q (want count or marker)", s)
}

// State of the store when bootstrap starts
type State int

const (
	StateFresh State = iota
	StateLegacyPresent
	StatePopulated
	// StateMigrationPending means an earlier migration stopped part way and
	// the legacy data still has to be finished
	StateMigrationPending
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateLegacyPresent:
		return "legacy-present"
	case StatePopulated:
		return "populated"
	case StateMigrationPending:
		return "migration-pending"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Action taken by a bootstrap run
type Action int

const (
	ActionNone Action = iota
	ActionMigrated
	ActionSeeded
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionMigrated:
		return "migrated"
	case ActionSeeded:
		return "seeded"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Outcome reports what a run did
type Outcome struct {
	State  State
	Action Action

	// Projects and Tasks hold the per-record results of the bulk inserts
	Projects db.BatchResult
	Tasks    db.BatchResult

	// LegacyErased is set once the legacy keys were removed after a clean migration
	LegacyErased  bool
	ThemeImported bool
}

// MigrationError means the legacy data was not fully migrated. The legacy
// keys are kept and the next run resumes the migration.
type MigrationError struct {
	Err error
}

func (e *MigrationError) Error() string {
	return "legacy migration incomplete, legacy data kept: " + e.Err.Error()
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Options configure a Service
type Options struct {
	Policy Policy
	// Seed enables the sample data on first run
	Seed   bool
	Logger *log.Logger
}

// Service runs the startup decision
type Service struct {
	store  Store
	legacy legacy.Store
	opts   Options
	logger *log.Logger
}

// New creates a Service. legacyStore may be nil when there is no legacy data source.
func New(store Store, legacyStore legacy.Store, opts Options) *Service {
	if opts.Policy == "" {
		opts.Policy = PolicyCount
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{store: store, legacy: legacyStore, opts: opts, logger: logger}
}

// Detect reports whether the store needs bootstrapping, without changing anything
func (s *Service) Detect(ctx context.Context) (State, error) {
	_, pending, err := s.store.GetSetting(ctx, db.SettingMigrationPending)
	if err != nil {
		return StateFresh, fmt.Errorf("read migration marker: %w", err)
	}
	if pending {
		return StateMigrationPending, nil
	}

	if s.opts.Policy == PolicyMarker {
		_, marked, err := s.store.GetSetting(ctx, db.SettingInitialized)
		if err != nil {
			return StateFresh, fmt.Errorf("read bootstrap marker: %w", err)
		}
		if marked {
			return StatePopulated, nil
		}
	}

	projects, tasks, err := s.store.Counts(ctx)
	if err != nil {
		return StateFresh, fmt.Errorf("count records: %w", err)
	}
	if projects > 0 || tasks > 0 {
		return StatePopulated, nil
	}

	if s.legacy != nil {
		for _, key := range []string{legacy.ProjectsKey, legacy.TasksKey} {
			_, ok, err := s.legacy.Get(key)
			if err != nil {
				return StateFresh, fmt.Errorf("read legacy %s: %w", key, err)
			}
			if ok {
				return StateLegacyPresent, nil
			}
		}
	}
	return StateFresh, nil
}

// Run migrates or seeds a new store, finishes an incomplete migration, and
// does nothing on a populated one. A *MigrationError is not fatal: whatever was inserted stays, and the
// legacy data is left in place.
func (s *Service) Run(ctx context.Context) (Outcome, error) {
	state, err := s.Detect(ctx)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{State: state}

	switch state {
	case StatePopulated:
		return out, s.mark(ctx)

	case StateLegacyPresent, StateMigrationPending:
		resume := state == StateMigrationPending
		if s.legacy == nil {
			return out, &MigrationError{Err: errors.New("legacy storage is not available")}
		}
		migrated, err := s.migrate(ctx, &out, resume)
		if err != nil {
			return out, err
		}
		out.Action = ActionMigrated
		s.logger.Printf("bootstrap: migrated %d records from legacy storage", migrated)
		if migrated > 0 || resume {
			return out, s.mark(ctx)
		}
		// legacy blobs were empty arrays; fall through to seeding
	}

	if !s.opts.Seed {
		s.logger.Printf("bootstrap: store is empty and seeding is disabled")
		return out, s.mark(ctx)
	}
	if err := s.seed(ctx, &out); err != nil {
		return out, err
	}
	out.Action = ActionSeeded
	return out, s.mark(ctx)
}

// migrate copies the legacy blobs into the store and erases them only if
// every record went in. When resuming, records an earlier run already
// inserted come back as duplicates and count as present.
func (s *Service) migrate(ctx context.Context, out *Outcome, resume bool) (int, error) {
	var errs []error

	projects, err := readBlob[models.Project](s.legacy, legacy.ProjectsKey)
	if err != nil {
		errs = append(errs, err)
	}
	tasks, err := readBlob[models.Task](s.legacy, legacy.TasksKey)
	if err != nil {
		errs = append(errs, err)
	}

	if len(projects) > 0 {
		res, err := s.store.BulkAddProjects(ctx, projects)
		out.Projects = res
		if err != nil && !(resume && onlyDuplicates(res)) {
			errs = append(errs, err)
		}
	}
	if len(tasks) > 0 {
		res, err := s.store.BulkAddTasks(ctx, tasks)
		out.Tasks = res
		if err != nil && !(resume && onlyDuplicates(res)) {
			errs = append(errs, err)
		}
	}
	migrated := len(out.Projects.Succeeded()) + len(out.Tasks.Succeeded())

	if len(errs) > 0 {
		s.logger.Printf("bootstrap: legacy migration incomplete (%d records in), keeping legacy keys", migrated)
		if err := s.store.SetSetting(ctx, db.SettingMigrationPending, "1"); err != nil {
			errs = append(errs, fmt.Errorf("write migration marker: %w", err))
		}
		return migrated, &MigrationError{Err: errors.Join(errs...)}
	}

	for _, key := range []string{legacy.ProjectsKey, legacy.TasksKey} {
		if err := s.legacy.Remove(key); err != nil {
			return migrated, fmt.Errorf("erase legacy %s: %w", key, err)
		}
	}
	out.LegacyErased = true
	if resume {
		if err := s.store.DeleteSetting(ctx, db.SettingMigrationPending); err != nil {
			return migrated, fmt.Errorf("clear migration marker: %w", err)
		}
	}

	imported, err := s.importTheme(ctx)
	if err != nil {
		// the records are safe; a lost theme preference only costs a toggle
		s.logger.Printf("bootstrap: theme import failed: %v", err)
	}
	out.ThemeImported = imported
	return migrated, nil
}

// onlyDuplicates reports whether every failed record already exists
func onlyDuplicates(res db.BatchResult) bool {
	for _, o := range res.Failed() {
		if !errors.Is(o.Err, db.ErrDuplicateKey) {
			return false
		}
	}
	return true
}

// readBlob decodes one legacy collection. A missing key yields no records.
func readBlob[T any](store legacy.Store, key string) ([]T, error) {
	raw, ok, err := store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("read legacy %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	var records []T
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode legacy %s: %w", key, err)
	}
	return records, nil
}

func (s *Service) importTheme(ctx context.Context) (bool, error) {
	theme, ok, err := s.legacy.Get(legacy.ThemeKey)
	if err != nil || !ok {
		return false, err
	}
	if err := s.store.SetSetting(ctx, db.SettingTheme, theme); err != nil {
		return false, err
	}
	return true, s.legacy.Remove(legacy.ThemeKey)
}

func (s *Service) seed(ctx context.Context, out *Outcome) error {
	res, err := s.store.BulkAddProjects(ctx, SampleProjects())
	out.Projects = res
	if err != nil {
		return fmt.Errorf("seed projects: %w", err)
	}
	res, err = s.store.BulkAddTasks(ctx, SampleTasks())
	out.Tasks = res
	if err != nil {
		return fmt.Errorf("seed tasks: %w", err)
	}
	s.logger.Printf("bootstrap: loaded sample data")
	return nil
}

func (s *Service) mark(ctx context.Context) error {
	if s.opts.Policy != PolicyMarker {
		return nil
	}
	if err := s.store.SetSetting(ctx, db.SettingInitialized, "1"); err != nil {
		return fmt.Errorf("write bootstrap marker: %w", err)
	}
	return nil
}
