package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tgienger/projectflow/internal/bootstrap"
	"github.com/tgienger/projectflow/internal/db"
)

// isolate points every lookup at fresh temp dirs and clears overrides
func isolate(t *testing.T) Options {
	t.Helper()
	for _, key := range []string{
		"PROJECTFLOW_DATA_DIR", "PROJECTFLOW_STORAGE_DRIVER", "PROJECTFLOW_STORAGE_PATH",
		"PROJECTFLOW_BOOTSTRAP_POLICY", "PROJECTFLOW_BOOTSTRAP_SEED", "PROJECTFLOW_THEME",
		"PROJECTFLOW_LOG_FILE", "PROJECTFLOW_LOG_DEBUG", "PROJECTFLOW_LEGACY_DIR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("XDG_DATA_HOME", filepath.Join(t.TempDir(), "data"))
	return Options{ConfigDir: t.TempDir(), WorkDir: t.TempDir()}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestDefaults(t *testing.T) {
	opts := isolate(t)

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != db.DriverCGo {
		t.Errorf("Driver = %q, want %q", cfg.Storage.Driver, db.DriverCGo)
	}
	if cfg.Storage.BusyTimeout != 5*time.Second {
		t.Errorf("BusyTimeout = %v", cfg.Storage.BusyTimeout)
	}
	if cfg.Policy() != bootstrap.PolicyCount || !cfg.Bootstrap.Seed {
		t.Errorf("bootstrap = %+v", cfg.Bootstrap)
	}
	if cfg.Theme != "auto" {
		t.Errorf("Theme = %q", cfg.Theme)
	}
	if want := filepath.Join(os.Getenv("XDG_DATA_HOME"), AppName, "projectflow.db"); cfg.DBPath() != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath(), want)
	}
	if !strings.HasSuffix(cfg.LegacyDir(), filepath.Join(AppName, "legacy")) {
		t.Errorf("LegacyDir = %q", cfg.LegacyDir())
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want none", cfg.File)
	}
}

func TestFilePrecedence(t *testing.T) {
	opts := isolate(t)
	writeFile(t, filepath.Join(opts.ConfigDir, "config.yaml"), `
theme: dark
storage:
  driver: sqlite
bootstrap:
  policy: marker
`)
	writeFile(t, filepath.Join(opts.WorkDir, ".projectflow.yaml"), `
theme: light
`)

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Theme != "light" {
		t.Errorf("Theme = %q, want the work dir file to win", cfg.Theme)
	}
	if cfg.Storage.Driver != db.DriverPure {
		t.Errorf("Driver = %q, want value kept from the global file", cfg.Storage.Driver)
	}
	if cfg.Policy() != bootstrap.PolicyMarker {
		t.Errorf("Policy = %q", cfg.Policy())
	}
	if cfg.File != filepath.Join(opts.WorkDir, ".projectflow.yaml") {
		t.Errorf("File = %q", cfg.File)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	opts := isolate(t)
	writeFile(t, filepath.Join(opts.ConfigDir, "config.yaml"), "theme: dark\n")
	t.Setenv("PROJECTFLOW_THEME", "light")
	t.Setenv("PROJECTFLOW_STORAGE_BUSY_TIMEOUT", "250ms")
	t.Setenv("PROJECTFLOW_BOOTSTRAP_SEED", "false")

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Theme != "light" {
		t.Errorf("Theme = %q, want env override", cfg.Theme)
	}
	if cfg.Storage.BusyTimeout != 250*time.Millisecond {
		t.Errorf("BusyTimeout = %v", cfg.Storage.BusyTimeout)
	}
	if cfg.Bootstrap.Seed {
		t.Error("Seed should be disabled by env")
	}
}

func TestDotEnv(t *testing.T) {
	opts := isolate(t)
	dataDir := filepath.Join(t.TempDir(), "elsewhere")
	writeFile(t, filepath.Join(opts.WorkDir, ".env"), "PROJECTFLOW_DATA_DIR="+dataDir+"\n")
	t.Cleanup(func() { os.Unsetenv("PROJECTFLOW_DATA_DIR") })

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath() != filepath.Join(dataDir, "projectflow.db") {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
}

func TestExplicitFile(t *testing.T) {
	opts := isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "storage:\n  path: /tmp/pf.db\n")
	opts.File = path

	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath() != "/tmp/pf.db" || cfg.File != path {
		t.Errorf("cfg = %+v", cfg)
	}

	opts.File = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Load(opts); err == nil {
		t.Error("a missing explicit file should be an error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad driver", "storage:\n  driver: postgres\n"},
		{"bad policy", "bootstrap:\n  policy: always\n"},
		{"bad theme", "theme: sepia\n"},
		{"broken yaml", "theme: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := isolate(t)
			writeFile(t, filepath.Join(opts.WorkDir, ".projectflow.yaml"), tt.yaml)
			if _, err := Load(opts); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{}
	logger, closeFn, err := cfg.Logger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Print("hidden")
	closeFn()
	if buf.Len() != 0 {
		t.Errorf("default logger should discard, got %q", buf.String())
	}

	cfg.Log.Debug = true
	logger, _, _ = cfg.Logger(&buf)
	logger.Print("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug logger wrote %q", buf.String())
	}

	cfg.Log.File = filepath.Join(t.TempDir(), "logs", "pf.log")
	logger, closeFn, err = cfg.Logger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Print("to file")
	closeFn()
	data, err := os.ReadFile(cfg.Log.File)
	if err != nil || !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q, %v", data, err)
	}
}
