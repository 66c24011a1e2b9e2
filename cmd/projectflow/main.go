package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tgienger/projectflow/internal/bootstrap"
	"github.com/tgienger/projectflow/internal/config"
	"github.com/tgienger/projectflow/internal/db"
	"github.com/tgienger/projectflow/internal/legacy"
	"github.com/tgienger/projectflow/internal/service"
	"github.com/tgienger/projectflow/internal/ui"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// flags shared by every command
type rootFlags struct {
	configFile string
	debug      bool
	driver     string
}

// runtime is everything a command needs once config is resolved
type runtime struct {
	cfg      *config.Config
	store    *db.DB
	tracker  *service.Tracker
	logger   *log.Logger
	closeLog func() error
}

func (r *runtime) Close() {
	if err := r.store.Close(); err != nil {
		r.logger.Printf("close store: %v", err)
	}
	r.closeLog()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "projectflow",
		Short:         "Track projects and tasks from the terminal",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/projectflow/config.yaml)")
	pf.BoolVar(&flags.debug, "debug", false, "write debug logs")
	pf.StringVar(&flags.driver, "driver", "", "sqlite driver: sqlite3 (cgo) or sqlite (pure Go)")

	rootCmd.AddCommand(
		projectsCmd(flags),
		tasksCmd(flags),
		dueCmd(flags),
		statsCmd(flags),
		exportCmd(flags),
		resetCmd(flags),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig resolves the config and applies command line overrides
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(config.Options{File: flags.configFile})
	if err != nil {
		return nil, err
	}
	if flags.debug {
		cfg.Log.Debug = true
	}
	if flags.driver != "" {
		cfg.Storage.Driver = flags.driver
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setup wires storage, legacy data, bootstrap and the tracker. In TUI mode
// debug output can't go to the terminal, so it is sent to a file instead.
func setup(cmd *cobra.Command, flags *rootFlags, tui bool) (*runtime, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	var (
		logger   *log.Logger
		closeLog func() error
	)
	if tui && cfg.Log.Debug && cfg.Log.File == "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		f, err := tea.LogToFile(filepath.Join(cfg.DataDir, "debug.log"), "projectflow")
		if err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
		logger, closeLog = log.New(f, "projectflow ", log.LstdFlags), f.Close
	} else {
		logger, closeLog, err = cfg.Logger(cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
	}
	if cfg.File != "" {
		logger.Printf("config: %s", cfg.File)
	}

	store := db.New(db.Options{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.DBPath(),
		BusyTimeout: cfg.Storage.BusyTimeout,
		Logger:      logger,
	})

	var legacyStore legacy.Store
	if fs, err := legacy.NewFileStore(cfg.LegacyDir()); err != nil {
		logger.Printf("legacy store disabled: %v", err)
	} else {
		legacyStore = fs
	}

	boot := bootstrap.New(store, legacyStore, bootstrap.Options{
		Policy: cfg.Policy(),
		Seed:   cfg.Bootstrap.Seed,
		Logger: logger,
	})

	return &runtime{
		cfg:      cfg,
		store:    store,
		tracker:  service.New(store, boot, nil, logger),
		logger:   logger,
		closeLog: closeLog,
	}, nil
}

func runTUI(cmd *cobra.Command, flags *rootFlags) error {
	rt, err := setup(cmd, flags, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// an explicit theme in config wins over the stored preference
	theme, err := service.ParseTheme(rt.cfg.Theme)
	if err != nil {
		return err
	}
	if theme != service.ThemeAuto {
		if err := rt.tracker.SetTheme(ctx, theme); err != nil {
			rt.logger.Printf("apply configured theme: %v", err)
		}
	} else {
		theme = rt.tracker.Theme(ctx)
	}

	app := ui.NewApp(rt.tracker, ui.Options{
		SystemDark: lipgloss.HasDarkBackground(),
		Theme:      theme,
		LastView:   rt.tracker.LastView(ctx),
	})
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running application: %w", err)
	}
	return nil
}
