// Package config loads projectflow settings from config files, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tgienger/projectflow/internal/bootstrap"
	"github.com/tgienger/projectflow/internal/db"
	"github.com/tgienger/projectflow/internal/service"
)

const (
	// AppName is the directory name under the XDG config and data homes
	AppName = "projectflow"

	// EnvPrefix prefixes environment overrides, e.g. PROJECTFLOW_STORAGE_DRIVER
	EnvPrefix = "PROJECTFLOW"

	dbFile     = "projectflow.db"
	legacyDir  = "legacy"
	configName = "config"
	localName  = ".projectflow"
)

// Config holds the resolved settings
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Legacy    LegacyConfig    `mapstructure:"legacy"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Theme     string          `mapstructure:"theme"`
	Log       LogConfig       `mapstructure:"log"`

	// File is the config file that was read, empty if none
	File string `mapstructure:"-"`
}

type StorageConfig struct {
	// Driver is "sqlite3" (cgo) or "sqlite" (pure Go)
	Driver      string        `mapstructure:"driver"`
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

type LegacyConfig struct {
	// Dir holds the flat key files of the previous storage format
	Dir string `mapstructure:"dir"`
}

type BootstrapConfig struct {
	Policy string `mapstructure:"policy"`
	Seed   bool   `mapstructure:"seed"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Debug bool   `mapstructure:"debug"`
}

// Options control where Load looks
type Options struct {
	// File is an explicit config file; when set the search path is skipped
	File string
	// ConfigDir overrides the XDG config directory
	ConfigDir string
	// WorkDir is searched for .projectflow.yaml and .env; defaults to the cwd
	WorkDir string
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/projectflow or ~/.config/projectflow
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultDataDir returns $XDG_DATA_HOME/projectflow or ~/.local/share/projectflow
func DefaultDataDir() string {
	path, err := db.DefaultPath()
	if err != nil {
		return AppName
	}
	return filepath.Dir(path)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("storage.driver", db.DriverCGo)
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.busy_timeout", 5*time.Second)
	v.SetDefault("legacy.dir", "")
	v.SetDefault("bootstrap.policy", string(bootstrap.PolicyCount))
	v.SetDefault("bootstrap.seed", true)
	v.SetDefault("theme", string(service.ThemeAuto))
	v.SetDefault("log.file", "")
	v.SetDefault("log.debug", false)
}

// Load resolves the configuration. Precedence, highest first: environment,
// .env in the work dir, ./.projectflow.yaml, the XDG config file, defaults.
func Load(opts Options) (*Config, error) {
	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		workDir = wd
	}

	// godotenv never overrides variables that are already set
	if err := godotenv.Load(filepath.Join(workDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	var file string
	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
		file = opts.File
	} else {
		configDir := opts.ConfigDir
		if configDir == "" {
			configDir = DefaultConfigDir()
		}
		for _, candidate := range []string{
			filepath.Join(configDir, configName+".yaml"),
			filepath.Join(workDir, localName+".yaml"),
		} {
			ok, err := mergeFile(v, candidate)
			if err != nil {
				return nil, err
			}
			if ok {
				file = candidate
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = file
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile merges path into v, reporting false if it does not exist
func mergeFile(v *viper.Viper, path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	if err := v.MergeConfig(f); err != nil {
		return false, fmt.Errorf("read config %s: %w", path, err)
	}
	return true, nil
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case db.DriverCGo, db.DriverPure:
	default:
		return fmt.Errorf("storage.driver %q: want %s or %s", c.Storage.Driver, db.DriverCGo, db.DriverPure)
	}
	if _, err := bootstrap.ParsePolicy(c.Bootstrap.Policy); err != nil {
		return fmt.Errorf("bootstrap.policy: %w", err)
	}
	if _, err := service.ParseTheme(c.Theme); err != nil {
		return fmt.Errorf("theme: %w", err)
	}
	return nil
}

// DBPath is storage.path, or projectflow.db under the data dir
func (c *Config) DBPath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.DataDir, dbFile)
}

// LegacyDir is legacy.dir, or legacy/ under the data dir
func (c *Config) LegacyDir() string {
	if c.Legacy.Dir != "" {
		return c.Legacy.Dir
	}
	return filepath.Join(c.DataDir, legacyDir)
}

// Policy returns the parsed bootstrap policy
func (c *Config) Policy() bootstrap.Policy {
	p, err := bootstrap.ParsePolicy(c.Bootstrap.Policy)
	if err != nil {
		return bootstrap.PolicyCount
	}
	return p
}

// Logger opens the configured log destination. With no log file the logger
// discards everything unless debug is set, in which case it writes to w.
// The returned close func is never nil.
func (c *Config) Logger(w io.Writer) (*log.Logger, func() error, error) {
	noop := func() error { return nil }
	if c.Log.File == "" {
		if c.Log.Debug {
			return log.New(w, "projectflow: ", log.LstdFlags), noop, nil
		}
		return log.New(io.Discard, "", 0), noop, nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Log.File), 0755); err != nil {
		return nil, noop, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(c.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, noop, fmt.Errorf("open log file: %w", err)
	}
	return log.New(f, "projectflow: ", log.LstdFlags), f.Close, nil
}
