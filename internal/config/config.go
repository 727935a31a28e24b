// Package config provides layered configuration loading.
// Precedence: flags > env > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the resolved configuration. Config values are treated as
// immutable snapshots: reloads and updates build a new value instead of
// mutating one that other goroutines may be reading.
type Config struct {
	// Provider settings
	BaseURL   string `yaml:"base_url"`
	ProjectID int64  `yaml:"project_id"`

	// Caller identity used by "mine" filters.
	Me string `yaml:"me"`

	// Output settings
	Format string `yaml:"format"`

	// Undo stack settings
	UndoDriver string `yaml:"undo_driver"`
	UndoPath   string `yaml:"undo_path"`
	UndoMax    int    `yaml:"undo_max"`

	// Tidy backups
	BackupDir string `yaml:"backup_dir"`

	// Serve bridge settings
	ServeAddr      string `yaml:"serve_addr"`
	ServeToken     string `yaml:"serve_token"`
	RateLimit      int    `yaml:"rate_limit"`
	RateWindowSecs int    `yaml:"rate_window_secs"`

	// Per-board column synonym overrides, phrase -> column id.
	ColumnSynonyms map[string]int64 `yaml:"column_synonyms"`

	Verbose bool `yaml:"verbose"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `yaml:"-"`

	// Path is the config file that was actually loaded, if any.
	Path string `yaml:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	Config  string // explicit config file path
	Project int64
	Me      string
	Format  string
	Verbose bool
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Format:         "auto",
		UndoDriver:     "file",
		UndoMax:        200,
		ServeAddr:      "127.0.0.1:7421",
		RateLimit:      60,
		RateWindowSecs: 60,
		Sources:        make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	path := overrides.Config
	if path == "" {
		path = GlobalConfigPath()
	}
	if err := loadFromFile(cfg, path); err != nil {
		// An explicitly requested file must exist; the default one need not.
		if overrides.Config != "" {
			return nil, err
		}
	}

	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("malformed config at %s: %w", path, err)
	}

	cfg.Path = path
	set := func(key string) { cfg.Sources[key] = string(SourceFile) }

	if fileCfg.BaseURL != "" {
		cfg.BaseURL = NormalizeBaseURL(fileCfg.BaseURL)
		set("base_url")
	}
	if fileCfg.ProjectID != 0 {
		cfg.ProjectID = fileCfg.ProjectID
		set("project_id")
	}
	if fileCfg.Me != "" {
		cfg.Me = fileCfg.Me
		set("me")
	}
	if fileCfg.Format != "" {
		cfg.Format = fileCfg.Format
		set("format")
	}
	if fileCfg.UndoDriver != "" {
		cfg.UndoDriver = fileCfg.UndoDriver
		set("undo_driver")
	}
	if fileCfg.UndoPath != "" {
		cfg.UndoPath = fileCfg.UndoPath
		set("undo_path")
	}
	if fileCfg.UndoMax > 0 {
		cfg.UndoMax = fileCfg.UndoMax
		set("undo_max")
	}
	if fileCfg.BackupDir != "" {
		cfg.BackupDir = fileCfg.BackupDir
		set("backup_dir")
	}
	if fileCfg.ServeAddr != "" {
		cfg.ServeAddr = fileCfg.ServeAddr
		set("serve_addr")
	}
	if fileCfg.ServeToken != "" {
		cfg.ServeToken = fileCfg.ServeToken
		set("serve_token")
	}
	if fileCfg.RateLimit > 0 {
		cfg.RateLimit = fileCfg.RateLimit
		set("rate_limit")
	}
	if fileCfg.RateWindowSecs > 0 {
		cfg.RateWindowSecs = fileCfg.RateWindowSecs
		set("rate_window_secs")
	}
	if len(fileCfg.ColumnSynonyms) > 0 {
		cfg.ColumnSynonyms = fileCfg.ColumnSynonyms
		set("column_synonyms")
	}
	if fileCfg.Verbose {
		cfg.Verbose = true
		set("verbose")
	}
	return nil
}

// LoadFromEnv loads configuration from BOARDCTL_* environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("BOARDCTL_BASE_URL"); v != "" {
		cfg.BaseURL = NormalizeBaseURL(v)
		cfg.Sources["base_url"] = string(SourceEnv)
	}
	if v := os.Getenv("BOARDCTL_PROJECT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ProjectID = id
			cfg.Sources["project_id"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("BOARDCTL_ME"); v != "" {
		cfg.Me = v
		cfg.Sources["me"] = string(SourceEnv)
	}
	if v := os.Getenv("BOARDCTL_FORMAT"); v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(SourceEnv)
	}
	if v := os.Getenv("BOARDCTL_UNDO_DRIVER"); v != "" {
		cfg.UndoDriver = v
		cfg.Sources["undo_driver"] = string(SourceEnv)
	}
	if v := os.Getenv("BOARDCTL_SERVE_TOKEN"); v != "" {
		cfg.ServeToken = v
		cfg.Sources["serve_token"] = string(SourceEnv)
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.Project != 0 {
		cfg.ProjectID = o.Project
		cfg.Sources["project_id"] = string(SourceFlag)
	}
	if o.Me != "" {
		cfg.Me = o.Me
		cfg.Sources["me"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.Verbose {
		cfg.Verbose = true
		cfg.Sources["verbose"] = string(SourceFlag)
	}
}

// Clone returns a deep copy so callers can derive a new snapshot without
// touching the one in use.
func (cfg *Config) Clone() *Config {
	out := *cfg
	out.Sources = make(map[string]string, len(cfg.Sources))
	for k, v := range cfg.Sources {
		out.Sources[k] = v
	}
	if cfg.ColumnSynonyms != nil {
		out.ColumnSynonyms = make(map[string]int64, len(cfg.ColumnSynonyms))
		for k, v := range cfg.ColumnSynonyms {
			out.ColumnSynonyms[k] = v
		}
	}
	return &out
}

// WithColumnSynonyms returns a new snapshot with the synonym table replaced.
func (cfg *Config) WithColumnSynonyms(synonyms map[string]int64) *Config {
	out := cfg.Clone()
	out.ColumnSynonyms = make(map[string]int64, len(synonyms))
	for k, v := range synonyms {
		out.ColumnSynonyms[k] = v
	}
	out.Sources["column_synonyms"] = string(SourceFile)
	return out
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "boardctl")
}

// GlobalConfigPath returns the default config file path.
func GlobalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.yaml")
}

// NormalizeBaseURL ensures consistent URL format (no trailing slash).
func NormalizeBaseURL(url string) string {
	return strings.TrimSuffix(url, "/")
}
