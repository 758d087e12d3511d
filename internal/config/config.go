package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/treewalk/internal/fsaccess"
)

// Supported report formats
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// HistoryConfig represents walk history configuration
type HistoryConfig struct {
	// Enabled records a summary of every walk in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the SQLite history database.
	// Empty selects history.db in the treewalk home directory.
	DBPath string `yaml:"db_path"`
}

// Config represents treewalk configuration options
type Config struct {
	// Pattern is the file name pattern matched during a walk
	Pattern string `yaml:"pattern"`

	// Parallel selects the parallel walker instead of the sequential one
	Parallel bool `yaml:"parallel"`

	// MaxConcurrency bounds parallel subtree goroutines (0 = automatic)
	MaxConcurrency int `yaml:"max_concurrency"`

	// Timeout stops a walk after the given duration (0 = no timeout)
	Timeout time.Duration `yaml:"timeout"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// Format is the report format (text, json, yaml, markdown, html)
	Format string `yaml:"format"`

	// History contains walk history configuration
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Pattern:        "*",
		Parallel:       false,
		MaxConcurrency: 0, // Automatic
		Timeout:        0, // No timeout
		LogLevel:       "info",
		Format:         FormatText,
		History: HistoryConfig{
			Enabled: false,
			DBPath:  "",
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Use a temporary struct to handle duration parsing
	type yamlConfig struct {
		Pattern        string `yaml:"pattern"`
		Parallel       *bool  `yaml:"parallel"`
		MaxConcurrency int    `yaml:"max_concurrency"`
		Timeout        string `yaml:"timeout"`
		LogLevel       string `yaml:"log_level"`
		Format         string `yaml:"format"`
		History        struct {
			Enabled *bool   `yaml:"enabled"`
			DBPath  *string `yaml:"db_path"`
		} `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply values present in the file over the defaults
	if yamlCfg.Pattern != "" {
		cfg.Pattern = yamlCfg.Pattern
	}
	if yamlCfg.Parallel != nil {
		cfg.Parallel = *yamlCfg.Parallel
	}
	if yamlCfg.MaxConcurrency != 0 {
		cfg.MaxConcurrency = yamlCfg.MaxConcurrency
	}
	if yamlCfg.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", yamlCfg.Timeout, err)
		}
		cfg.Timeout = timeout
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.Format != "" {
		cfg.Format = yamlCfg.Format
	}
	if yamlCfg.History.Enabled != nil {
		cfg.History.Enabled = *yamlCfg.History.Enabled
	}
	if yamlCfg.History.DBPath != nil {
		cfg.History.DBPath = *yamlCfg.History.DBPath
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .treewalk/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".treewalk", "config.yaml"))
}

// Flags carries CLI overrides; nil fields leave the configuration unchanged.
type Flags struct {
	Pattern        *string
	Parallel       *bool
	MaxConcurrency *int
	Timeout        *time.Duration
	LogLevel       *string
	Format         *string
	Record         *bool
	HistoryDB      *string
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(f Flags) {
	if f.Pattern != nil {
		c.Pattern = *f.Pattern
	}
	if f.Parallel != nil {
		c.Parallel = *f.Parallel
	}
	if f.MaxConcurrency != nil {
		c.MaxConcurrency = *f.MaxConcurrency
	}
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.Format != nil {
		c.Format = *f.Format
	}
	if f.Record != nil {
		c.History.Enabled = *f.Record
	}
	if f.HistoryDB != nil {
		c.History.DBPath = *f.HistoryDB
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}

	switch c.Format {
	case FormatText, FormatJSON, FormatYAML, FormatMarkdown, FormatHTML:
	default:
		return fmt.Errorf("invalid format %q, must be one of: text, json, yaml, markdown, html", c.Format)
	}

	if err := fsaccess.ValidatePattern(c.Pattern); err != nil {
		return err
	}

	return nil
}
