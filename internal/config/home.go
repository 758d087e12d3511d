package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// HomeEnv overrides the treewalk home directory.
const HomeEnv = "TREEWALK_HOME"

// GetHome returns the treewalk home directory
// Priority order:
//  1. TREEWALK_HOME environment variable (if set)
//  2. .treewalk in the current working directory (fallback)
//
// The directory is not created.
func GetHome() (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(cwd, ".treewalk"), nil
}

// userConfigRelPath is searched for in the XDG config directories.
const userConfigRelPath = "treewalk/config.yaml"

// DefaultConfigPath returns the configuration file to load when none is given.
// Priority order:
//  1. config.yaml in the treewalk home directory, when TREEWALK_HOME is set
//     or the file exists
//  2. treewalk/config.yaml in the XDG config directories, when it exists
//  3. config.yaml in the treewalk home directory (may not exist)
func DefaultConfigPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	path := filepath.Join(home, "config.yaml")

	if os.Getenv(HomeEnv) != "" {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if userPath, err := xdg.SearchConfigFile(userConfigRelPath); err == nil {
		return userPath, nil
	}
	return path, nil
}

// HistoryDBPath returns the configured history database path, falling back
// to history.db in the treewalk home directory
func (c *Config) HistoryDBPath() (string, error) {
	if c.History.DBPath != "" {
		return c.History.DBPath, nil
	}

	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history.db"), nil
}
