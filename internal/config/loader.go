package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".autopilot"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// EnvPrefix prefixes all environment overrides, e.g. AUTOPILOT_DB_PATH.
	EnvPrefix = "AUTOPILOT"
)

// ConfigPath returns the path to the config file.
// AUTOPILOT_CONFIG overrides the default ~/.autopilot/config.json.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("AUTOPILOT_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load reads the config file (if present), applies environment overrides,
// and fills derived defaults. A missing file is not an error.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// First run: defaults plus env only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Each group is processed on its own so env keys stay flat
	// (AUTOPILOT_DB_PATH, not AUTOPILOT_PATHS_DB_PATH).
	groups := []interface{}{
		&cfg.Paths, &cfg.Retention, &cfg.Scheduler, &cfg.Sync, &cfg.Notify, &cfg.Relay,
	}
	for _, grp := range groups {
		if err := envconfig.Process(EnvPrefix, grp); err != nil {
			return nil, fmt.Errorf("apply env overrides: %w", err)
		}
	}

	if cfg.Paths.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.Paths.DataDir = filepath.Join(home, ConfigDir)
	}
	if cfg.Paths.DBPath == "" {
		cfg.Paths.DBPath = filepath.Join(cfg.Paths.DataDir, "autopilot.db")
	}
	return cfg, nil
}

// Save writes the config as indented JSON, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
