// Package config loads fsmu's configuration: a YAML file at the XDG
// config path, overridable by environment variables, the way the
// teacher's own config layer lets environment variables override a
// config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tomhrr/fsmu/internal/staleness"
)

type Config struct {
	BackingDir     string        `yaml:"backing_dir"`
	MountPoint     string        `yaml:"mount_point"`
	Mu             string        `yaml:"mu"`
	MuHome         string        `yaml:"muhome"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
	DeleteRemove   bool          `yaml:"delete_remove"`
	EnableIndexing bool          `yaml:"enable_indexing"`
	Compat1024     bool          `yaml:"compat_mu_1024"`
	Debug          bool          `yaml:"debug"`
}

func DefaultConfig() *Config {
	return &Config{
		Mu:             "mu",
		RefreshTimeout: staleness.DefaultTimeout,
		Compat1024:     true,
	}
}

// Load loads configuration from the default XDG path using the real
// environment.
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadWithEnv loads configuration using the provided environment
// lookup function, so tests can provide isolated values.
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	// Try to load from config file
	configPath := getConfigPathWithEnv(getenv)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment variables override config file
	if dir := getenv("FSMU_BACKING_DIR"); dir != "" {
		cfg.BackingDir = dir
	}
	if mu := getenv("FSMU_MU"); mu != "" {
		cfg.Mu = mu
	}
	if home := getenv("FSMU_MUHOME"); home != "" {
		cfg.MuHome = home
	}

	cfg.BackingDir = expandHome(cfg.BackingDir, getenv)
	cfg.MountPoint = expandHome(cfg.MountPoint, getenv)
	cfg.Mu = expandHome(cfg.Mu, getenv)
	cfg.MuHome = expandHome(cfg.MuHome, getenv)

	return cfg, nil
}

// expandHome substitutes a leading "~" with the user's home
// directory, the one piece of path massaging fsmu's flags need that
// pflag itself won't do.
func expandHome(path string, getenv func(string) string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home := getenv("HOME")
	if home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func getConfigPath() string {
	return getConfigPathWithEnv(os.Getenv)
}

func getConfigPathWithEnv(getenv func(string) string) string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fsmu", "config.yaml")
	}

	// Fall back to ~/.config
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fsmu", "config.yaml")
}
