// Package config loads msftool's optional YAML defaults
// (~/.config/msftool/config.yaml). Command-line flags always win over values
// read here.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config mirrors the CLI flags. Pointer fields distinguish "not set" from a
// false or zero value.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Progress  *bool  `yaml:"progress"`

	// Pack
	Sort           *bool `yaml:"sort"`
	AllowEmpty     *bool `yaml:"allow_empty"`
	NormalizeNames *bool `yaml:"normalize_names"`

	// Unpack
	Workers        *int  `yaml:"workers"`
	AllowTraversal *bool `yaml:"allow_traversal"`
}

// DefaultPath returns the per-user config location, or "" if the platform
// has no config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "msftool", "config.yaml")
}

// Load reads the config at path. With explicit false, a missing file yields
// a zero Config; an explicitly named file must exist. A file that exists but
// does not parse is always an error.
func Load(path string, explicit bool) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Workers != nil && *cfg.Workers < 0 {
		return cfg, fmt.Errorf("config %s: workers must not be negative", path)
	}
	return cfg, nil
}
