// Package config loads and writes the strata project configuration file,
// stored at .strata/config.yaml inside a repository.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Storage backend names accepted by the "storage" key.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// Config is the per-repository configuration.
type Config struct {
	// Project is the project name.
	Project string `yaml:"project"`

	// Author is the project creator, recorded on the project singleton.
	Author string `yaml:"author,omitempty"`

	// Storage selects the metadata backend: "file" (default) or "sqlite".
	Storage string `yaml:"storage"`
}

// Default returns the configuration a fresh repository starts with.
func Default(project, author string) *Config {
	return &Config{Project: project, Author: author, Storage: StorageFile}
}

// Load reads and validates a configuration file.
// Unknown keys are rejected so typos surface instead of being ignored.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks required fields and the storage backend name.
func (c *Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("project name must not be empty")
	}
	switch c.Storage {
	case StorageFile, StorageSQLite:
		return nil
	default:
		return fmt.Errorf("invalid storage backend %q: must be %q or %q", c.Storage, StorageFile, StorageSQLite)
	}
}
