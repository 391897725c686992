package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file, layering it over Default(). A
// missing file is an error; pass an empty path to use defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Rules.Root) == "" {
		return fmt.Errorf("rules.root must not be empty")
	}
	if strings.TrimSpace(c.Rules.Catalog) == "" {
		return fmt.Errorf("rules.catalog must not be empty")
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must not be negative")
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not valid", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not valid", c.Logging.Format)
	}

	return nil
}
