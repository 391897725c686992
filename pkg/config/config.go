// Package config defines veristat's YAML application configuration.
package config

import "time"

// Config is the top-level application configuration.
type Config struct {
	// Rules configures the rule tree and resolution behavior.
	Rules RulesConfig `yaml:"rules"`

	// Engine configures batch validation.
	Engine EngineConfig `yaml:"engine"`

	// History configures run persistence.
	History HistoryConfig `yaml:"history"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus exposition.
	Metrics MetricsConfig `yaml:"metrics"`
}

// RulesConfig configures rule loading and resolution.
type RulesConfig struct {
	// Root is the rule tree directory (one subdirectory per category).
	Root string `yaml:"root"`

	// Catalog is the instrument catalog file path.
	Catalog string `yaml:"catalog"`

	// Preload eagerly resolves all variants before batch processing.
	Preload bool `yaml:"preload"`

	// Watch invalidates caches when rule files change on disk.
	Watch bool `yaml:"watch"`

	// WarnEveryFallback logs a fallback diagnostic per record instead of
	// once per (category, instrument, reason).
	WarnEveryFallback bool `yaml:"warn_every_fallback"`
}

// EngineConfig configures the validation engine.
type EngineConfig struct {
	// Workers is the batch worker pool size.
	Workers int `yaml:"workers"`
}

// HistoryConfig configures run persistence.
type HistoryConfig struct {
	// Enabled enables history recording.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	Path string `yaml:"path"`

	// RetentionDays is how many days of runs to keep (0 = forever).
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for scheduled pruning.
	PruneSchedule string `yaml:"prune_schedule"`

	// WriteTimeout bounds each storage write.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	// Enabled enables the metrics endpoint.
	Enabled bool `yaml:"enabled"`

	// Namespace and Subsystem prefix all metric names.
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// Listen is the metrics HTTP listen address.
	Listen string `yaml:"listen"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Rules: RulesConfig{
			Root:    "rules",
			Catalog: "rules/catalog.yaml",
		},
		Engine: EngineConfig{
			Workers: 4,
		},
		History: HistoryConfig{
			Enabled:       true,
			Path:          "data/history.db",
			RetentionDays: 90,
			PruneSchedule: "0 3 * * *",
			WriteTimeout:  5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "veristat",
			Listen:    ":9464",
		},
	}
}
