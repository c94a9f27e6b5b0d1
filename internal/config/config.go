// Package config provides configuration loading for llkb.
package config

import (
	"fmt"
)

// Config is the full llkb configuration tree.
type Config struct {
	// RootDir is the knowledge base directory. Everything else lives under it.
	RootDir string `koanf:"root_dir"`

	Extraction ExtractionConfig `koanf:"extraction"`
	Retention  RetentionConfig  `koanf:"retention"`
	Relevance  RelevanceConfig  `koanf:"relevance"`
	Scan       ScanConfig       `koanf:"scan"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ExtractionConfig tunes the component extraction decision engine.
type ExtractionConfig struct {
	MinOccurrences      int     `koanf:"min_occurrences"`
	MinLines            int     `koanf:"min_lines"`
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
	Predictive          bool    `koanf:"predictive"`
}

// RetentionConfig tunes pruning and archival windows.
type RetentionConfig struct {
	HistoryDays             int  `koanf:"history_days"`
	LessonInactivityDays    int  `koanf:"lesson_inactivity_days"`
	ComponentInactivityDays int  `koanf:"component_inactivity_days"`
	ArchiveStale            bool `koanf:"archive_stale"`
}

// RelevanceConfig tunes context selection.
type RelevanceConfig struct {
	PrioritizeByConfidence bool `koanf:"prioritize_by_confidence"`
	MaxLessons             int  `koanf:"max_lessons"`
	MaxComponents          int  `koanf:"max_components"`
}

// ScanConfig tunes the duplicate-detection scanner.
type ScanConfig struct {
	MinLines       int      `koanf:"min_lines"`
	MinOccurrences int      `koanf:"min_occurrences"`
	ExcludeDirs    []string `koanf:"exclude_dirs"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the hardcoded baseline configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero-valued fields with baseline values.
func applyDefaults(cfg *Config) {
	if cfg.RootDir == "" {
		cfg.RootDir = ".artk/llkb"
	}

	if cfg.Extraction.MinOccurrences == 0 {
		cfg.Extraction.MinOccurrences = 2
	}
	if cfg.Extraction.MinLines == 0 {
		cfg.Extraction.MinLines = 3
	}
	if cfg.Extraction.SimilarityThreshold == 0 {
		cfg.Extraction.SimilarityThreshold = 0.8
	}

	if cfg.Retention.HistoryDays == 0 {
		cfg.Retention.HistoryDays = 90
	}
	if cfg.Retention.LessonInactivityDays == 0 {
		cfg.Retention.LessonInactivityDays = 60
	}
	if cfg.Retention.ComponentInactivityDays == 0 {
		cfg.Retention.ComponentInactivityDays = 90
	}

	if cfg.Relevance.MaxLessons == 0 {
		cfg.Relevance.MaxLessons = 10
	}
	if cfg.Relevance.MaxComponents == 0 {
		cfg.Relevance.MaxComponents = 10
	}

	if cfg.Scan.MinLines == 0 {
		cfg.Scan.MinLines = 2
	}
	if cfg.Scan.MinOccurrences == 0 {
		cfg.Scan.MinOccurrences = 2
	}
	if cfg.Scan.ExcludeDirs == nil {
		cfg.Scan.ExcludeDirs = []string{"node_modules", ".git", "dist", "build", "coverage"}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Extraction.SimilarityThreshold < 0 || c.Extraction.SimilarityThreshold > 1 {
		return fmt.Errorf("extraction.similarity_threshold must be in [0,1], got %v", c.Extraction.SimilarityThreshold)
	}
	if c.Extraction.MinOccurrences < 1 {
		return fmt.Errorf("extraction.min_occurrences must be at least 1, got %d", c.Extraction.MinOccurrences)
	}
	if c.Retention.HistoryDays < 1 {
		return fmt.Errorf("retention.history_days must be at least 1, got %d", c.Retention.HistoryDays)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
