package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

const maxConfigFileSize = 1024 * 1024

// envPrefix namespaces llkb environment overrides, e.g.
// LLKB_EXTRACTION_MIN_OCCURRENCES -> extraction.min_occurrences.
const envPrefix = "LLKB_"

// Load reads configuration with the usual precedence (highest first):
//
//  1. Environment variables (LLKB_ prefix)
//  2. YAML config file
//  3. Hardcoded defaults
//
// A missing config file is the normal first-run state. A file that exists
// but cannot be read or parsed is logged and otherwise ignored, yielding
// defaults: a broken config must never brick the knowledge base, since the
// same directory also holds the data the user wants back.
func Load(configPath string, logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	k := koanf.New(".")

	if configPath != "" {
		if content, ok := readConfigFile(configPath, logger); ok {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				logger.Warn("config file unparsable, using defaults",
					zap.String("path", configPath), zap.Error(err))
				k = koanf.New(".")
			}
		}
	}

	// Environment overrides. Split on the first underscore only: the part
	// before it is the section, the rest is the snake_case field name.
	// Top-level scalar keys like root_dir pass through unchanged.
	sections := map[string]bool{
		"extraction": true, "retention": true, "relevance": true,
		"scan": true, "logging": true,
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 || !sections[parts[0]] {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(path string, logger *zap.Logger) ([]byte, bool) {
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("config file unreadable, using defaults", zap.String("path", path), zap.Error(err))
		}
		return nil, false
	}
	if info.Size() > maxConfigFileSize {
		logger.Warn("config file too large, using defaults",
			zap.String("path", path), zap.Int64("size", info.Size()))
		return nil, false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("config file unreadable, using defaults", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	return content, true
}
