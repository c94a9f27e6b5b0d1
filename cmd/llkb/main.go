// Package main implements the llkb CLI for managing the lessons-learned
// knowledge base: scanning test corpora for duplicate patterns, recording
// lesson and component outcomes, and retrieving context for prompt assembly.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/llkb/internal/config"
	"github.com/fyrsmithlabs/llkb/internal/knowledge"
	"github.com/fyrsmithlabs/llkb/internal/logging"
)

var (
	configPath string
	rootDir    string
	logLevel   string
	logFormat  string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "llkb",
	Short: "Lessons-learned knowledge base for test automation",
	Long: `llkb accumulates reusable test-automation knowledge (lessons, extracted
components, app quirks) across authoring sessions and feeds the most relevant
subset back into future test-generation prompts.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <root>/config.yml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "knowledge base directory (default from config, .artk/llkb)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json")
}

// setup resolves configuration, logger, and the store handle shared by every
// command. Flags override config file values.
func setup() (*config.Config, *zap.Logger, *knowledge.Store, error) {
	path := configPath
	if path == "" {
		base := rootDir
		if base == "" {
			base = config.Default().RootDir
		}
		path = filepath.Join(base, "config.yml")
	}

	cfg, err := config.Load(path, zap.NewNop())
	if err != nil {
		return nil, nil, nil, err
	}
	if rootDir != "" {
		cfg.RootDir = rootDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, nil, err
	}

	store := knowledge.Open(cfg.RootDir, logger)
	return cfg, logger, store, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
