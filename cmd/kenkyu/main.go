// Package main is the kenkyu CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kenkyu/internal/config"
	"github.com/hyperjump/kenkyu/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kenkyu/config.yaml"

var (
	configPath string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "kenkyu",
	Short: "Semantic search over researchers by their abstracts",
	Long: color.CyanString("kenkyu") + " ingests author abstracts, stores their embeddings, and ranks authors\n" +
		"by cosine similarity to a query.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kenkyu version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, so running from a project directory uses that project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config named by --config and builds a logger.
func setup() (*config.Config, string, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	if debugFlag {
		cfg.Debug = true
	}
	logger, err := utils.NewLogger(cfg.Debug, cfg.LogLevel)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.String("backend", cfg.Storage.Backend))
	return cfg, resolved, logger, nil
}
