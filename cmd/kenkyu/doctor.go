package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hyperjump/kenkyu/internal/config"
	"github.com/hyperjump/kenkyu/internal/vector"
	"github.com/hyperjump/kenkyu/pkg/utils"
)

// dummyComponent fills the probe vector sent to the match function.
const dummyComponent = 0.1

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and backend connectivity",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkStatus int

const (
	checkPass checkStatus = iota
	checkWarn
	checkFail
)

type doctorReport struct {
	out      io.Writer
	failures int
}

func (r *doctorReport) check(status checkStatus, name, msg string) {
	symbol := color.GreenString("PASS")
	switch status {
	case checkWarn:
		symbol = color.YellowString("WARN")
	case checkFail:
		symbol = color.RedString("FAIL")
		r.failures++
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", symbol, name, msg)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	r := &doctorReport{out: cmd.OutOrStdout()}

	cfg, resolved, logger, err := setup()
	if err != nil {
		r.check(checkFail, "config_load", err.Error())
		return fmt.Errorf("doctor found %d failing check(s)", r.failures)
	}
	defer logger.Sync()

	if _, statErr := os.Stat(resolved); statErr != nil {
		r.check(checkWarn, "config_file", resolved+" not found, using defaults")
	} else {
		r.check(checkPass, "config_file", resolved)
	}
	doctorEnv(r, cfg)

	ctx := cmd.Context()
	components, err := initializeComponents(ctx, cfg, logger, 0)
	if err != nil {
		r.check(checkFail, "backend", err.Error())
		return fmt.Errorf("doctor found %d failing check(s)", r.failures)
	}
	defer components.Close()
	doctorBackend(ctx, r, cfg, components.Index)

	if r.failures > 0 {
		return fmt.Errorf("doctor found %d failing check(s)", r.failures)
	}
	return nil
}

func doctorEnv(r *doctorReport, cfg *config.Config) {
	r.check(checkPass, "storage_backend", fmt.Sprintf("%s (%s)", cfg.Storage.Backend, databaseType(cfg.Storage.Backend)))
	needsKey := cfg.Embedding.Provider == "gemini" || cfg.Explain.Provider == "gemini"
	switch {
	case cfg.Embedding.APIKey != "":
		r.check(checkPass, "google_api_key", utils.MaskSecret(cfg.Embedding.APIKey))
	case needsKey:
		r.check(checkFail, "google_api_key", "not set (required by the gemini provider)")
	default:
		r.check(checkWarn, "google_api_key", "not set")
	}
	if cfg.Storage.Backend == "postgres" || cfg.Migrate.Target == "postgres" {
		status := checkPass
		if cfg.Storage.PostgresDSN == "" {
			status = checkWarn
			if cfg.Storage.Backend == "postgres" {
				status = checkFail
			}
		}
		r.check(status, "database_url", utils.MaskSecret(cfg.Storage.PostgresDSN))
	}
}

// doctorBackend counts rows and runs one match with a constant probe vector.
func doctorBackend(ctx context.Context, r *doctorReport, cfg *config.Config, idx vector.Index) {
	n, err := idx.Count(ctx)
	if err != nil {
		r.check(checkFail, "count", err.Error())
		return
	}
	r.check(checkPass, "count", fmt.Sprintf("%d rows", n))
	if n == 0 {
		r.check(checkWarn, "match", "skipped on an empty store")
		return
	}

	probe := make([]float32, cfg.Embedding.Dimensions)
	for i := range probe {
		probe[i] = dummyComponent
	}
	matches, err := idx.Search(ctx, probe, vector.SearchOptions{Threshold: cfg.Search.MatchThreshold, Limit: 5})
	if err != nil {
		r.check(checkFail, "match", err.Error())
		return
	}
	r.check(checkPass, "match", fmt.Sprintf("%d matches for a probe vector", len(matches)))
}
