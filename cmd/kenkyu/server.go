package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kenkyu/internal/ingest"
	"github.com/hyperjump/kenkyu/internal/server"
	"github.com/hyperjump/kenkyu/internal/watcher"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP query API",
	Args:  cobra.NoArgs,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, resolved, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n := needEmbedder
	if len(cfg.Watch.Files) > 0 {
		n |= needStore
	}
	components, err := initializeComponents(ctx, cfg, logger, n)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Close()

	if len(cfg.Watch.Files) > 0 {
		w := newIngestWatcher(ctx, cfg.Watch.Files, cfg.Watch.Debounce, components.Pipeline, logger)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
	}

	opts := []server.Option{server.WithDiskPaths(diskPaths(cfg)...)}
	if components.Store != nil && isFileBackend(cfg.Storage.Backend) {
		opts = append(opts, server.WithStats(components.Store))
	}
	srv := server.NewServer(components.Service, &cfg.Server, logger, opts...)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// newIngestWatcher re-ingests each file after it settles.
func newIngestWatcher(ctx context.Context, files []string, debounce time.Duration, p *ingest.Pipeline, logger *zap.Logger) *watcher.Watcher {
	return watcher.NewWatcher(files, func(path string) {
		rep, err := p.RunFile(ctx, path)
		if err != nil {
			logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("watch ingest finished",
			zap.String("path", path),
			zap.Int("created", rep.Created),
			zap.Int("linked", rep.Linked),
			zap.Int("failed", rep.Failed),
		)
	}, watcher.WithLogger(logger), watcher.WithDebounce(debounce))
}
