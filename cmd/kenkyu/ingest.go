package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kenkyu/internal/cli"
)

var (
	ingestWatch bool
	addAuthor   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest an author-abstracts JSON file",
	Long: `Ingest an author-abstracts JSON file of the form
  {"author_abstracts": {"<author id>": [{"title": ..., "abstract": ..., "year": ..., "authors": [...]}]}}

Each paper becomes "Title: <title>\nAbstract: <abstract>". Texts already stored are linked
to the author without calling the embedding provider again, so reruns are idempotent.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var addCmd = &cobra.Command{
	Use:   "add --author <id> <text>",
	Short: "Add one text for an author",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep running and re-ingest the file when it changes")
	addCmd.Flags().StringVar(&addAuthor, "author", "", "author id (required)")
	_ = addCmd.MarkFlagRequired("author")
	rootCmd.AddCommand(ingestCmd, addCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger, needStore|needEmbedder)
	if err != nil {
		return err
	}
	defer components.Close()

	rep, err := components.Pipeline.RunFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cli.WriteIngestReport(cmd.OutOrStdout(), rep)

	if !ingestWatch {
		return nil
	}
	w := newIngestWatcher(ctx, []string{args[0]}, cfg.Watch.Debounce, components.Pipeline, logger)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", args[0])
	<-ctx.Done()
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("text is required")
	}
	cfg, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	components, err := initializeComponents(ctx, cfg, logger, needStore|needEmbedder)
	if err != nil {
		return err
	}
	defer components.Close()

	res, err := components.Pipeline.AddText(ctx, text, addAuthor)
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s chunk %d for %s\n", res.Outcome, res.Index, addAuthor)
	return nil
}
