package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hyperjump/kenkyu/internal/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive console: load, add, search, list, stats",
	Args:  cobra.NoArgs,
	RunE:  runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
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

	d := console.NewDispatcher(components.Pipeline, components.Store, components.Service)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return console.Run(ctx, d)
	}
	return console.RunLines(ctx, d, cmd.InOrStdin(), cmd.OutOrStdout())
}
