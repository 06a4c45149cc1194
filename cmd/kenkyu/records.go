package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hyperjump/kenkyu/internal/cli"
	"github.com/hyperjump/kenkyu/internal/models"
	"github.com/hyperjump/kenkyu/internal/storage"
	"github.com/hyperjump/kenkyu/pkg/utils"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored chunks and their authors",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 10, "number of chunks to show (0 = all)")
	rootCmd.AddCommand(listCmd, statsCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	components, err := initializeComponents(cmd.Context(), cfg, logger, needStore)
	if err != nil {
		return err
	}
	defer components.Close()

	out := cmd.OutOrStdout()
	shown := 0
	components.Store.Each(func(r *models.ChunkRecord) {
		if listLimit > 0 && shown >= listLimit {
			return
		}
		title, _, _ := strings.Cut(r.Text, "\n")
		fmt.Fprintf(out, "%4d  %s  %s\n", shown, color.YellowString(strings.Join(r.AuthorIDs, ",")), utils.Truncate(title, 80))
		shown++
	})
	fmt.Fprintf(out, "showing %d of %d chunks\n", shown, components.Store.Len())
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	components, err := initializeComponents(cmd.Context(), cfg, logger, 0)
	if err != nil {
		return err
	}
	defer components.Close()

	count, err := components.Index.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	var stats *models.StoreStats
	if components.Store != nil {
		s := components.Store.Stats()
		stats = &s
	}
	disk := int64(-1)
	if paths := diskPaths(cfg); len(paths) > 0 {
		if n, err := storage.DiskUsageBytes(paths...); err == nil {
			disk = n
		}
	}
	cli.WriteStats(cmd.OutOrStdout(), databaseType(cfg.Storage.Backend), count, stats, disk)
	return nil
}
