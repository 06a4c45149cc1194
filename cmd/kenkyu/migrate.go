package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hyperjump/kenkyu/internal/cli"
	"github.com/hyperjump/kenkyu/internal/migrate"
	"github.com/hyperjump/kenkyu/internal/storage"
	"github.com/hyperjump/kenkyu/internal/store"
)

var (
	migrateBatchSize int
	migrateYes       bool
	migrateTarget    string
	schemaDimensions int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy the JSON snapshot into a relational backend",
	Long: `Copy every record of the JSON snapshot into the relational backend (postgres by default).

Records are inserted in batches; a failed batch is retried one record at a time so a
single bad record does not lose its neighbours. The target row count is verified at the
end. If the target already holds rows you are asked to confirm, or pass --yes.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

var migrateSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the PostgreSQL schema (table, vector index, match function)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dim := schemaDimensions
		if dim <= 0 {
			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			dim = cfg.Embedding.Dimensions
		}
		fmt.Fprint(cmd.OutOrStdout(), storage.PostgresSchema(dim))
		return nil
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateBatchSize, "batch-size", 0, "records per batch (default from config)")
	migrateCmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "continue into a non-empty target without asking")
	migrateCmd.Flags().StringVar(&migrateTarget, "target", "", "target backend: postgres or sqlite (default from config)")
	migrateSchemaCmd.Flags().IntVar(&schemaDimensions, "dimensions", 0, "vector dimensions (default from config)")
	migrateCmd.AddCommand(migrateSchemaCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, _, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	ctx := cmd.Context()

	source, err := store.Open(store.NewFileSnapshot(cfg.Storage.SnapshotPath))
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	target := migrateTarget
	if target == "" {
		target = cfg.Migrate.Target
	}
	table, err := openTable(ctx, cfg, target)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	defer table.Close()

	batch := migrateBatchSize
	if batch <= 0 {
		batch = cfg.Migrate.BatchSize
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Migrating %d records from %s to %s\n", source.Len(), cfg.Storage.SnapshotPath, target)

	m := migrate.New(table, migrate.Config{
		BatchSize: batch,
		Confirm:   confirmFunc(migrateYes, cmd.InOrStdin(), out),
	}, migrate.WithLogger(logger))
	rep, err := m.Run(ctx, source.All())
	if err != nil {
		return err
	}
	cli.WriteMigrationReport(out, rep)
	return nil
}

// confirmFunc answers the non-empty target prompt. --yes always continues; an
// interactive terminal is asked; anything else declines.
func confirmFunc(yes bool, in io.Reader, out io.Writer) migrate.ConfirmFunc {
	return func(existing int64) bool {
		if yes {
			return true
		}
		if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
			fmt.Fprintf(out, "Target already has %d rows; rerun with --yes to continue.\n", existing)
			return false
		}
		return promptYesNo(in, out, fmt.Sprintf("Target already has %d rows. Continue? (y/n): ", existing))
	}
}

func promptYesNo(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
