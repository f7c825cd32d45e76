package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/giftapi/internal/core"
	"github.com/JonMunkholm/giftapi/internal/store"
)

func newFileCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "file [path]",
		Short: "Import one kids file in a single transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if batchSize <= 0 {
				batchSize = cfg.Import.BatchSize
			}

			st, err := store.Open(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			defer st.Close()

			src, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer src.Close()

			// The worker removes the staged copy, never the source file.
			staged, err := core.NewImportStager(cfg.Import.StagingDir).Stage(ctx, src, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			job := core.NewImportJob(staged, batchSize)
			if err := core.NewKidsImportWorker(st, nil).Run(ctx, job, "cli"); err != nil {
				return err
			}

			slog.Info("import finished", "file", job.FileName, "rows", job.Rows())
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d kids from %s\n", job.Rows(), job.FileName)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per insert statement (default: IMPORT_BATCH_SIZE)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the kid and gift tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db := cfg.Database
			db.AutoMigrate = false
			st, err := store.Open(ctx, db)
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			defer st.Close()

			if err := store.Migrate(ctx, st); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
