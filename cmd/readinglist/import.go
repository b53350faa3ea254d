package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"readinglist/internal/importer"
	"readinglist/internal/storage"
)

func importCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import FILE.json",
		Short: "Load an article export into the database",
		Long: `Load exported articles (url, title, description, read_at, exclude_from_rss).

The original read_at is kept and URLs already stored are skipped. Rows without a
title are stored under their hostname and queued for a title refresh, which the
serve command's workers pick up at RETITLE_RATE.

Examples:
  readinglist import articles.json
  readinglist import articles.json --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, a, args[0], dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing anything")
	return cmd
}

func runImport(cmd *cobra.Command, a *app, path string, dryRun bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := importer.Parse(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d articles in %s\n", len(rows), path)

	im := importer.New(nil, nil, a.logger)
	if !dryRun {
		var cleanup func()
		im, cleanup, err = connectImporter(cmd.Context(), a)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	stats, err := im.Import(cmd.Context(), rows, dryRun)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Dry run - no changes made")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported: %d, duplicates: %d, invalid: %d, title refresh queued: %d\n",
		stats.Imported, stats.Duplicate, stats.Invalid, stats.Queued)
	return nil
}

func connectImporter(ctx context.Context, a *app) (*importer.Importer, func(), error) {
	pgStore, err := storage.NewPostgresStore(ctx, a.cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pgStore.EnsureSchema(ctx); err != nil {
		pgStore.Close()
		return nil, nil, err
	}

	rdb, err := storage.NewRedisClient(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	if err != nil {
		a.logger.Warn("redis unavailable, titles will not be refreshed", zap.Error(err))
		return importer.New(pgStore, nil, a.logger), pgStore.Close, nil
	}

	cleanup := func() {
		rdb.Close()
		pgStore.Close()
	}
	queue := storage.NewRedisStore(rdb, storage.DefaultPendingTTL)
	return importer.New(pgStore, queue, a.logger), cleanup, nil
}
