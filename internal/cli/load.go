//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/dataset"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

var (
	loadDataDir      string
	loadDropExisting bool
	loadBatchSize    int
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Create the schema and load the CSV dataset",
	Long: `Create the benchmark tables and analytical views on the primary and
load the dataset from a directory holding customers.csv, accounts.csv,
securities.csv, trades.csv, orders.csv and market_data.csv. Each file
starts with a header row naming the columns in table order.

Example:
  pgedge-rrbench load --writer-url "postgres://primary/bench" \
      --reader-url "postgres://replica/bench" --data-dir ./data
  pgedge-rrbench load --backend sqlite --db-path bench.db --data-dir ./data --drop-existing`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadDataDir, "data-dir", "",
		"directory holding the dataset CSV files (default ./data)")
	loadCmd.Flags().BoolVar(&loadDropExisting, "drop-existing", false,
		"drop existing tables and views before loading")
	loadCmd.Flags().IntVar(&loadBatchSize, "batch-size", 0,
		"rows per load batch (default 5000)")
}

func runLoad(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if loadDataDir != "" {
		cfg.Load.DataDir = loadDataDir
	}
	if loadDropExisting {
		cfg.Load.DropExisting = true
	}
	if loadBatchSize > 0 {
		cfg.Load.BatchSize = loadBatchSize
	}

	// Validate configuration
	if err := cfg.ValidateLoad(); err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}
	if err := dataset.Check(cfg.Load.DataDir); err != nil {
		return &ExitError{Code: ExitFatal, Err: fmt.Errorf("invalid dataset: %w", err)}
	}

	ctx := context.Background()
	b, err := backend.Open(ctx, cfg.Backend, backendConfig())
	if err != nil {
		return fmt.Errorf("failed to open backend: %w", err)
	}
	defer b.Close()

	loader, ok := b.(backend.Loader)
	if !ok {
		return fmt.Errorf("backend %s does not support loading a dataset", b.Name())
	}

	logging.Info().
		Str("backend", b.Name()).
		Str("data_dir", cfg.Load.DataDir).
		Msg("Loading dataset")

	// Drop existing schema if requested
	if cfg.Load.DropExisting {
		logging.Info().Msg("Dropping existing schema")
		if err := loader.DropSchema(ctx); err != nil {
			return fmt.Errorf("failed to drop schema: %w", err)
		}
	}

	// Create schema
	logging.Info().Msg("Creating schema")
	if err := loader.CreateSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	opts := dataset.DefaultOptions(cfg.Load.DataDir)
	opts.BatchSize = cfg.Load.BatchSize
	res, err := dataset.Load(ctx, loader, opts)
	if err != nil {
		return err
	}

	cmd.Printf("Loaded %d rows in %s\n", res.Total(), res.Elapsed.Round(time.Millisecond))
	return nil
}
