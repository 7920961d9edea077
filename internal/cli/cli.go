//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for pgedge-rrbench.
package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/config"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
	"github.com/pgEdge/pgedge-rrbench/pkg/version"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFatal   = 1
	ExitFailure = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return ExitFatal
}

var (
	// Global flags
	cfgFile     string
	backendName string
	writerURL   string
	readerURL   string
	dbPath      string
	logLevel    string
	logFormat   string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "pgedge-rrbench",
		Short: "Read replica benchmark: paced writes on the primary, analytical reads on the replica",
		Long: `pgedge-rrbench measures how a read replica serves analytical queries
while the primary absorbs a steady, rate-limited stream of OLTP writes.

A single writer issues inserts, updates and deletes against the primary at
a fixed transactions-per-second target. Meanwhile a pool of reader workers
runs a catalog of analytical views against the replica as fast as each
worker can. At the end of the run per-query and per-operation latency and
throughput are reported.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./pgedge-rrbench.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "",
		"database backend (postgres, sqlite, memory)")
	rootCmd.PersistentFlags().StringVar(&writerURL, "writer-url", "",
		"PostgreSQL connection string of the primary")
	rootCmd.PersistentFlags().StringVar(&readerURL, "reader-url", "",
		"PostgreSQL connection string of the read replica")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "",
		"database file for the sqlite backend")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (console, json)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(queriesCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	// Override with CLI flags
	if backendName != "" {
		cfg.Backend = backendName
	}
	if writerURL != "" {
		cfg.WriterURL = writerURL
	}
	if readerURL != "" {
		cfg.ReaderURL = readerURL
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	return nil
}

func backendConfig() backend.Config {
	return backend.Config{
		WriterURL:   cfg.WriterURL,
		ReaderURL:   cfg.ReaderURL,
		DBPath:      cfg.DBPath,
		Latency:     cfg.Memory.Latency,
		FailureRate: cfg.Memory.FailureRate,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List available database backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Println("Available backends:")
		cmd.Println()
		for _, name := range backend.List() {
			desc, err := backend.Describe(name)
			if err != nil {
				return err
			}
			cmd.Printf("  %-10s - %s\n", name, desc)
		}
		return nil
	},
}

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "List the analytical queries run against the replica",
	Long: `List every query in the workload catalog with its selection weight
and the parameter it is filtered on. Weights can be overridden with the
run.query_weights config key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := catalog.Default()
		if len(cfg.Run.QueryWeights) > 0 {
			var err error
			if cat, err = cat.WithWeights(cfg.Run.QueryWeights); err != nil {
				return err
			}
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "QUERY\tWEIGHT\tPARAMETER\tDESCRIPTION")
		for _, q := range cat.Queries {
			params := make([]string, len(q.Params))
			for i, p := range q.Params {
				params[i] = p.String()
			}
			param := strings.Join(params, ",")
			if param == "" {
				param = "-"
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", q.Name, q.Weight, param, q.Description)
		}
		return tw.Flush()
	},
}
