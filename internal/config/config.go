//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for pgedge-rrbench.
// Configuration is loaded from config files and CLI flags (no environment variables).
// CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spf13/viper"
)

// Delete scopes.
const (
	DeleteScopeAny    = "any"
	DeleteScopeCorpus = "corpus"
)

// Query selection modes.
const (
	SelectionWeighted = "weighted"
	SelectionCycle    = "cycle"
)

// Bounds of run.transactions_per_second. The writer rejects rates outside
// the same range.
const (
	MinTransactionsPerSecond = 0.001
	MaxTransactionsPerSecond = 1e6
)

// Report output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Config holds all configuration for pgedge-rrbench.
type Config struct {
	// Backend names the database engine to benchmark.
	Backend string `mapstructure:"backend"`

	// WriterURL is the connection string of the primary (postgres backend).
	WriterURL string `mapstructure:"writer_url"`

	// ReaderURL is the connection string of the replica (postgres backend).
	ReaderURL string `mapstructure:"reader_url"`

	// DBPath is the database file (sqlite backend).
	DBPath string `mapstructure:"db_path"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is "console" or "json".
	LogFormat string `mapstructure:"log_format"`

	// Run holds configuration for the run subcommand.
	Run RunConfig `mapstructure:"run"`

	// Load holds configuration for the load subcommand.
	Load LoadConfig `mapstructure:"load"`

	// Memory tunes the in-memory backend.
	Memory MemoryConfig `mapstructure:"memory"`
}

// RunConfig holds configuration for a benchmark run.
type RunConfig struct {
	// Duration is how long the workload runs.
	Duration time.Duration `mapstructure:"duration"`

	// TransactionsPerSecond is the target write rate.
	TransactionsPerSecond float64 `mapstructure:"transactions_per_second"`

	// Concurrency is the number of reader workers.
	Concurrency int `mapstructure:"concurrency"`

	// Seed makes the write stream reproducible.
	Seed uint64 `mapstructure:"seed"`

	// Operation mix weights.
	InsertWeight int `mapstructure:"insert_weight"`
	UpdateWeight int `mapstructure:"update_weight"`
	DeleteWeight int `mapstructure:"delete_weight"`

	// CallTimeout bounds every single read or write.
	CallTimeout time.Duration `mapstructure:"call_timeout"`

	// GracePeriod bounds how long draining waits for workers.
	GracePeriod time.Duration `mapstructure:"grace_period"`

	// ReportInterval is how often to print statistics (in seconds, 0 disables).
	ReportInterval int `mapstructure:"report_interval"`

	// DeleteScope restricts which rows deletes may target: "any" or
	// "corpus" (rows loaded before the run only).
	DeleteScope string `mapstructure:"delete_scope"`

	// WriterConnections is the number of primary connections the writer
	// spreads paced operations over.
	WriterConnections int `mapstructure:"writer_connections"`

	// QuerySelection is "weighted" or "cycle".
	QuerySelection string `mapstructure:"query_selection"`

	// QueryWeights overrides catalog weights by query name.
	QueryWeights map[string]int `mapstructure:"query_weights"`

	// MetricsAddr serves Prometheus metrics when set (e.g. ":9187").
	MetricsAddr string `mapstructure:"metrics_addr"`

	// Output is the final report format: "table" or "json".
	Output string `mapstructure:"output"`
}

// LoadConfig holds configuration for dataset loading.
type LoadConfig struct {
	// DataDir holds one CSV file per entity.
	DataDir string `mapstructure:"data_dir"`

	// DropExisting drops existing schema before loading.
	DropExisting bool `mapstructure:"drop_existing"`

	// BatchSize is the number of rows sent per load call.
	BatchSize int `mapstructure:"batch_size"`
}

// MemoryConfig tunes the in-memory backend.
type MemoryConfig struct {
	// Latency is a fixed ("5ms") or ranged ("2ms-8ms") per-call delay.
	Latency string `mapstructure:"latency"`

	// FailureRate is the fraction of calls that fail, in [0, 1].
	FailureRate float64 `mapstructure:"failure_rate"`
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Backend:   "postgres",
		LogLevel:  "info",
		LogFormat: "console",
		Run: RunConfig{
			TransactionsPerSecond: 10,
			Concurrency:           1,
			Seed:                  42,
			InsertWeight:          45,
			UpdateWeight:          45,
			DeleteWeight:          10,
			CallTimeout:           30 * time.Second,
			GracePeriod:           10 * time.Second,
			ReportInterval:        10,
			DeleteScope:           DeleteScopeAny,
			WriterConnections:     1,
			QuerySelection:        SelectionWeighted,
			Output:                OutputTable,
		},
		Load: LoadConfig{
			DataDir:   "data",
			BatchSize: 5000,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./pgedge-rrbench.yaml
// 3. ~/.config/pgedge-rrbench/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("pgedge-rrbench")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pgedge-rrbench"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks the connection settings of the selected backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case "":
		return invalid("backend", "a backend is required")
	case "postgres":
		if c.WriterURL == "" {
			return invalid("writer-url", "required for the postgres backend")
		}
		if c.ReaderURL == "" {
			return invalid("reader-url", "required for the postgres backend")
		}
		if _, err := pgconn.ParseConfig(c.WriterURL); err != nil {
			return invalid("writer-url", "%v", err)
		}
		if _, err := pgconn.ParseConfig(c.ReaderURL); err != nil {
			return invalid("reader-url", "%v", err)
		}
	case "sqlite":
		if c.DBPath == "" {
			return invalid("db-path", "required for the sqlite backend")
		}
	}
	if c.LogFormat != "" && c.LogFormat != "console" && c.LogFormat != "json" {
		return invalid("log-format", "must be 'console' or 'json'")
	}
	return nil
}

// ValidateLoad checks configuration required for the load command.
func (c *Config) ValidateLoad() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Load.DataDir == "" {
		return invalid("data-dir", "a data directory is required")
	}
	if c.Load.BatchSize < 1 {
		return invalid("batch-size", "must be at least 1")
	}
	return nil
}

// ValidateRun checks configuration required for the run command.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	r := c.Run
	if r.Duration <= 0 {
		return invalid("duration", "must be positive (e.g. 10s, 5m, 1h)")
	}
	if math.IsNaN(r.TransactionsPerSecond) ||
		r.TransactionsPerSecond < MinTransactionsPerSecond ||
		r.TransactionsPerSecond > MaxTransactionsPerSecond {
		return invalid("transactions-per-second", "must be between %v and %v",
			MinTransactionsPerSecond, MaxTransactionsPerSecond)
	}
	if r.Concurrency < 1 {
		return invalid("concurrency", "must be at least 1")
	}
	if r.InsertWeight < 0 || r.UpdateWeight < 0 || r.DeleteWeight < 0 {
		return invalid("operation weights", "must be non-negative")
	}
	if r.InsertWeight+r.UpdateWeight+r.DeleteWeight == 0 {
		return invalid("operation weights", "at least one weight must be positive")
	}
	if r.CallTimeout <= 0 {
		return invalid("call-timeout", "must be positive")
	}
	if r.GracePeriod <= 0 {
		return invalid("grace-period", "must be positive")
	}
	if r.ReportInterval < 0 {
		return invalid("report-interval", "must be non-negative")
	}
	if r.DeleteScope != DeleteScopeAny && r.DeleteScope != DeleteScopeCorpus {
		return invalid("delete-scope", "must be '%s' or '%s'", DeleteScopeAny, DeleteScopeCorpus)
	}
	if r.WriterConnections < 1 {
		return invalid("writer-connections", "must be at least 1")
	}
	if r.QuerySelection != SelectionWeighted && r.QuerySelection != SelectionCycle {
		return invalid("query-selection", "must be '%s' or '%s'", SelectionWeighted, SelectionCycle)
	}
	if r.Output != OutputTable && r.Output != OutputJSON {
		return invalid("output", "must be '%s' or '%s'", OutputTable, OutputJSON)
	}
	if c.Memory.FailureRate < 0 || c.Memory.FailureRate > 1 {
		return invalid("memory.failure_rate", "must be between 0 and 1")
	}
	for name, w := range r.QueryWeights {
		if w < 0 {
			return invalid("query_weights", "weight for %s must be non-negative", name)
		}
	}
	return nil
}
