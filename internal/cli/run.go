package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/config"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
	"github.com/pgEdge/pgedge-rrbench/internal/workload"
)

var (
	runDuration          time.Duration
	runTPS               float64
	runConcurrency       int
	runSeed              uint64
	runInsertWeight      int
	runUpdateWeight      int
	runDeleteWeight      int
	runCallTimeout       time.Duration
	runGracePeriod       time.Duration
	runReportInterval    int
	runDeleteScope       string
	runWriterConnections int
	runQuerySelection    string
	runMetricsAddr       string
	runOutput            string
	runMemoryLatency     string
	runMemoryFailureRate float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the read replica benchmark",
	Long: `Run the benchmark for a fixed duration against a database that was
previously populated with the 'load' command.

One writer issues paced writes on the primary while --concurrency readers
run analytical queries on the replica. When the duration expires, or on
Ctrl+C, in-flight calls are allowed to finish (bounded by --call-timeout
and --grace-period) and the report is printed.

Exit status is 0 for a completed run, 1 for a fatal setup or connection
failure, and 2 when the writer or a reader completed no operation at all.

Example:
  pgedge-rrbench run --writer-url "postgres://primary/bench" \
      --reader-url "postgres://replica/bench" \
      --duration 5m --transactions-per-second 50 --concurrency 8
  pgedge-rrbench run --backend sqlite --db-path bench.db --duration 30s`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runDuration, "duration", 0,
		"how long to run (e.g. 10s, 5m, 1h)")
	runCmd.Flags().Float64Var(&runTPS, "transactions-per-second", 0,
		"target write transactions per second on the primary (default 10)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0,
		"number of reader workers on the replica (default 1)")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 0,
		"seed of the write stream (default 42)")
	runCmd.Flags().IntVar(&runInsertWeight, "insert-weight", 0,
		"relative weight of inserts (default 45)")
	runCmd.Flags().IntVar(&runUpdateWeight, "update-weight", 0,
		"relative weight of updates (default 45)")
	runCmd.Flags().IntVar(&runDeleteWeight, "delete-weight", 0,
		"relative weight of deletes (default 10)")
	runCmd.Flags().DurationVar(&runCallTimeout, "call-timeout", 0,
		"upper bound of a single read or write (default 30s)")
	runCmd.Flags().DurationVar(&runGracePeriod, "grace-period", 0,
		"how long to wait for workers after the run ends (default 10s)")
	runCmd.Flags().IntVar(&runReportInterval, "report-interval", 0,
		"statistics reporting interval in seconds, 0 disables (default 10)")
	runCmd.Flags().StringVar(&runDeleteScope, "delete-scope", "",
		"rows deletes may target: any or corpus (default any)")
	runCmd.Flags().IntVar(&runWriterConnections, "writer-connections", 0,
		"primary connections the paced writes are spread over (default 1)")
	runCmd.Flags().StringVar(&runQuerySelection, "query-selection", "",
		"how readers pick queries: weighted or cycle (default weighted)")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address during the run (e.g. :9187)")
	runCmd.Flags().StringVar(&runOutput, "output", "",
		"report format: table or json (default table)")
	runCmd.Flags().StringVar(&runMemoryLatency, "memory-latency", "",
		"per-call latency of the memory backend (e.g. 5ms or 2ms-8ms)")
	runCmd.Flags().Float64Var(&runMemoryFailureRate, "memory-failure-rate", 0,
		"fraction of memory backend calls that fail")
}

// applyRunFlags overrides config values with flags set on the command line.
func applyRunFlags(cmd *cobra.Command, r *config.RunConfig, m *config.MemoryConfig) {
	flags := cmd.Flags()
	if flags.Changed("duration") {
		r.Duration = runDuration
	}
	if flags.Changed("transactions-per-second") {
		r.TransactionsPerSecond = runTPS
	}
	if flags.Changed("concurrency") {
		r.Concurrency = runConcurrency
	}
	if flags.Changed("seed") {
		r.Seed = runSeed
	}
	if flags.Changed("insert-weight") {
		r.InsertWeight = runInsertWeight
	}
	if flags.Changed("update-weight") {
		r.UpdateWeight = runUpdateWeight
	}
	if flags.Changed("delete-weight") {
		r.DeleteWeight = runDeleteWeight
	}
	if flags.Changed("call-timeout") {
		r.CallTimeout = runCallTimeout
	}
	if flags.Changed("grace-period") {
		r.GracePeriod = runGracePeriod
	}
	if flags.Changed("report-interval") {
		r.ReportInterval = runReportInterval
	}
	if runDeleteScope != "" {
		r.DeleteScope = runDeleteScope
	}
	if flags.Changed("writer-connections") {
		r.WriterConnections = runWriterConnections
	}
	if runQuerySelection != "" {
		r.QuerySelection = runQuerySelection
	}
	if runMetricsAddr != "" {
		r.MetricsAddr = runMetricsAddr
	}
	if runOutput != "" {
		r.Output = runOutput
	}
	if runMemoryLatency != "" {
		m.Latency = runMemoryLatency
	}
	if flags.Changed("memory-failure-rate") {
		m.FailureRate = runMemoryFailureRate
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd, &cfg.Run, &cfg.Memory)

	// Validate configuration
	if err := cfg.ValidateRun(); err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	cat := catalog.Default()
	if len(cfg.Run.QueryWeights) > 0 {
		var err error
		if cat, err = cat.WithWeights(cfg.Run.QueryWeights); err != nil {
			return &ExitError{Code: ExitFatal, Err: err}
		}
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	b, err := backend.Open(ctx, cfg.Backend, backendConfig())
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: fmt.Errorf("failed to open backend: %w", err)}
	}
	defer b.Close()

	r := cfg.Run
	coordinator, err := workload.NewCoordinator(workload.Config{
		Backend:           b,
		Catalog:           cat,
		Duration:          r.Duration,
		Rate:              r.TransactionsPerSecond,
		Concurrency:       r.Concurrency,
		WriterConnections: r.WriterConnections,
		Seed:              r.Seed,
		Weights:           []int{r.InsertWeight, r.UpdateWeight, r.DeleteWeight},
		CallTimeout:       r.CallTimeout,
		GracePeriod:       r.GracePeriod,
		ReportInterval:    time.Duration(r.ReportInterval) * time.Second,
		CorpusDeletes:     r.DeleteScope == config.DeleteScopeCorpus,
		QuerySelection:    r.QuerySelection,
		MetricsAddr:       r.MetricsAddr,
	})
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	report, runErr := coordinator.Run(ctx)
	if report != nil {
		report.LogSummary()
		if err := report.Print(cmd.OutOrStdout(), r.Output); err != nil {
			return &ExitError{Code: ExitFatal, Err: err}
		}
	}

	if runErr != nil {
		return &ExitError{Code: ExitFatal, Err: runErr}
	}
	if report.Failed {
		return &ExitError{
			Code: ExitFailure,
			Err:  fmt.Errorf("benchmark failed: %s", strings.Join(report.FailureReasons, "; ")),
		}
	}
	return nil
}
