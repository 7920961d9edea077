//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package workload

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

// AggregateMetric summarizes every sample recorded under one operation or
// query name. Latency statistics cover successful samples only; failed and
// timed out calls are counted separately.
type AggregateMetric struct {
	Name       string
	Role       Role
	Count      int64
	Successes  int64
	Errors     int64
	Timeouts   int64
	Rows       int64
	Min        time.Duration
	Max        time.Duration
	Mean       time.Duration
	StdDev     time.Duration
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	Throughput float64 // successes per second of wall clock
}

// ProducerSummary counts the samples of one worker.
type ProducerSummary struct {
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Samples   int64  `json:"samples"`
	Successes int64  `json:"successes"`
}

// Report is the outcome of a run.
type Report struct {
	RunID       string
	Backend     string
	Start       time.Time
	CancelledAt time.Time
	Wall        time.Duration

	Metrics   []AggregateMetric
	Producers []ProducerSummary

	// SkippedSlots counts write deadlines passed over because the writer
	// was still busy.
	SkippedSlots int64

	// LateSamples counts samples that arrived after the merge, from
	// workers that overran the grace period.
	LateSamples int64

	// Fatal lists unrecoverable worker failures.
	Fatal []string

	// Failed is set when the writer or any reader produced no successful
	// sample. FailureReasons says which.
	Failed         bool
	FailureReasons []string
}

// Percentile returns the nearest-rank percentile p (0-100] of sorted, the
// element at index ceil(p/100*n)-1.
func Percentile(sorted []time.Duration, p int) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := (p*n+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

type aggregator struct {
	name      string
	role      Role
	count     int64
	successes int64
	errors    int64
	timeouts  int64
	rows      int64
	latencies []time.Duration
}

func (a *aggregator) add(s *Sample) {
	a.count++
	switch s.Outcome {
	case OutcomeSuccess:
		a.successes++
		a.rows += s.Rows
		a.latencies = append(a.latencies, s.Duration)
	case OutcomeError:
		a.errors++
	case OutcomeTimeout:
		a.timeouts++
	}
}

func (a *aggregator) result(wall time.Duration) AggregateMetric {
	m := AggregateMetric{
		Name:      a.name,
		Role:      a.role,
		Count:     a.count,
		Successes: a.successes,
		Errors:    a.errors,
		Timeouts:  a.timeouts,
		Rows:      a.rows,
	}
	if wall > 0 {
		m.Throughput = float64(a.successes) / wall.Seconds()
	}
	n := len(a.latencies)
	if n == 0 {
		return m
	}

	sort.Slice(a.latencies, func(i, j int) bool { return a.latencies[i] < a.latencies[j] })
	m.Min = a.latencies[0]
	m.Max = a.latencies[n-1]

	var sum float64
	for _, d := range a.latencies {
		sum += float64(d)
	}
	mean := sum / float64(n)
	var sq float64
	for _, d := range a.latencies {
		diff := float64(d) - mean
		sq += diff * diff
	}
	m.Mean = time.Duration(mean)
	m.StdDev = time.Duration(math.Sqrt(sq / float64(n)))
	m.P50 = Percentile(a.latencies, 50)
	m.P95 = Percentile(a.latencies, 95)
	m.P99 = Percentile(a.latencies, 99)
	return m
}

// sortMetrics orders writes before reads, then by name.
func sortMetrics(metrics []AggregateMetric) {
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Role != metrics[j].Role {
			return metrics[i].Role == RoleWriter
		}
		return metrics[i].Name < metrics[j].Name
	})
}

// Evaluate applies the benchmark failure rule: the writer as a whole and
// every individual reader must have at least one successful sample.
func (r *Report) Evaluate() {
	r.Failed = false
	r.FailureReasons = nil

	var writers, writerSuccesses int64
	for _, p := range r.Producers {
		switch p.Role {
		case RoleWriter:
			writers++
			writerSuccesses += p.Successes
		case RoleReader:
			if p.Successes == 0 {
				r.FailureReasons = append(r.FailureReasons,
					fmt.Sprintf("%s completed no successful queries", p.Name))
			}
		}
	}
	if writers > 0 && writerSuccesses == 0 {
		r.FailureReasons = append([]string{"writer completed no successful writes"}, r.FailureReasons...)
	}
	r.Failed = len(r.FailureReasons) > 0
}

// Totals sums the metrics of one role.
func (r *Report) Totals(role Role) AggregateMetric {
	t := AggregateMetric{Name: string(role), Role: role}
	for _, m := range r.Metrics {
		if m.Role != role {
			continue
		}
		t.Count += m.Count
		t.Successes += m.Successes
		t.Errors += m.Errors
		t.Timeouts += m.Timeouts
		t.Rows += m.Rows
		t.Throughput += m.Throughput
	}
	return t
}

// Print writes the report as an aligned table or as JSON.
func (r *Report) Print(w io.Writer, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r.jsonView())
	}

	fmt.Fprintf(w, "Run %s on %s: %s wall clock\n\n", r.RunID, r.Backend, r.Wall.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "NAME\tROLE\tCOUNT\tERRORS\tTIMEOUTS\tMIN\tMEAN\tP50\tP95\tP99\tMAX\tSTDDEV\tOPS/S\t")
	for _, m := range r.Metrics {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t\n",
			m.Name, m.Role, m.Count, m.Errors, m.Timeouts,
			ms(m.Min), ms(m.Mean), ms(m.P50), ms(m.P95), ms(m.P99), ms(m.Max), ms(m.StdDev),
			m.Throughput)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	writes, reads := r.Totals(RoleWriter), r.Totals(RoleReader)
	fmt.Fprintf(w, "\nwrites: %d (%d errors, %d timeouts, %d skipped slots), %.2f/s\n",
		writes.Count, writes.Errors, writes.Timeouts, r.SkippedSlots, writes.Throughput)
	fmt.Fprintf(w, "reads:  %d (%d errors, %d timeouts), %.2f/s\n",
		reads.Count, reads.Errors, reads.Timeouts, reads.Throughput)

	for _, f := range r.Fatal {
		fmt.Fprintf(w, "fatal: %s\n", f)
	}
	if r.Failed {
		fmt.Fprintf(w, "BENCHMARK FAILED: %s\n", strings.Join(r.FailureReasons, "; "))
	}
	return nil
}

// LogSummary writes the headline numbers through the structured logger.
func (r *Report) LogSummary() {
	writes, reads := r.Totals(RoleWriter), r.Totals(RoleReader)
	logging.Info().
		Str("run_id", r.RunID).
		Dur("duration", r.Wall).
		Int64("writes", writes.Count).
		Int64("write_errors", writes.Errors+writes.Timeouts).
		Int64("skipped_slots", r.SkippedSlots).
		Int64("reads", reads.Count).
		Int64("read_errors", reads.Errors+reads.Timeouts).
		Float64("write_tps", writes.Throughput).
		Float64("read_qps", reads.Throughput).
		Bool("failed", r.Failed).
		Msg("Final summary")

	for _, m := range r.Metrics {
		logging.Debug().
			Str("name", m.Name).
			Int64("count", m.Count).
			Int64("errors", m.Errors).
			Int64("timeouts", m.Timeouts).
			Float64("p50_ms", msFloat(m.P50)).
			Float64("p99_ms", msFloat(m.P99)).
			Msg("")
	}
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.2fms", msFloat(d))
}

func msFloat(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type jsonMetric struct {
	Name       string  `json:"name"`
	Role       Role    `json:"role"`
	Count      int64   `json:"count"`
	Successes  int64   `json:"successes"`
	Errors     int64   `json:"errors"`
	Timeouts   int64   `json:"timeouts"`
	Rows       int64   `json:"rows"`
	MinMs      float64 `json:"min_ms"`
	MeanMs     float64 `json:"mean_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
	MaxMs      float64 `json:"max_ms"`
	StdDevMs   float64 `json:"stddev_ms"`
	Throughput float64 `json:"throughput"`
}

type jsonReport struct {
	RunID          string            `json:"run_id"`
	Backend        string            `json:"backend"`
	Start          time.Time         `json:"start"`
	CancelledAt    time.Time         `json:"cancelled_at"`
	WallSeconds    float64           `json:"wall_seconds"`
	SkippedSlots   int64             `json:"skipped_slots"`
	LateSamples    int64             `json:"late_samples"`
	Metrics        []jsonMetric      `json:"metrics"`
	Producers      []ProducerSummary `json:"producers"`
	Fatal          []string          `json:"fatal,omitempty"`
	Failed         bool              `json:"failed"`
	FailureReasons []string          `json:"failure_reasons,omitempty"`
}

func (r *Report) jsonView() jsonReport {
	out := jsonReport{
		RunID:          r.RunID,
		Backend:        r.Backend,
		Start:          r.Start,
		CancelledAt:    r.CancelledAt,
		WallSeconds:    r.Wall.Seconds(),
		SkippedSlots:   r.SkippedSlots,
		LateSamples:    r.LateSamples,
		Producers:      r.Producers,
		Fatal:          r.Fatal,
		Failed:         r.Failed,
		FailureReasons: r.FailureReasons,
	}
	for _, m := range r.Metrics {
		out.Metrics = append(out.Metrics, jsonMetric{
			Name:       m.Name,
			Role:       m.Role,
			Count:      m.Count,
			Successes:  m.Successes,
			Errors:     m.Errors,
			Timeouts:   m.Timeouts,
			Rows:       m.Rows,
			MinMs:      msFloat(m.Min),
			MeanMs:     msFloat(m.Mean),
			P50Ms:      msFloat(m.P50),
			P95Ms:      msFloat(m.P95),
			P99Ms:      msFloat(m.P99),
			MaxMs:      msFloat(m.Max),
			StdDevMs:   msFloat(m.StdDev),
			Throughput: m.Throughput,
		})
	}
	return out
}
