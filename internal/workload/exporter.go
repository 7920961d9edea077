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
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

const metricPrefix = "rrbench_"

var (
	operationsDesc = prometheus.NewDesc(
		metricPrefix+"operations_total",
		"Operations completed by a worker, by outcome",
		[]string{"run_id", "producer", "role", "outcome"},
		nil,
	)
	latencyDesc = prometheus.NewDesc(
		metricPrefix+"operation_latency_seconds_total",
		"Cumulative latency of the operations completed by a worker",
		[]string{"run_id", "producer", "role"},
		nil,
	)
	skippedDesc = prometheus.NewDesc(
		metricPrefix+"write_slots_skipped_total",
		"Write deadlines passed over because the writer was busy",
		[]string{"run_id"},
		nil,
	)
	liveIDsDesc = prometheus.NewDesc(
		metricPrefix+"live_ids",
		"Ids of an entity currently known to exist",
		[]string{"run_id", "entity"},
		nil,
	)
	stateDesc = prometheus.NewDesc(
		metricPrefix+"run_state",
		"Coordinator state (0 idle, 1 running, 2 draining, 3 done)",
		[]string{"run_id"},
		nil,
	)
)

// RunCollector exposes a run's live counters to Prometheus. It reads the
// producers' atomic counters and never touches their sample buffers.
type RunCollector struct {
	coord *Coordinator
}

// NewRunCollector creates a collector for the coordinator's run.
func NewRunCollector(c *Coordinator) *RunCollector {
	return &RunCollector{coord: c}
}

func (rc *RunCollector) Describe(desc chan<- *prometheus.Desc) {
	desc <- operationsDesc
	desc <- latencyDesc
	desc <- skippedDesc
	desc <- liveIDsDesc
	desc <- stateDesc
}

func (rc *RunCollector) Collect(metrics chan<- prometheus.Metric) {
	c := rc.coord
	runID := c.RunID()

	for _, l := range c.recorder.Live() {
		role := string(l.Role)
		metrics <- prometheus.MustNewConstMetric(operationsDesc, prometheus.CounterValue,
			float64(l.Successes), runID, l.Producer, role, OutcomeSuccess.String())
		metrics <- prometheus.MustNewConstMetric(operationsDesc, prometheus.CounterValue,
			float64(l.Errors), runID, l.Producer, role, OutcomeError.String())
		metrics <- prometheus.MustNewConstMetric(operationsDesc, prometheus.CounterValue,
			float64(l.Timeouts), runID, l.Producer, role, OutcomeTimeout.String())
		metrics <- prometheus.MustNewConstMetric(latencyDesc, prometheus.CounterValue,
			l.Latency.Seconds(), runID, l.Producer, role)
	}

	var skipped int64
	if w := c.writer.Load(); w != nil {
		skipped = w.Skipped()
	}
	metrics <- prometheus.MustNewConstMetric(skippedDesc, prometheus.CounterValue, float64(skipped), runID)

	for _, e := range catalog.Entities {
		metrics <- prometheus.MustNewConstMetric(liveIDsDesc, prometheus.GaugeValue,
			float64(c.registry.Len(e)), runID, e.String())
	}
	metrics <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, float64(c.State()), runID)
}

// Exporter serves /metrics for one run.
type Exporter struct {
	addr     string
	registry *prometheus.Registry
	server   *http.Server
	listener net.Listener
}

// NewExporter creates an exporter for the coordinator's run on addr.
func NewExporter(addr string, c *Coordinator) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewRunCollector(c))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Exporter{
		addr:     addr,
		registry: reg,
		server:   &http.Server{Handler: mux},
	}
}

// Start begins serving in the background.
func (e *Exporter) Start() error {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}
	e.listener = ln
	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	logging.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return nil
}

// Addr returns the bound address once started.
func (e *Exporter) Addr() string {
	if e.listener == nil {
		return e.addr
	}
	return e.listener.Addr().String()
}

// Gatherer returns the exporter's Prometheus registry.
func (e *Exporter) Gatherer() prometheus.Gatherer {
	return e.registry
}

// Shutdown stops the server.
func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.server.Shutdown(ctx)
}
