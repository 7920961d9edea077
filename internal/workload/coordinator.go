//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package workload runs the benchmark: a paced writer against the primary
// and a pool of query workers against the replica, under one deadline.
package workload

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

// State is the coordinator lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config holds everything a run needs.
type Config struct {
	Backend backend.Backend
	Catalog *catalog.Catalog

	// RunID identifies the run; a random UUID when empty.
	RunID string

	Duration          time.Duration
	Rate              float64
	Concurrency       int
	WriterConnections int
	Seed              uint64
	Weights           []int // insert, update, delete
	CallTimeout       time.Duration
	GracePeriod       time.Duration
	ReportInterval    time.Duration
	CorpusDeletes     bool
	QuerySelection    string

	// MetricsAddr serves Prometheus metrics for the run's duration.
	MetricsAddr string
}

// worker is a running writer or reader.
type worker struct {
	name  string
	done  chan struct{}
	err   error
	close func()
}

// Coordinator owns one benchmark run: Idle, Running, Draining, Done.
type Coordinator struct {
	cfg      Config
	state    atomic.Int32
	started  atomic.Bool
	recorder *Recorder
	registry *Registry

	cancelMu    sync.Mutex
	cancelledAt time.Time

	// writer is set once the run starts.
	writer atomic.Pointer[Writer]
}

// NewCoordinator validates cfg and creates an idle coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("a backend is required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1")
	}
	if err := ValidateRate(cfg.Rate); err != nil {
		return nil, err
	}
	if cfg.WriterConnections < 1 {
		cfg.WriterConnections = 1
	}
	if len(cfg.Weights) == 0 {
		cfg.Weights = []int{45, 45, 10}
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 10 * time.Second
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Coordinator{
		cfg:      cfg,
		recorder: NewRecorder(),
		registry: NewRegistry(cfg.CorpusDeletes),
	}, nil
}

// RunID returns the run identifier.
func (c *Coordinator) RunID() string {
	return c.cfg.RunID
}

// State returns the current state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Recorder returns the run's metrics recorder.
func (c *Coordinator) Recorder() *Recorder {
	return c.recorder
}

// Registry returns the run's id registry.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// CancelledAt returns the instant the run's cancellation was observed, or
// the zero time while running.
func (c *Coordinator) CancelledAt() time.Time {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	return c.cancelledAt
}

func (c *Coordinator) transition(to State) {
	from := State(c.state.Swap(int32(to)))
	logging.Debug().Str("from", from.String()).Str("to", to.String()).Msg("Run state changed")
}

// Run executes the benchmark and returns its report. The error is non-nil
// only for fatal conditions: connections that could not be opened, lost
// connections and workers that did not stop within the grace period. A
// report is returned whenever the run got past opening connections.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("run already started")
	}

	corpus, err := c.cfg.Backend.LoadCorpus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus ids: %w", err)
	}
	c.registry.Seed(corpus)
	logging.Info().Int("rows", corpus.Size()).Msg("Loaded corpus ids")

	primaries, replicas, err := c.open(ctx)
	if err != nil {
		c.transition(StateDone)
		return nil, err
	}

	writer, err := NewWriter(WriterConfig{
		Rate:        c.cfg.Rate,
		Weights:     c.cfg.Weights,
		Seed:        c.cfg.Seed,
		CallTimeout: c.cfg.CallTimeout,
	}, primaries, c.recorder, c.registry, c.cfg.Catalog)
	if err != nil {
		closeAll(primaries, replicas)
		return nil, err
	}
	c.writer.Store(writer)

	readers := make([]*Reader, len(replicas))
	for i, rep := range replicas {
		readers[i], err = NewReader(i, ReaderConfig{
			Selection:   c.cfg.QuerySelection,
			Seed:        c.cfg.Seed,
			CallTimeout: c.cfg.CallTimeout,
		}, rep, c.recorder, c.registry, c.cfg.Catalog)
		if err != nil {
			closeAll(primaries, replicas)
			return nil, err
		}
	}

	var exporter *Exporter
	if c.cfg.MetricsAddr != "" {
		exporter = NewExporter(c.cfg.MetricsAddr, c)
		if err := exporter.Start(); err != nil {
			closeAll(primaries, replicas)
			return nil, err
		}
	}

	// Idle -> Running
	start := time.Now()
	end := start.Add(c.cfg.Duration)
	runCtx, cancel := context.WithDeadline(ctx, end)
	defer cancel()
	stop := context.AfterFunc(runCtx, func() {
		c.cancelMu.Lock()
		c.cancelledAt = time.Now()
		c.cancelMu.Unlock()
	})
	defer stop()

	c.transition(StateRunning)
	logging.Info().
		Str("run_id", c.cfg.RunID).
		Str("backend", c.cfg.Backend.Name()).
		Dur("duration", c.cfg.Duration).
		Float64("tps", c.cfg.Rate).
		Int("concurrency", c.cfg.Concurrency).
		Msg("Starting benchmark")

	var workers []*worker
	spawn := func(name string, closer func(), fn func() error) {
		wk := &worker{name: name, done: make(chan struct{}), close: closer}
		workers = append(workers, wk)
		go func() {
			defer close(wk.done)
			if err := fn(); err != nil {
				wk.err = err
				// A lost connection aborts the whole run.
				cancel()
			}
		}()
	}

	spawn("writer", func() { closePrimaries(primaries) }, func() error {
		return writer.Run(runCtx, start, end)
	})
	for i, r := range readers {
		rep := replicas[i]
		spawn(r.Name(), func() { _ = rep.Close(context.Background()) }, func() error {
			return r.Run(runCtx)
		})
	}

	if c.cfg.ReportInterval > 0 {
		go c.report(runCtx, c.cfg.ReportInterval)
	}

	<-runCtx.Done()

	// Running -> Draining
	c.transition(StateDraining)
	if ctx.Err() != nil {
		logging.Warn().Msg("Run interrupted, draining workers")
	}

	var fatal *multierror.Error
	hung := c.drain(workers)
	for _, wk := range workers {
		if !hung[wk.name] && wk.err != nil {
			fatal = multierror.Append(fatal, fmt.Errorf("%s: %w", wk.name, wk.err))
		}
	}
	for _, wk := range workers {
		if hung[wk.name] {
			fatal = multierror.Append(fatal, fmt.Errorf("%s did not stop within the %s grace period", wk.name, c.cfg.GracePeriod))
		}
	}
	wall := time.Since(start)

	// Draining -> Done
	rep := c.recorder.Finalize(wall)
	rep.RunID = c.cfg.RunID
	rep.Backend = c.cfg.Backend.Name()
	rep.Start = start
	rep.CancelledAt = c.CancelledAt()
	rep.SkippedSlots = writer.Skipped()
	rep.LateSamples = c.recorder.Late()
	for _, err := range fatal.WrappedErrors() {
		rep.Fatal = append(rep.Fatal, err.Error())
	}
	rep.Evaluate()

	closeAll(primaries, replicas)
	if exporter != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		_ = exporter.Shutdown(shutdownCtx)
		done()
	}
	c.transition(StateDone)

	return rep, fatal.ErrorOrNil()
}

// open opens every primary and replica handle concurrently. On any
// failure all handles opened so far are closed.
func (c *Coordinator) open(ctx context.Context) ([]backend.Primary, []backend.Replica, error) {
	primaries := make([]backend.Primary, c.cfg.WriterConnections)
	replicas := make([]backend.Replica, c.cfg.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := range primaries {
		label := "writer"
		if len(primaries) > 1 {
			label = fmt.Sprintf("writer-%d", i+1)
		}
		g.Go(func() error {
			p, err := c.cfg.Backend.OpenPrimary(gctx, label)
			if err != nil {
				return wrapConnErr("primary", label, err)
			}
			primaries[i] = p
			return nil
		})
	}
	for i := range replicas {
		label := fmt.Sprintf("reader-%d", i+1)
		g.Go(func() error {
			r, err := c.cfg.Backend.OpenReplica(gctx, label)
			if err != nil {
				return wrapConnErr("replica", label, err)
			}
			replicas[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		closeAll(primaries, replicas)
		return nil, nil, err
	}
	logging.Info().
		Int("primary", len(primaries)).
		Int("replica", len(replicas)).
		Msg("Opened connections")
	return primaries, replicas, nil
}

// drain waits for every worker up to the grace period, then closes the
// handles of the ones still running. It returns the names of the workers
// that had to be closed.
func (c *Coordinator) drain(workers []*worker) map[string]bool {
	hung := make(map[string]bool)
	grace := time.NewTimer(c.cfg.GracePeriod)
	defer grace.Stop()

	expired := false
	for _, wk := range workers {
		if expired {
			select {
			case <-wk.done:
			default:
				hung[wk.name] = true
			}
			continue
		}
		select {
		case <-wk.done:
		case <-grace.C:
			expired = true
			select {
			case <-wk.done:
			default:
				hung[wk.name] = true
			}
		}
	}

	for _, wk := range workers {
		if hung[wk.name] {
			logging.Error().Str("worker", wk.name).Dur("grace_period", c.cfg.GracePeriod).
				Msg("Worker did not stop, closing its connection")
			wk.close()
		}
	}
	return hung
}

func wrapConnErr(role, label string, err error) error {
	if _, ok := err.(*backend.ConnectionError); ok {
		return err
	}
	return &backend.ConnectionError{Role: role, Label: label, Err: err}
}

func closePrimaries(ps []backend.Primary) {
	for _, p := range ps {
		if p != nil {
			_ = p.Close(context.Background())
		}
	}
}

func closeAll(ps []backend.Primary, rs []backend.Replica) {
	closePrimaries(ps)
	for _, r := range rs {
		if r != nil {
			_ = r.Close(context.Background())
		}
	}
}
