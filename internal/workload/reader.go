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
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/datagen"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

// Query selection modes.
const (
	SelectWeighted = "weighted"
	SelectCycle    = "cycle"
)

// ReaderConfig configures one reader worker.
type ReaderConfig struct {
	// Selection is SelectWeighted or SelectCycle.
	Selection string

	// Seed seeds this worker's parameter and query draws.
	Seed uint64

	// CallTimeout bounds each query.
	CallTimeout time.Duration
}

// Reader is one replica query worker. It owns its replica handle and never
// shares it.
type Reader struct {
	name     string
	cfg      ReaderConfig
	replica  backend.Replica
	producer *Producer
	registry *Registry
	queries  []catalog.QueryDefinition
	picker   *datagen.Weighted[int]
	cursor   int
	faker    *datagen.Faker
	log      zerolog.Logger
}

// NewReader creates reader worker index (0-based). Queries with zero
// weight are never issued.
func NewReader(index int, cfg ReaderConfig, replica backend.Replica, rec *Recorder, reg *Registry, cat *catalog.Catalog) (*Reader, error) {
	var (
		queries []catalog.QueryDefinition
		weights []int
	)
	for _, q := range cat.Queries {
		if q.Weight > 0 {
			queries = append(queries, q)
			weights = append(weights, q.Weight)
		}
	}
	if len(queries) == 0 {
		return nil, errors.New("no queries with positive weight")
	}

	name := fmt.Sprintf("reader-%d", index+1)
	r := &Reader{
		name:     name,
		cfg:      cfg,
		replica:  replica,
		producer: rec.Producer(name, RoleReader),
		registry: reg,
		queries:  queries,
		cursor:   index % len(queries),
		faker:    datagen.NewFakerWithSeed(cfg.Seed + uint64(index) + 1),
		log:      logging.With("component", name),
	}

	switch cfg.Selection {
	case SelectWeighted, "":
		picker, err := datagen.NewWeighted(indexes(len(queries)), weights)
		if err != nil {
			return nil, err
		}
		r.picker = picker
	case SelectCycle:
	default:
		return nil, fmt.Errorf("unknown query selection %q", cfg.Selection)
	}
	return r, nil
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Name returns the worker name.
func (r *Reader) Name() string {
	return r.name
}

// Run issues queries until ctx is done. The only error returned is a lost
// replica connection.
func (r *Reader) Run(ctx context.Context) error {
	r.log.Debug().Msg("Reader started")
	defer r.log.Debug().Msg("Reader stopped")

	for ctx.Err() == nil {
		q := r.next()
		if err := r.execute(ctx, q, r.params(q)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) next() catalog.QueryDefinition {
	if r.picker != nil {
		return r.queries[r.picker.Pick(r.faker)]
	}
	q := r.queries[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.queries)
	return q
}

// params samples the query's parameters from the registry. A parameter
// whose entity has no live rows falls back to a value that matches
// nothing, which still exercises the query.
func (r *Reader) params(q catalog.QueryDefinition) catalog.Params {
	if len(q.Params) == 0 {
		return nil
	}
	p := make(catalog.Params, len(q.Params))
	for _, kind := range q.Params {
		switch kind {
		case catalog.ParamCustomerID:
			id, _ := r.registry.Sample(catalog.Customer, r.faker)
			p[kind] = id
		case catalog.ParamAccountID:
			id, _ := r.registry.Sample(catalog.Account, r.faker)
			p[kind] = id
		case catalog.ParamSecurityID:
			id, _ := r.registry.Sample(catalog.Security, r.faker)
			p[kind] = id
		case catalog.ParamSector:
			if s, ok := r.registry.SampleSecurity(r.faker); ok && s.Sector != "" {
				p[kind] = s.Sector
			} else {
				p[kind] = r.faker.Sector()
			}
		case catalog.ParamTicker:
			if s, ok := r.registry.SampleSecurity(r.faker); ok && s.Ticker != "" {
				p[kind] = s.Ticker
			} else {
				p[kind] = r.faker.Ticker()
			}
		}
	}
	return p
}

func (r *Reader) execute(ctx context.Context, q catalog.QueryDefinition, params catalog.Params) error {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.CallTimeout)
	start := time.Now()
	rows, err := r.replica.ExecuteRead(callCtx, q, params)
	elapsed := time.Since(start)
	err = backend.Classify(callCtx, q.Name, r.cfg.CallTimeout, err)
	cancel()

	sample := Sample{Name: q.Name, Start: start, Duration: elapsed, Rows: rows}
	switch {
	case err == nil:
	case backend.IsTimeout(err):
		sample.Outcome = OutcomeTimeout
	default:
		sample.Outcome = OutcomeError
	}
	r.producer.Record(sample)

	if err != nil {
		if errors.Is(err, backend.ErrConnectionLost) {
			r.log.Error().Err(err).Msg("Replica connection lost")
			return &backend.ConnectionError{Role: "replica", Label: r.name, Err: err}
		}
		r.log.Debug().Err(err).Str("query", q.Name).Msg("Query failed")
	}
	return nil
}
