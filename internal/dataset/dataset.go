//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package dataset loads the CSV corpus (one file per entity, header row
// first) into a backend.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

// Options configures a dataset load.
type Options struct {
	// Dir holds customers.csv, accounts.csv and the other entity files.
	Dir string

	// BatchSize is the number of rows handed to the loader per call.
	BatchSize int

	// ProgressInterval logs progress every this many rows.
	ProgressInterval int64
}

// DefaultOptions returns options for loading from dir.
func DefaultOptions(dir string) Options {
	return Options{Dir: dir, BatchSize: 5000, ProgressInterval: 100000}
}

// Result summarizes a completed load.
type Result struct {
	Rows    map[catalog.Entity]int64
	Bytes   int64
	Elapsed time.Duration
}

// Total returns the number of rows loaded across all entities.
func (r *Result) Total() int64 {
	var n int64
	for _, c := range r.Rows {
		n += c
	}
	return n
}

// Check verifies that every entity file exists and starts with the
// expected header, without loading anything.
func Check(dir string) error {
	for _, e := range catalog.Entities {
		f, err := os.Open(filepath.Join(dir, e.DataFile()))
		if err != nil {
			return err
		}
		header, err := csv.NewReader(f).Read()
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("%s: failed to read header: %w", e.DataFile(), err)
		}
		if err := checkHeader(e, header); err != nil {
			return err
		}
	}
	return nil
}

// Load streams every entity file into loader in foreign key order, then
// advances the id sequences past the loaded ids. Backends that keep a load
// record get the data directory and row counts.
func Load(ctx context.Context, loader backend.Loader, opts Options) (*Result, error) {
	if opts.BatchSize < 1 {
		return nil, errors.New("batch size must be at least 1")
	}
	if opts.ProgressInterval < 1 {
		opts.ProgressInterval = int64(opts.BatchSize)
	}
	if err := Check(opts.Dir); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{Rows: make(map[catalog.Entity]int64)}
	for _, e := range catalog.Entities {
		n, size, err := loadFile(ctx, loader, e, opts)
		if err != nil {
			return nil, err
		}
		res.Rows[e] = n
		res.Bytes += size
	}

	logging.Info().Msg("Advancing id sequences")
	if err := loader.AdvanceSequences(ctx); err != nil {
		return nil, fmt.Errorf("failed to advance sequences: %w", err)
	}
	res.Elapsed = time.Since(start)

	if rec, ok := loader.(backend.LoadRecorder); ok {
		values := map[string]string{
			"data_dir": opts.Dir,
			"rows":     strconv.FormatInt(res.Total(), 10),
		}
		for e, n := range res.Rows {
			values[e.Table()+"_rows"] = strconv.FormatInt(n, 10)
		}
		if err := rec.RecordLoad(ctx, values); err != nil {
			return nil, fmt.Errorf("failed to record load metadata: %w", err)
		}
	}

	logging.Info().
		Str("rows", humanize.Comma(res.Total())).
		Str("size", humanize.Bytes(uint64(res.Bytes))).
		Dur("elapsed", res.Elapsed).
		Msg("Dataset loaded")
	return res, nil
}

func loadFile(ctx context.Context, loader backend.Loader, e catalog.Entity, opts Options) (int64, int64, error) {
	path := filepath.Join(opts.Dir, e.DataFile())
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	logging.Info().
		Str("table", e.Table()).
		Str("file", path).
		Str("size", humanize.Bytes(uint64(size))).
		Msg("Loading table")

	r := csv.NewReader(f)
	r.ReuseRecord = true
	header, err := r.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("%s: failed to read header: %w", e.DataFile(), err)
	}
	if err := checkHeader(e, header); err != nil {
		return 0, 0, err
	}
	r.FieldsPerRecord = len(header)

	cols := e.Columns()
	names := e.ColumnNames()
	progress := newProgress(e.Table(), opts.ProgressInterval)
	batch := make([][]any, 0, opts.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := loader.LoadRows(ctx, e, names, batch)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", e.Table(), err)
		}
		progress.update(n)
		batch = batch[:0]
		return nil
	}

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return progress.rows, size, err
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return progress.rows, size, fmt.Errorf("%s: %w", e.DataFile(), err)
		}
		row := make([]any, len(cols))
		for i, col := range cols {
			if row[i], err = ParseValue(col, record[i]); err != nil {
				return progress.rows, size, fmt.Errorf("%s line %d: %w", e.DataFile(), line, err)
			}
		}
		batch = append(batch, row)
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return progress.rows, size, err
			}
		}
	}
	if err := flush(); err != nil {
		return progress.rows, size, err
	}
	progress.done()
	return progress.rows, size, nil
}

// progress logs row counts each time a multiple of interval is crossed.
type progress struct {
	table    string
	rows     int64
	interval int64
}

func newProgress(table string, interval int64) *progress {
	return &progress{table: table, interval: interval}
}

func (p *progress) update(n int64) {
	old := p.rows
	p.rows += n
	if p.rows/p.interval > old/p.interval {
		logging.Info().
			Str("table", p.table).
			Int64("rows", p.rows).
			Msg("Loading data")
	}
}

func (p *progress) done() {
	logging.Info().
		Str("table", p.table).
		Int64("rows", p.rows).
		Msg("Table complete")
}
