//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package postgres is the networked backend: writes go to the primary at
// the writer URL and reads go to a streaming replica at the reader URL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/backend/sqlgen"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/db"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

const description = "PostgreSQL primary with a streaming read replica"

func init() {
	backend.Register("postgres", description, New)
}

var dialect = sqlgen.Postgres

// Backend hands out dedicated connections to the primary and the replica.
type Backend struct {
	writerURL string
	readerURL string

	// admin is a small pool on the primary for corpus and schema work.
	admin *pgxpool.Pool
}

// New connects the admin pool to the primary.
func New(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
	if cfg.WriterURL == "" || cfg.ReaderURL == "" {
		return nil, errors.New("postgres backend requires a writer URL and a reader URL")
	}
	admin, err := db.Connect(ctx, cfg.WriterURL)
	if err != nil {
		return nil, &backend.ConnectionError{Role: "primary", Label: "admin", Err: err}
	}
	b := &Backend{writerURL: cfg.WriterURL, readerURL: cfg.ReaderURL, admin: admin}
	b.logDataset(ctx)
	return b, nil
}

// logDataset reports when and by which version the dataset on the primary
// was loaded, or warns when it was never loaded by this tool.
func (b *Backend) logDataset(ctx context.Context) {
	exists, err := db.MetadataExists(ctx, b.admin)
	if err != nil || !exists {
		logging.Warn().Msg("No load metadata found; run 'pgedge-rrbench load' to create the dataset")
		return
	}
	loadedAt, _ := db.GetMetadataValue(ctx, b.admin, "loaded_at")
	loadedBy, _ := db.GetMetadataValue(ctx, b.admin, "version")
	logging.Info().
		Str("loaded_at", loadedAt).
		Str("version", loadedBy).
		Msg("Found dataset")
}

func (b *Backend) Name() string { return "postgres" }

func (b *Backend) Description() string { return description }

// Close closes the admin pool.
func (b *Backend) Close() error {
	b.admin.Close()
	return nil
}

// OpenPrimary opens a dedicated connection to the writer URL.
func (b *Backend) OpenPrimary(ctx context.Context, label string) (backend.Primary, error) {
	conn, err := db.ConnectSingle(ctx, b.writerURL, label)
	if err != nil {
		return nil, &backend.ConnectionError{Role: "primary", Label: label, Err: err}
	}
	return &Primary{handle: &handle{label: label, conn: conn}}, nil
}

// OpenReplica opens a dedicated connection to the reader URL.
func (b *Backend) OpenReplica(ctx context.Context, label string) (backend.Replica, error) {
	conn, err := db.ConnectSingle(ctx, b.readerURL, label)
	if err != nil {
		return nil, &backend.ConnectionError{Role: "replica", Label: label, Err: err}
	}
	return &Replica{handle: &handle{label: label, conn: conn}}, nil
}

// LoadCorpus reads every row identity from the primary.
func (b *Backend) LoadCorpus(ctx context.Context) (*catalog.Corpus, error) {
	start := time.Now()
	c := &catalog.Corpus{MaxIDs: make(map[catalog.Entity]int64)}
	for _, e := range catalog.Entities {
		rows, err := b.admin.Query(ctx, sqlgen.CorpusQuery(e))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Table(), err)
		}
		var r sqlgen.CorpusRow
		_, err = pgx.ForEachRow(rows, []any{&r.ID, &r.Parent, &r.Second, &r.Ticker, &r.Sector}, func() error {
			sqlgen.Append(c, e, r)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Table(), err)
		}
	}
	logging.Debug().Int("rows", c.Size()).Dur("elapsed", time.Since(start)).Msg("Read corpus")
	return c, nil
}

// handle owns one pgx connection. pgx connections are not safe for
// concurrent use, so Close only tears down the socket while a call is in
// flight and leaves the rest to the failing call.
type handle struct {
	label   string
	conn    *pgx.Conn
	busy    atomic.Bool
	closing atomic.Bool
}

func (h *handle) begin() error {
	h.busy.Store(true)
	if h.closing.Load() || h.conn.IsClosed() {
		h.busy.Store(false)
		return fmt.Errorf("%s: %w", h.label, backend.ErrConnectionLost)
	}
	return nil
}

// end finishes a call and maps failures of a dead connection to
// ErrConnectionLost.
func (h *handle) end(err error) error {
	h.busy.Store(false)
	if err != nil && (h.closing.Load() || h.conn.IsClosed()) {
		return fmt.Errorf("%s: %v: %w", h.label, err, backend.ErrConnectionLost)
	}
	return err
}

// Close closes the connection, aborting an in-flight call.
func (h *handle) Close(ctx context.Context) error {
	if h.closing.Swap(true) {
		return nil
	}
	if h.busy.Load() {
		return h.conn.PgConn().Conn().Close()
	}
	return h.conn.Close(ctx)
}

// Primary is a write handle on the primary.
type Primary struct {
	*handle
}

// ExecuteWrite runs op in its own transaction.
func (p *Primary) ExecuteWrite(ctx context.Context, op catalog.Operation) (int64, error) {
	stmt, args, err := dialect.Write(op)
	if err != nil {
		return 0, err
	}
	if err := p.begin(); err != nil {
		return 0, err
	}
	err = pgx.BeginFunc(ctx, p.conn, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt, args...)
		return err
	})
	if err := p.end(err); err != nil {
		return 0, err
	}
	return op.ID, nil
}

// Replica is a read handle on the replica.
type Replica struct {
	*handle
}

// ExecuteRead runs the query's view and counts the rows.
func (r *Replica) ExecuteRead(ctx context.Context, q catalog.QueryDefinition, params catalog.Params) (int64, error) {
	stmt, args, err := dialect.Read(q, params)
	if err != nil {
		return 0, err
	}
	if err := r.begin(); err != nil {
		return 0, err
	}
	rows, err := r.conn.Query(ctx, stmt, args...)
	if err != nil {
		return 0, r.end(err)
	}
	var n int64
	for rows.Next() {
		n++
	}
	rows.Close()
	return n, r.end(rows.Err())
}
