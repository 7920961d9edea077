//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package sqlite is the embedded backend: one database file in WAL mode,
// where the primary and the replica are the same file opened through
// separate connections.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/backend/sqlgen"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

const description = "Embedded single-file SQLite database in WAL mode"

func init() {
	backend.Register("sqlite", description, New)
}

var dialect = sqlgen.SQLite

// Backend opens connections to a SQLite file.
type Backend struct {
	path string

	// admin serves corpus loading and the schema loader.
	admin *sql.DB
}

// New opens the database file named by cfg.DBPath, creating it if needed.
func New(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
	return Open(ctx, cfg.DBPath)
}

// Open opens the database file at path.
func Open(ctx context.Context, path string) (*Backend, error) {
	if path == "" {
		return nil, errors.New("sqlite backend requires a database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	admin, err := openDB(ctx, path)
	if err != nil {
		return nil, &backend.ConnectionError{Role: "primary", Label: "admin", Err: err}
	}

	logging.Debug().Str("path", path).Msg("Opened SQLite database")
	return &Backend{path: path, admin: admin}, nil
}

// dsn enables WAL, foreign keys and a busy timeout on every connection.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// openDB opens a database limited to a single connection.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (b *Backend) Name() string { return "sqlite" }

func (b *Backend) Description() string { return description }

// Path returns the database file path.
func (b *Backend) Path() string { return b.path }

// Close closes the admin connection.
func (b *Backend) Close() error {
	return b.admin.Close()
}

// OpenPrimary opens a dedicated write connection.
func (b *Backend) OpenPrimary(ctx context.Context, label string) (backend.Primary, error) {
	h, err := b.open(ctx, "primary", label)
	if err != nil {
		return nil, err
	}
	return &Primary{handle: h}, nil
}

// OpenReplica opens a dedicated read connection on the same file.
func (b *Backend) OpenReplica(ctx context.Context, label string) (backend.Replica, error) {
	h, err := b.open(ctx, "replica", label)
	if err != nil {
		return nil, err
	}
	return &Replica{handle: h}, nil
}

func (b *Backend) open(ctx context.Context, role, label string) (*handle, error) {
	db, err := openDB(ctx, b.path)
	if err != nil {
		return nil, &backend.ConnectionError{Role: role, Label: label, Err: err}
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, &backend.ConnectionError{Role: role, Label: label, Err: err}
	}
	life, cancel := context.WithCancel(context.Background())
	return &handle{label: label, db: db, conn: conn, life: life, cancel: cancel}, nil
}

// LoadCorpus reads every row identity through the admin connection.
func (b *Backend) LoadCorpus(ctx context.Context) (*catalog.Corpus, error) {
	start := time.Now()
	c := &catalog.Corpus{MaxIDs: make(map[catalog.Entity]int64)}
	for _, e := range catalog.Entities {
		if err := b.loadEntity(ctx, c, e); err != nil {
			return nil, err
		}
	}
	logging.Debug().Int("rows", c.Size()).Dur("elapsed", time.Since(start)).Msg("Read corpus")
	return c, nil
}

func (b *Backend) loadEntity(ctx context.Context, c *catalog.Corpus, e catalog.Entity) error {
	rows, err := b.admin.QueryContext(ctx, sqlgen.CorpusQuery(e))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", e.Table(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var r sqlgen.CorpusRow
		if err := rows.Scan(&r.ID, &r.Parent, &r.Second, &r.Ticker, &r.Sector); err != nil {
			return fmt.Errorf("failed to read %s: %w", e.Table(), err)
		}
		sqlgen.Append(c, e, r)
	}
	return rows.Err()
}

// handle owns one connection of its own database pool.
type handle struct {
	label  string
	db     *sql.DB
	conn   *sql.Conn
	life   context.Context
	cancel context.CancelFunc
}

// bind ties a call's context to the handle so that Close interrupts it.
func (h *handle) bind(ctx context.Context) (context.Context, func()) {
	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(h.life, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

// lost maps errors caused by a closed handle to ErrConnectionLost.
func (h *handle) lost(err error) error {
	if err == nil {
		return nil
	}
	if h.life.Err() != nil || errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%s: %w", h.label, backend.ErrConnectionLost)
	}
	return err
}

// Close interrupts any in-flight call and closes the connection.
func (h *handle) Close(_ context.Context) error {
	h.cancel()
	err := h.conn.Close()
	if dbErr := h.db.Close(); err == nil {
		err = dbErr
	}
	if errors.Is(err, sql.ErrConnDone) {
		return nil
	}
	return err
}

// Primary is a SQLite write handle.
type Primary struct {
	*handle
}

// ExecuteWrite runs op in its own transaction.
func (p *Primary) ExecuteWrite(ctx context.Context, op catalog.Operation) (int64, error) {
	stmt, args, err := dialect.Write(op)
	if err != nil {
		return 0, err
	}
	ctx, done := p.bind(ctx)
	defer done()

	tx, err := p.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, p.lost(err)
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		_ = tx.Rollback()
		return 0, p.lost(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, p.lost(err)
	}
	return op.ID, nil
}

// Replica is a SQLite read handle.
type Replica struct {
	*handle
}

// ExecuteRead runs the query's view and counts the rows.
func (r *Replica) ExecuteRead(ctx context.Context, q catalog.QueryDefinition, params catalog.Params) (int64, error) {
	stmt, args, err := dialect.Read(q, params)
	if err != nil {
		return 0, err
	}
	ctx, done := r.bind(ctx)
	defer done()

	rows, err := r.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return 0, r.lost(err)
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		n++
	}
	return n, r.lost(rows.Err())
}
