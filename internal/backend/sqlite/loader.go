//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/backend/sqlgen"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

var _ backend.Loader = (*Backend)(nil)

// SQLite limits a statement to 32766 bound parameters.
const maxParams = 32766

// CreateSchema creates the tables and the analytical views.
func (b *Backend) CreateSchema(ctx context.Context) error {
	for _, stmt := range dialect.CreateTables() {
		if _, err := b.admin.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	for _, name := range dialect.ViewNames() {
		stmt, err := dialect.View(name)
		if err != nil {
			return err
		}
		if _, err := b.admin.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create view %s: %w", name, err)
		}
	}
	logging.Debug().Str("path", b.path).Msg("Created schema")
	return nil
}

// DropSchema drops the views and tables.
func (b *Backend) DropSchema(ctx context.Context) error {
	for _, stmt := range dialect.DropStatements(catalog.Default()) {
		if _, err := b.admin.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop schema: %w", err)
		}
	}
	return nil
}

// LoadRows inserts rows with multi-row INSERTs inside one transaction.
func (b *Backend) LoadRows(ctx context.Context, e catalog.Entity, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	perStmt := maxParams / len(columns)

	tx, err := b.admin.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var loaded int64
	for start := 0; start < len(rows); start += perStmt {
		end := min(start+perStmt, len(rows))
		args := make([]any, 0, (end-start)*len(columns))
		for _, row := range rows[start:end] {
			for _, v := range row {
				args = append(args, toSQLite(v))
			}
		}
		res, err := tx.ExecContext(ctx, dialect.InsertRows(e.Table(), columns, end-start), args...)
		if err != nil {
			return loaded, fmt.Errorf("failed to load %s: %w", e.Table(), err)
		}
		n, _ := res.RowsAffected()
		loaded += n
	}
	return loaded, tx.Commit()
}

// toSQLite stores timestamps in the text form the views compare against.
func toSQLite(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(sqlgen.TimestampLayout)
	}
	return v
}

// AdvanceSequences is a no-op: SQLite assigns rowids from max(rowid).
func (b *Backend) AdvanceSequences(context.Context) error {
	return nil
}
