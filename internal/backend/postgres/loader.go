//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/db"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

var (
	_ backend.Loader       = (*Backend)(nil)
	_ backend.LoadRecorder = (*Backend)(nil)
)

// CreateSchema creates the tables and the analytical views on the primary.
// The replica receives them through replication.
func (b *Backend) CreateSchema(ctx context.Context) error {
	for _, stmt := range dialect.CreateTables() {
		if _, err := b.admin.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	for _, name := range dialect.ViewNames() {
		stmt, err := dialect.View(name)
		if err != nil {
			return err
		}
		if _, err := b.admin.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create view %s: %w", name, err)
		}
	}
	logging.Debug().Msg("Created schema")
	return nil
}

// DropSchema drops the views, the tables and the metadata table.
func (b *Backend) DropSchema(ctx context.Context) error {
	for _, stmt := range dialect.DropStatements(catalog.Default()) {
		if _, err := b.admin.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop schema: %w", err)
		}
	}
	return db.DropMetadata(ctx, b.admin)
}

// LoadRows bulk loads rows with COPY.
func (b *Backend) LoadRows(ctx context.Context, e catalog.Entity, columns []string, rows [][]any) (int64, error) {
	n, err := b.admin.CopyFrom(ctx, pgx.Identifier{e.Table()}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("failed to copy %s: %w", e.Table(), err)
	}
	return n, nil
}

// AdvanceSequences moves every identity sequence past the loaded ids.
func (b *Backend) AdvanceSequences(ctx context.Context) error {
	for _, e := range catalog.Entities {
		if _, err := b.admin.Exec(ctx, dialect.AdvanceSequence(e)); err != nil {
			return fmt.Errorf("failed to advance %s sequence: %w", e.Table(), err)
		}
	}
	return nil
}

// RecordLoad stores load metadata on the primary.
func (b *Backend) RecordLoad(ctx context.Context, values map[string]string) error {
	return db.SaveMetadata(ctx, b.admin, values)
}
