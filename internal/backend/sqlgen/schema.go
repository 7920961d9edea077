//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package sqlgen

import (
	"fmt"

	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
)

// CreateTables returns the CREATE TABLE and CREATE INDEX statements, parents
// before children. Every foreign key cascades deletes.
func (d Dialect) CreateTables() []string {
	id := d.IDColumn
	return []string{
		`CREATE TABLE IF NOT EXISTS customers (
    customer_id ` + id + `,
    name        VARCHAR(100) NOT NULL,
    address     VARCHAR(200),
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS accounts (
    account_id   ` + id + `,
    customer_id  BIGINT NOT NULL REFERENCES customers(customer_id) ON DELETE CASCADE,
    account_type VARCHAR(20) NOT NULL,
    balance      NUMERIC(14,2) NOT NULL DEFAULT 0,
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS securities (
    security_id ` + id + `,
    ticker      VARCHAR(10) NOT NULL UNIQUE,
    name        VARCHAR(200),
    sector      VARCHAR(50),
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS trades (
    trade_id    ` + id + `,
    account_id  BIGINT NOT NULL REFERENCES accounts(account_id) ON DELETE CASCADE,
    security_id BIGINT NOT NULL REFERENCES securities(security_id) ON DELETE CASCADE,
    trade_type  VARCHAR(4) NOT NULL CHECK (trade_type IN ('buy', 'sell')),
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    price       NUMERIC(12,2) NOT NULL CHECK (price > 0),
    trade_date  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS orders (
    order_id    ` + id + `,
    account_id  BIGINT NOT NULL REFERENCES accounts(account_id) ON DELETE CASCADE,
    security_id BIGINT NOT NULL REFERENCES securities(security_id) ON DELETE CASCADE,
    order_type  VARCHAR(4) NOT NULL CHECK (order_type IN ('buy', 'sell')),
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    limit_price NUMERIC(12,2),
    status      VARCHAR(10) NOT NULL CHECK (status IN ('pending', 'completed', 'canceled')),
    order_date  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS market_data (
    market_data_id ` + id + `,
    security_id    BIGINT NOT NULL REFERENCES securities(security_id) ON DELETE CASCADE,
    price          NUMERIC(12,2) NOT NULL CHECK (price > 0),
    volume         BIGINT NOT NULL CHECK (volume >= 0),
    market_date    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_customer ON accounts(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_account ON trades(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_security ON trades(security_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(trade_date)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_account ON orders(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_security ON orders(security_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_market_data_security ON market_data(security_id)`,
		`CREATE INDEX IF NOT EXISTS idx_securities_sector ON securities(sector)`,
	}
}

// DropStatements drops the views and then the tables, children first.
func (d Dialect) DropStatements(cat *catalog.Catalog) []string {
	var out []string
	for _, q := range cat.Queries {
		out = append(out, fmt.Sprintf("DROP VIEW IF EXISTS %s%s", q.Name, d.DropSuffix))
	}
	for i := len(catalog.Entities) - 1; i >= 0; i-- {
		out = append(out, fmt.Sprintf("DROP TABLE IF EXISTS %s%s", catalog.Entities[i].Table(), d.DropSuffix))
	}
	return out
}

// AdvanceSequence returns the statement that moves the entity's id
// sequence past the largest loaded id, or "" when the engine assigns ids
// from max(id) on its own.
func (d Dialect) AdvanceSequence(e catalog.Entity) string {
	if d.Name != Postgres.Name {
		return ""
	}
	return fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%[1]s', '%[2]s'), COALESCE(MAX(%[2]s), 0) + 1, false) FROM %[1]s",
		e.Table(), e.IDColumn())
}
