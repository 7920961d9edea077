//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package catalog holds the static workload definitions: the entity model,
// the write operation templates and the named analytical read queries.
package catalog

import "fmt"

// Entity identifies one of the benchmark tables.
type Entity int

const (
	Customer Entity = iota
	Account
	Security
	Trade
	Order
	MarketData
)

// Entities lists every entity in dependency order (parents first).
var Entities = []Entity{Customer, Account, Security, Trade, Order, MarketData}

var entityInfo = [...]struct {
	name     string
	table    string
	idColumn string
}{
	Customer:   {"customer", "customers", "customer_id"},
	Account:    {"account", "accounts", "account_id"},
	Security:   {"security", "securities", "security_id"},
	Trade:      {"trade", "trades", "trade_id"},
	Order:      {"order", "orders", "order_id"},
	MarketData: {"market_data", "market_data", "market_data_id"},
}

// String returns the singular entity name used in operation names.
func (e Entity) String() string {
	if e < 0 || int(e) >= len(entityInfo) {
		return fmt.Sprintf("entity(%d)", int(e))
	}
	return entityInfo[e].name
}

// Table returns the table holding rows of this entity.
func (e Entity) Table() string {
	return entityInfo[e].table
}

// IDColumn returns the primary key column of the entity's table.
func (e Entity) IDColumn() string {
	return entityInfo[e].idColumn
}

// ColumnKind is the value type of a table column.
type ColumnKind int

const (
	ColumnInt ColumnKind = iota
	ColumnText
	ColumnDecimal
	ColumnTimestamp
)

// Column describes one column of the dataset interchange format.
type Column struct {
	Name     string
	Kind     ColumnKind
	Nullable bool
}

var entityColumns = [...][]Column{
	Customer: {
		{Name: "customer_id", Kind: ColumnInt},
		{Name: "name", Kind: ColumnText},
		{Name: "address", Kind: ColumnText, Nullable: true},
		{Name: "created_at", Kind: ColumnTimestamp},
	},
	Account: {
		{Name: "account_id", Kind: ColumnInt},
		{Name: "customer_id", Kind: ColumnInt},
		{Name: "account_type", Kind: ColumnText},
		{Name: "balance", Kind: ColumnDecimal},
		{Name: "created_at", Kind: ColumnTimestamp},
	},
	Security: {
		{Name: "security_id", Kind: ColumnInt},
		{Name: "ticker", Kind: ColumnText},
		{Name: "name", Kind: ColumnText, Nullable: true},
		{Name: "sector", Kind: ColumnText, Nullable: true},
		{Name: "created_at", Kind: ColumnTimestamp},
	},
	Trade: {
		{Name: "trade_id", Kind: ColumnInt},
		{Name: "account_id", Kind: ColumnInt},
		{Name: "security_id", Kind: ColumnInt},
		{Name: "trade_type", Kind: ColumnText},
		{Name: "quantity", Kind: ColumnInt},
		{Name: "price", Kind: ColumnDecimal},
		{Name: "trade_date", Kind: ColumnTimestamp},
	},
	Order: {
		{Name: "order_id", Kind: ColumnInt},
		{Name: "account_id", Kind: ColumnInt},
		{Name: "security_id", Kind: ColumnInt},
		{Name: "order_type", Kind: ColumnText},
		{Name: "quantity", Kind: ColumnInt},
		{Name: "limit_price", Kind: ColumnDecimal, Nullable: true},
		{Name: "status", Kind: ColumnText},
		{Name: "order_date", Kind: ColumnTimestamp},
	},
	MarketData: {
		{Name: "market_data_id", Kind: ColumnInt},
		{Name: "security_id", Kind: ColumnInt},
		{Name: "price", Kind: ColumnDecimal},
		{Name: "volume", Kind: ColumnInt},
		{Name: "market_date", Kind: ColumnTimestamp},
	},
}

// Columns returns the table columns in interchange file order. The id
// column is always first.
func (e Entity) Columns() []Column {
	return entityColumns[e]
}

// ColumnNames returns the column names in interchange file order.
func (e Entity) ColumnNames() []string {
	cols := entityColumns[e]
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// DataFile returns the dataset file name for the entity.
func (e Entity) DataFile() string {
	return e.Table() + ".csv"
}

// OpKind is the kind of a write operation.
type OpKind int

const (
	Insert OpKind = iota
	Update
	Delete
)

// OpKinds lists the write kinds in mix order.
var OpKinds = []OpKind{Insert, Update, Delete}

func (k OpKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Trade and order sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// AccountTypes are the account kinds produced by inserts.
var AccountTypes = []string{"Savings", "Checking", "Brokerage", "Investment"}

// Sides are the valid trade and order types.
var Sides = []string{SideBuy, SideSell}

// OrderStatuses are the valid order statuses.
var OrderStatuses = []string{StatusPending, StatusCompleted, StatusCanceled}
