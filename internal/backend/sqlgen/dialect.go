//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package sqlgen builds the schema, view and statement text shared by the
// SQL backends. Backends differ only in their Dialect.
package sqlgen

import (
	"fmt"
	"strconv"
)

// Dialect holds the engine specific pieces of SQL.
type Dialect struct {
	Name string

	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// IDColumn is the column definition of a table's primary key.
	IDColumn string

	// Since returns an expression for the current time minus hours.
	Since func(hours int) string

	// Day and Hour truncate a timestamp expression.
	Day  func(expr string) string
	Hour func(expr string) string

	// DropSuffix is appended to DROP TABLE and DROP VIEW statements.
	DropSuffix string
}

// Postgres is the PostgreSQL dialect.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	IDColumn:    "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
	Since: func(hours int) string {
		return fmt.Sprintf("now() - interval '%d hours'", hours)
	},
	Day:        func(expr string) string { return "date_trunc('day', " + expr + ")" },
	Hour:       func(expr string) string { return "date_trunc('hour', " + expr + ")" },
	DropSuffix: " CASCADE",
}

// SQLite is the SQLite dialect. Timestamps are stored as text in
// "YYYY-MM-DD HH:MM:SS" form so that they compare correctly.
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	IDColumn:    "INTEGER PRIMARY KEY",
	Since: func(hours int) string {
		return fmt.Sprintf("datetime('now', '-%d hours')", hours)
	},
	Day:  func(expr string) string { return "date(" + expr + ")" },
	Hour: func(expr string) string { return "strftime('%Y-%m-%d %H:00:00', " + expr + ")" },
}

// TimestampLayout is the text form of timestamps in SQLite.
const TimestampLayout = "2006-01-02 15:04:05"

// placeholders returns "p1, p2, ..., pn".
func (d Dialect) placeholders(from, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += d.Placeholder(from + i)
	}
	return out
}
