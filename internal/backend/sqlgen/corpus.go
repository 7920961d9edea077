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

// CorpusQuery selects every row identity of an entity as five columns:
// id, parent id, second parent id, ticker and sector. Unused columns are
// zero or empty.
func CorpusQuery(e catalog.Entity) string {
	var parent, second, ticker, sector = "0", "0", "''", "''"
	switch e {
	case catalog.Account:
		parent = "customer_id"
	case catalog.Security:
		ticker, sector = "ticker", "COALESCE(sector, '')"
	case catalog.Trade, catalog.Order:
		parent, second = "account_id", "security_id"
	case catalog.MarketData:
		parent = "security_id"
	}
	return fmt.Sprintf("SELECT %s, %s, %s, %s, %s FROM %s",
		e.IDColumn(), parent, second, ticker, sector, e.Table())
}

// CorpusRow is one row read by CorpusQuery.
type CorpusRow struct {
	ID, Parent, Second int64
	Ticker, Sector     string
}

// Append adds a row of entity e to the corpus and tracks the largest id.
func Append(c *catalog.Corpus, e catalog.Entity, r CorpusRow) {
	if c.MaxIDs == nil {
		c.MaxIDs = make(map[catalog.Entity]int64)
	}
	if r.ID > c.MaxIDs[e] {
		c.MaxIDs[e] = r.ID
	}
	ref := catalog.Ref{ID: r.ID, Parent: r.Parent, Second: r.Second}
	switch e {
	case catalog.Customer:
		c.Customers = append(c.Customers, r.ID)
	case catalog.Account:
		c.Accounts = append(c.Accounts, ref)
	case catalog.Security:
		c.Securities = append(c.Securities, catalog.SecurityRef{ID: r.ID, Ticker: r.Ticker, Sector: r.Sector})
	case catalog.Trade:
		c.Trades = append(c.Trades, ref)
	case catalog.Order:
		c.Orders = append(c.Orders, ref)
	case catalog.MarketData:
		c.MarketData = append(c.MarketData, ref)
	}
}
