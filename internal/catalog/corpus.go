//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package catalog

// Corpus is a snapshot of the row identities present in the database when
// a run starts. It carries the parent links needed to generate foreign-key
// valid writes and the sectors and tickers sampled by reads.
type Corpus struct {
	Customers  []int64
	Accounts   []Ref
	Securities []SecurityRef
	Trades     []Ref
	Orders     []Ref
	MarketData []Ref

	// MaxIDs holds the largest id ever assigned per entity, which may be
	// larger than any id still present.
	MaxIDs map[Entity]int64
}

// Ref is a row id with up to two parent ids. For accounts Parent is the
// customer; for trades and orders Parent is the account and Second the
// security; for market data Parent is the security.
type Ref struct {
	ID     int64
	Parent int64
	Second int64
}

// SecurityRef is a security id with its ticker and sector.
type SecurityRef struct {
	ID     int64
	Ticker string
	Sector string
}

// Size returns the total number of rows in the snapshot.
func (c *Corpus) Size() int {
	return len(c.Customers) + len(c.Accounts) + len(c.Securities) +
		len(c.Trades) + len(c.Orders) + len(c.MarketData)
}
