//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package workload

import (
	"sync"
	"sync/atomic"

	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/datagen"
)

const numEntities = int(catalog.MarketData) + 1

// link is a foreign key from child to a parent entity. Slot 0 is Ref.Parent
// and slot 1 is Ref.Second.
type link struct {
	child catalog.Entity
	slot  int
}

var (
	// parentsOf lists the parent entity stored in each slot.
	parentsOf = [numEntities][]catalog.Entity{
		catalog.Account:    {catalog.Customer},
		catalog.Trade:      {catalog.Account, catalog.Security},
		catalog.Order:      {catalog.Account, catalog.Security},
		catalog.MarketData: {catalog.Security},
	}

	childrenOf = [numEntities][]link{
		catalog.Customer: {{catalog.Account, 0}},
		catalog.Account:  {{catalog.Trade, 0}, {catalog.Order, 0}},
		catalog.Security: {{catalog.Trade, 1}, {catalog.Order, 1}, {catalog.MarketData, 0}},
	}

	// cascadeOf is every entity a delete of the key entity can reach,
	// ascending, which is also the lock order.
	cascadeOf = [numEntities][]catalog.Entity{
		catalog.Customer:   {catalog.Customer, catalog.Account, catalog.Trade, catalog.Order},
		catalog.Account:    {catalog.Account, catalog.Trade, catalog.Order},
		catalog.Security:   {catalog.Security, catalog.Trade, catalog.Order, catalog.MarketData},
		catalog.Trade:      {catalog.Trade},
		catalog.Order:      {catalog.Order},
		catalog.MarketData: {catalog.MarketData},
	}
)

type entry struct {
	pos       int
	corpusPos int // -1 unless loaded from the corpus
	ref       catalog.Ref
	ticker    string
	sector    string
}

// shard holds the live ids of one entity in a dense slice so that add,
// remove and uniform sampling are all O(1).
type shard struct {
	mu      sync.RWMutex
	ids     []int64
	corpus  []int64
	entries map[int64]*entry

	// byParent indexes children by the parent id in each slot.
	byParent [2]map[int64]map[int64]struct{}
}

func newShard() *shard {
	return &shard{
		entries: make(map[int64]*entry),
		byParent: [2]map[int64]map[int64]struct{}{
			make(map[int64]map[int64]struct{}),
			make(map[int64]map[int64]struct{}),
		},
	}
}

// Registry tracks the ids known to exist in the database. The writer adds
// ids only after a committed insert and removes them only after a committed
// delete, so readers never observe an uncommitted write. Deletes cascade
// to children the way the schema's foreign keys do.
type Registry struct {
	shards     [numEntities]*shard
	next       [numEntities]atomic.Int64
	corpusOnly bool
	tickerMu   sync.Mutex
	tickers    map[string]struct{}
}

// NewRegistry creates an empty registry. With corpusDeletes set, deletes
// only target rows that were loaded before the run.
func NewRegistry(corpusDeletes bool) *Registry {
	r := &Registry{
		corpusOnly: corpusDeletes,
		tickers:    make(map[string]struct{}),
	}
	for i := range r.shards {
		r.shards[i] = newShard()
		r.next[i].Store(1)
	}
	return r
}

// Seed loads the corpus snapshot and positions every id sequence past the
// largest id ever assigned.
func (r *Registry) Seed(c *catalog.Corpus) {
	for _, id := range c.Customers {
		r.add(catalog.Customer, catalog.Ref{ID: id}, "", "", true)
	}
	for _, s := range c.Securities {
		r.add(catalog.Security, catalog.Ref{ID: s.ID}, s.Ticker, s.Sector, true)
	}
	for _, a := range c.Accounts {
		r.add(catalog.Account, a, "", "", true)
	}
	for _, t := range c.Trades {
		r.add(catalog.Trade, t, "", "", true)
	}
	for _, o := range c.Orders {
		r.add(catalog.Order, o, "", "", true)
	}
	for _, m := range c.MarketData {
		r.add(catalog.MarketData, m, "", "", true)
	}

	for _, e := range catalog.Entities {
		top := c.MaxIDs[e]
		sh := r.shards[e]
		sh.mu.RLock()
		for _, id := range sh.ids {
			if id > top {
				top = id
			}
		}
		sh.mu.RUnlock()
		if top+1 > r.next[e].Load() {
			r.next[e].Store(top + 1)
		}
	}
}

// Next allocates a new id for entity. Ids are never reused.
func (r *Registry) Next(e catalog.Entity) int64 {
	return r.next[e].Add(1) - 1
}

// Add records a committed insert. It reports false and records nothing
// when a parent is no longer live, which happens when a concurrent delete
// cascaded over the new row.
func (r *Registry) Add(e catalog.Entity, ref catalog.Ref) bool {
	return r.add(e, ref, "", "", false)
}

// AddSecurity records a committed security insert.
func (r *Registry) AddSecurity(s catalog.SecurityRef) bool {
	return r.add(catalog.Security, catalog.Ref{ID: s.ID}, s.Ticker, s.Sector, false)
}

func (r *Registry) add(e catalog.Entity, ref catalog.Ref, ticker, sector string, corpus bool) bool {
	parents := parentsOf[e]
	for _, p := range parents {
		r.shards[p].mu.RLock()
		defer r.shards[p].mu.RUnlock()
	}
	sh := r.shards[e]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	pids := [2]int64{ref.Parent, ref.Second}
	for slot, p := range parents {
		if _, ok := r.shards[p].entries[pids[slot]]; !ok {
			return false
		}
	}
	if _, dup := sh.entries[ref.ID]; dup {
		return false
	}

	en := &entry{pos: len(sh.ids), corpusPos: -1, ref: ref, ticker: ticker, sector: sector}
	sh.ids = append(sh.ids, ref.ID)
	if corpus {
		en.corpusPos = len(sh.corpus)
		sh.corpus = append(sh.corpus, ref.ID)
	}
	sh.entries[ref.ID] = en
	for slot := range parents {
		set := sh.byParent[slot][pids[slot]]
		if set == nil {
			set = make(map[int64]struct{})
			sh.byParent[slot][pids[slot]] = set
		}
		set[ref.ID] = struct{}{}
	}
	if ticker != "" {
		r.tickerMu.Lock()
		r.tickers[ticker] = struct{}{}
		r.tickerMu.Unlock()
	}
	return true
}

// Remove records a committed delete of id and every row the delete
// cascaded to. It returns the number of ids removed.
func (r *Registry) Remove(e catalog.Entity, id int64) int {
	for _, c := range cascadeOf[e] {
		r.shards[c].mu.Lock()
		defer r.shards[c].mu.Unlock()
	}
	return r.removeLocked(e, id)
}

func (r *Registry) removeLocked(e catalog.Entity, id int64) int {
	sh := r.shards[e]
	en, ok := sh.entries[id]
	if !ok {
		return 0
	}

	last := sh.ids[len(sh.ids)-1]
	sh.ids[en.pos] = last
	sh.entries[last].pos = en.pos
	sh.ids = sh.ids[:len(sh.ids)-1]

	if en.corpusPos >= 0 {
		lastc := sh.corpus[len(sh.corpus)-1]
		sh.corpus[en.corpusPos] = lastc
		sh.entries[lastc].corpusPos = en.corpusPos
		sh.corpus = sh.corpus[:len(sh.corpus)-1]
	}
	delete(sh.entries, id)

	pids := [2]int64{en.ref.Parent, en.ref.Second}
	for slot := range parentsOf[e] {
		if set := sh.byParent[slot][pids[slot]]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(sh.byParent[slot], pids[slot])
			}
		}
	}
	if en.ticker != "" {
		r.tickerMu.Lock()
		delete(r.tickers, en.ticker)
		r.tickerMu.Unlock()
	}

	removed := 1
	for _, l := range childrenOf[e] {
		children := r.shards[l.child].byParent[l.slot][id]
		for cid := range children {
			removed += r.removeLocked(l.child, cid)
		}
	}
	return removed
}

// Sample returns a uniformly random live id of entity.
func (r *Registry) Sample(e catalog.Entity, f *datagen.Faker) (int64, bool) {
	sh := r.shards[e]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if len(sh.ids) == 0 {
		return 0, false
	}
	return sh.ids[f.Int(0, len(sh.ids)-1)], true
}

// SampleDeletable returns a random id that a delete may target, honoring
// the corpus-only delete scope.
func (r *Registry) SampleDeletable(e catalog.Entity, f *datagen.Faker) (int64, bool) {
	if !r.corpusOnly {
		return r.Sample(e, f)
	}
	sh := r.shards[e]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if len(sh.corpus) == 0 {
		return 0, false
	}
	return sh.corpus[f.Int(0, len(sh.corpus)-1)], true
}

// SampleSecurity returns a random live security with its ticker and
// sector.
func (r *Registry) SampleSecurity(f *datagen.Faker) (catalog.SecurityRef, bool) {
	sh := r.shards[catalog.Security]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if len(sh.ids) == 0 {
		return catalog.SecurityRef{}, false
	}
	en := sh.entries[sh.ids[f.Int(0, len(sh.ids)-1)]]
	return catalog.SecurityRef{ID: en.ref.ID, Ticker: en.ticker, Sector: en.sector}, true
}

// HasTicker reports whether a live security uses ticker.
func (r *Registry) HasTicker(ticker string) bool {
	r.tickerMu.Lock()
	defer r.tickerMu.Unlock()
	_, ok := r.tickers[ticker]
	return ok
}

// Contains reports whether id is live.
func (r *Registry) Contains(e catalog.Entity, id int64) bool {
	sh := r.shards[e]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.entries[id]
	return ok
}

// Len returns the number of live ids of entity.
func (r *Registry) Len(e catalog.Entity) int {
	sh := r.shards[e]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.ids)
}
