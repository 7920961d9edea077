// Package memory is an in-process backend. It keeps the benchmark tables
// in maps and adds configurable latency and failures, which makes it the
// backend of choice for exercising the workload engine without a database.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/datagen"
)

func init() {
	backend.Register("memory", "In-process tables with injectable latency and failures", New)
}

// ErrInjected is returned by calls chosen to fail.
var ErrInjected = errors.New("injected failure")

// Options tunes the engine.
type Options struct {
	// MinLatency and MaxLatency bound the delay of every call.
	MinLatency time.Duration
	MaxLatency time.Duration

	// FailureRate is the fraction of calls that fail, in [0, 1].
	FailureRate float64

	// IgnoreTimeout makes calls sleep through their context deadline,
	// like a server that stopped responding. Only closing the handle
	// ends such a call.
	IgnoreTimeout bool

	// FailReplicaOpen makes every OpenReplica call fail.
	FailReplicaOpen bool

	// DropAfter loses a handle's connection after that many calls
	// (0 never).
	DropAfter int64

	// Seed seeds latency and failure draws.
	Seed uint64
}

type row struct {
	ref    catalog.Ref
	ticker string
	sector string
}

// Engine is the shared in-memory database.
type Engine struct {
	opts Options

	mu     sync.RWMutex
	tables [int(catalog.MarketData) + 1]map[int64]row
	maxIDs map[catalog.Entity]int64

	rngMu sync.Mutex
	rng   *datagen.Faker

	writes atomic.Int64
	reads  atomic.Int64
	opened atomic.Int64
}

// NewEngine creates an empty engine.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		opts:   opts,
		maxIDs: make(map[catalog.Entity]int64),
		rng:    datagen.NewFakerWithSeed(opts.Seed),
	}
	for i := range e.tables {
		e.tables[i] = make(map[int64]row)
	}
	return e
}

// New is the registry factory. The engine starts with a small synthetic
// corpus so that a run has rows to work on.
func New(_ context.Context, cfg backend.Config) (backend.Backend, error) {
	lo, hi, err := ParseLatency(cfg.Latency)
	if err != nil {
		return nil, err
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return nil, fmt.Errorf("memory failure rate %v out of range", cfg.FailureRate)
	}
	e := NewEngine(Options{MinLatency: lo, MaxLatency: hi, FailureRate: cfg.FailureRate, Seed: 42})
	e.Seed(SyntheticCorpus(datagen.NewFakerWithSeed(42), 200))
	return e, nil
}

// ParseLatency parses "" (none), a single duration ("5ms") or a range
// ("2ms-8ms").
func ParseLatency(s string) (time.Duration, time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}
	first, second, ranged := strings.Cut(s, "-")
	lo, err := time.ParseDuration(strings.TrimSpace(first))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latency %q: %w", s, err)
	}
	if !ranged {
		return lo, lo, nil
	}
	hi, err := time.ParseDuration(strings.TrimSpace(second))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latency %q: %w", s, err)
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("invalid latency %q: upper bound below lower bound", s)
	}
	return lo, hi, nil
}

func (e *Engine) Name() string { return "memory" }

func (e *Engine) Description() string {
	return "In-process tables with injectable latency and failures"
}

func (e *Engine) Close() error { return nil }

// Seed replaces the tables with the corpus.
func (e *Engine) Seed(c *catalog.Corpus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.tables {
		e.tables[i] = make(map[int64]row)
	}
	for _, id := range c.Customers {
		e.tables[catalog.Customer][id] = row{ref: catalog.Ref{ID: id}}
	}
	for _, s := range c.Securities {
		e.tables[catalog.Security][s.ID] = row{ref: catalog.Ref{ID: s.ID}, ticker: s.Ticker, sector: s.Sector}
	}
	for _, a := range c.Accounts {
		e.tables[catalog.Account][a.ID] = row{ref: a}
	}
	for _, t := range c.Trades {
		e.tables[catalog.Trade][t.ID] = row{ref: t}
	}
	for _, o := range c.Orders {
		e.tables[catalog.Order][o.ID] = row{ref: o}
	}
	for _, m := range c.MarketData {
		e.tables[catalog.MarketData][m.ID] = row{ref: m}
	}
	for ent, id := range c.MaxIDs {
		e.maxIDs[ent] = id
	}
	for _, ent := range catalog.Entities {
		for id := range e.tables[ent] {
			if id > e.maxIDs[ent] {
				e.maxIDs[ent] = id
			}
		}
	}
}

// Rows returns the number of rows in the entity's table.
func (e *Engine) Rows(ent catalog.Entity) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tables[ent])
}

// Has reports whether a row exists.
func (e *Engine) Has(ent catalog.Entity, id int64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.tables[ent][id]
	return ok
}

// Opened returns the number of handles opened so far.
func (e *Engine) Opened() int64 {
	return e.opened.Load()
}

// Calls returns the number of writes and reads executed.
func (e *Engine) Calls() (writes, reads int64) {
	return e.writes.Load(), e.reads.Load()
}

// LoadCorpus snapshots the current tables.
func (e *Engine) LoadCorpus(_ context.Context) (*catalog.Corpus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c := &catalog.Corpus{MaxIDs: make(map[catalog.Entity]int64)}
	for id := range e.tables[catalog.Customer] {
		c.Customers = append(c.Customers, id)
	}
	for id, r := range e.tables[catalog.Security] {
		c.Securities = append(c.Securities, catalog.SecurityRef{ID: id, Ticker: r.ticker, Sector: r.sector})
	}
	for _, r := range e.tables[catalog.Account] {
		c.Accounts = append(c.Accounts, r.ref)
	}
	for _, r := range e.tables[catalog.Trade] {
		c.Trades = append(c.Trades, r.ref)
	}
	for _, r := range e.tables[catalog.Order] {
		c.Orders = append(c.Orders, r.ref)
	}
	for _, r := range e.tables[catalog.MarketData] {
		c.MarketData = append(c.MarketData, r.ref)
	}
	for ent, id := range e.maxIDs {
		c.MaxIDs[ent] = id
	}
	return c, nil
}

// OpenPrimary opens a write handle.
func (e *Engine) OpenPrimary(ctx context.Context, label string) (backend.Primary, error) {
	if err := ctx.Err(); err != nil {
		return nil, &backend.ConnectionError{Role: "primary", Label: label, Err: err}
	}
	e.opened.Add(1)
	return &Primary{handle: newHandle(e, label)}, nil
}

// OpenReplica opens a read handle.
func (e *Engine) OpenReplica(ctx context.Context, label string) (backend.Replica, error) {
	if err := ctx.Err(); err != nil {
		return nil, &backend.ConnectionError{Role: "replica", Label: label, Err: err}
	}
	if e.opts.FailReplicaOpen {
		return nil, &backend.ConnectionError{Role: "replica", Label: label, Err: errors.New("connection refused")}
	}
	e.opened.Add(1)
	return &Replica{handle: newHandle(e, label)}, nil
}

// handle is the per-connection state shared by primary and replica.
type handle struct {
	engine *Engine
	label  string
	calls  atomic.Int64
	closed chan struct{}
	once   sync.Once
}

func newHandle(e *Engine, label string) *handle {
	return &handle{engine: e, label: label, closed: make(chan struct{})}
}

func (h *handle) Close(_ context.Context) error {
	h.once.Do(func() { close(h.closed) })
	return nil
}

// begin simulates the network round trip of one call.
func (h *handle) begin(ctx context.Context) error {
	select {
	case <-h.closed:
		return backend.ErrConnectionLost
	default:
	}
	if n := h.calls.Add(1); h.engine.opts.DropAfter > 0 && n > h.engine.opts.DropAfter {
		_ = h.Close(ctx)
		return backend.ErrConnectionLost
	}

	delay, fail := h.engine.draw()
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		done := ctx.Done()
		if h.engine.opts.IgnoreTimeout {
			done = nil
		}
		select {
		case <-timer.C:
		case <-done:
			return ctx.Err()
		case <-h.closed:
			return backend.ErrConnectionLost
		}
	}
	if err := ctx.Err(); err != nil && !h.engine.opts.IgnoreTimeout {
		return err
	}
	if fail {
		return ErrInjected
	}
	return nil
}

func (e *Engine) draw() (time.Duration, bool) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	delay := e.opts.MinLatency
	if span := e.opts.MaxLatency - e.opts.MinLatency; span > 0 {
		delay += time.Duration(e.rng.Int64(0, int64(span)))
	}
	fail := e.opts.FailureRate > 0 && e.rng.Float64(0, 1) < e.opts.FailureRate
	return delay, fail
}

// Primary is a memory write handle.
type Primary struct {
	*handle
}

// ExecuteWrite applies op to the tables with the same foreign key and
// cascade rules as the SQL schema.
//
// Updates only check that the target row exists and reject
// update_security like the SQL backends do. They change no stored
// values, so row counts reflect inserts and deletes only.
func (p *Primary) ExecuteWrite(ctx context.Context, op catalog.Operation) (int64, error) {
	if err := op.Validate(); err != nil {
		return 0, err
	}
	if err := p.begin(ctx); err != nil {
		return 0, err
	}
	p.engine.writes.Add(1)

	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	switch op.Kind {
	case catalog.Insert:
		return op.ID, e.insertLocked(op)
	case catalog.Update:
		if _, ok := e.tables[op.Entity][op.ID]; !ok {
			return 0, nil
		}
		if op.Entity == catalog.Security {
			return 0, fmt.Errorf("%s is not supported", op.Name())
		}
		return op.ID, nil
	case catalog.Delete:
		if _, ok := e.tables[op.Entity][op.ID]; !ok {
			return 0, nil
		}
		e.deleteLocked(op.Entity, op.ID)
		return op.ID, nil
	}
	return 0, fmt.Errorf("unknown operation kind %v", op.Kind)
}

func (e *Engine) insertLocked(op catalog.Operation) error {
	t := e.tables[op.Entity]
	if _, dup := t[op.ID]; dup {
		return fmt.Errorf("%s: duplicate key %d", op.Name(), op.ID)
	}
	need := func(ent catalog.Entity, id int64) error {
		if _, ok := e.tables[ent][id]; !ok {
			return fmt.Errorf("%s: %s %d does not exist", op.Name(), ent, id)
		}
		return nil
	}

	r := row{ref: catalog.Ref{ID: op.ID}}
	switch op.Entity {
	case catalog.Customer:
	case catalog.Account:
		if err := need(catalog.Customer, op.Account.CustomerID); err != nil {
			return err
		}
		r.ref.Parent = op.Account.CustomerID
	case catalog.Security:
		for _, other := range t {
			if other.ticker == op.Security.Ticker {
				return fmt.Errorf("%s: duplicate ticker %s", op.Name(), op.Security.Ticker)
			}
		}
		r.ticker, r.sector = op.Security.Ticker, op.Security.Sector
	case catalog.Trade:
		if err := need(catalog.Account, op.Trade.AccountID); err != nil {
			return err
		}
		if err := need(catalog.Security, op.Trade.SecurityID); err != nil {
			return err
		}
		r.ref.Parent, r.ref.Second = op.Trade.AccountID, op.Trade.SecurityID
	case catalog.Order:
		if err := need(catalog.Account, op.Order.AccountID); err != nil {
			return err
		}
		if err := need(catalog.Security, op.Order.SecurityID); err != nil {
			return err
		}
		r.ref.Parent, r.ref.Second = op.Order.AccountID, op.Order.SecurityID
	case catalog.MarketData:
		if err := need(catalog.Security, op.MarketData.SecurityID); err != nil {
			return err
		}
		r.ref.Parent = op.MarketData.SecurityID
	}
	t[op.ID] = r
	if op.ID > e.maxIDs[op.Entity] {
		e.maxIDs[op.Entity] = op.ID
	}
	return nil
}

// fk is a foreign key pointing at a parent table. Second selects
// Ref.Second instead of Ref.Parent.
type fk struct {
	child  catalog.Entity
	second bool
}

var cascades = map[catalog.Entity][]fk{
	catalog.Customer: {{catalog.Account, false}},
	catalog.Account:  {{catalog.Trade, false}, {catalog.Order, false}},
	catalog.Security: {{catalog.Trade, true}, {catalog.Order, true}, {catalog.MarketData, false}},
}

func (e *Engine) deleteLocked(ent catalog.Entity, id int64) {
	delete(e.tables[ent], id)
	for _, k := range cascades[ent] {
		for cid, r := range e.tables[k.child] {
			parent := r.ref.Parent
			if k.second {
				parent = r.ref.Second
			}
			if parent == id {
				e.deleteLocked(k.child, cid)
			}
		}
	}
}

// Replica is a memory read handle.
type Replica struct {
	*handle
}

// ExecuteRead counts the rows the named query would return.
func (r *Replica) ExecuteRead(ctx context.Context, q catalog.QueryDefinition, params catalog.Params) (int64, error) {
	if err := r.begin(ctx); err != nil {
		return 0, err
	}
	r.engine.reads.Add(1)

	e := r.engine
	e.mu.RLock()
	defer e.mu.RUnlock()

	kind, filtered := q.Filter()
	if !filtered {
		n := int64(len(e.tables[catalog.Trade]))
		if n > 10 {
			n = 10
		}
		return n, nil
	}
	v, ok := params[kind]
	if !ok {
		return 0, fmt.Errorf("%s: missing parameter %s", q.Name, kind)
	}

	var n int64
	switch kind {
	case catalog.ParamCustomerID:
		for _, a := range e.tables[catalog.Account] {
			if a.ref.Parent == v {
				n++
			}
		}
	case catalog.ParamAccountID:
		for _, t := range e.tables[catalog.Trade] {
			if t.ref.Parent == v {
				n++
			}
		}
	case catalog.ParamSecurityID:
		for _, m := range e.tables[catalog.MarketData] {
			if m.ref.Parent == v {
				n++
			}
		}
	case catalog.ParamSector:
		for _, s := range e.tables[catalog.Security] {
			if s.sector == v {
				n++
			}
		}
	case catalog.ParamTicker:
		for _, s := range e.tables[catalog.Security] {
			if s.ticker == v {
				n++
			}
		}
	}
	return n, nil
}
