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
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/datagen"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

// WriterConfig configures the paced write stream.
type WriterConfig struct {
	// Rate is the target number of write transactions per second.
	Rate float64

	// Weights are the relative insert, update and delete weights, in
	// catalog.OpKinds order.
	Weights []int

	// Seed makes the operation stream reproducible.
	Seed uint64

	// CallTimeout bounds each write.
	CallTimeout time.Duration
}

// Writer issues weighted random writes on a fixed schedule. It is the only
// component that mutates the benchmark tables.
type Writer struct {
	cfg      WriterConfig
	lanes    []*writerLane
	registry *Registry
	catalog  *catalog.Catalog
	faker    *datagen.Faker
	mix      *datagen.Weighted[catalog.OpKind]
	log      zerolog.Logger

	skipped   atomic.Int64
	unplanned atomic.Int64
}

// writerLane owns one primary handle.
type writerLane struct {
	name     string
	primary  backend.Primary
	producer *Producer
	ops      chan catalog.Operation
}

// NewWriter creates a writer. With more than one primary handle each
// handle becomes a lane that executes paced operations independently.
func NewWriter(cfg WriterConfig, primaries []backend.Primary, rec *Recorder, reg *Registry, cat *catalog.Catalog) (*Writer, error) {
	if len(primaries) == 0 {
		return nil, errors.New("writer needs at least one primary handle")
	}
	if err := ValidateRate(cfg.Rate); err != nil {
		return nil, err
	}
	mix, err := datagen.NewWeighted(catalog.OpKinds, cfg.Weights)
	if err != nil {
		return nil, fmt.Errorf("invalid operation mix: %w", err)
	}

	w := &Writer{
		cfg:      cfg,
		registry: reg,
		catalog:  cat,
		faker:    datagen.NewFakerWithSeed(cfg.Seed),
		mix:      mix,
		log:      logging.With("component", "writer"),
	}
	for i, p := range primaries {
		name := "writer"
		if len(primaries) > 1 {
			name = fmt.Sprintf("writer-%d", i+1)
		}
		w.lanes = append(w.lanes, &writerLane{
			name:     name,
			primary:  p,
			producer: rec.Producer(name, RoleWriter),
		})
	}
	return w, nil
}

// Skipped returns the number of write slots passed over.
func (w *Writer) Skipped() int64 {
	return w.skipped.Load()
}

// Unplanned returns the number of slots for which no operation could be
// generated because the registry had no suitable rows.
func (w *Writer) Unplanned() int64 {
	return w.unplanned.Load()
}

// Run paces writes from start until end or until ctx is done. An
// operation already in flight always completes. The only error returned is
// a lost primary connection.
func (w *Writer) Run(ctx context.Context, start, end time.Time) error {
	pacer, err := NewPacer(w.cfg.Rate, start, end)
	if err != nil {
		return err
	}
	w.log.Debug().
		Float64("rate", w.cfg.Rate).
		Dur("period", pacer.Period()).
		Int64("slots", pacer.Slots()).
		Int("lanes", len(w.lanes)).
		Msg("Writer started")
	defer w.log.Debug().Msg("Writer stopped")

	if len(w.lanes) == 1 {
		return w.runInline(ctx, pacer)
	}
	return w.runLanes(ctx, pacer)
}

func (w *Writer) runInline(ctx context.Context, pacer *Pacer) error {
	lane := w.lanes[0]
	for ctx.Err() == nil {
		if !pacer.Wait(ctx) || ctx.Err() != nil {
			break
		}
		op, ok := w.Generate()
		if !ok {
			w.unplanned.Add(1)
			continue
		}
		if err := w.execute(ctx, lane, op); err != nil {
			return err
		}
		w.skipped.Store(pacer.Skipped())
	}
	w.skipped.Store(pacer.Skipped())
	return nil
}

// runLanes hands each slot's operation to an idle lane. A slot with no
// idle lane is skipped, the same as a slot missed by an overrun.
func (w *Writer) runLanes(ctx context.Context, pacer *Pacer) error {
	g, gctx := errgroup.WithContext(ctx)
	idle := make(chan *writerLane, len(w.lanes))

	for _, lane := range w.lanes {
		lane.ops = make(chan catalog.Operation, 1)
		idle <- lane
		g.Go(func() error {
			for op := range lane.ops {
				if err := w.execute(gctx, lane, op); err != nil {
					return err
				}
				idle <- lane
			}
			return nil
		})
	}

	for gctx.Err() == nil {
		if !pacer.Wait(gctx) || gctx.Err() != nil {
			break
		}
		select {
		case lane := <-idle:
			op, ok := w.Generate()
			if !ok {
				w.unplanned.Add(1)
				idle <- lane
				continue
			}
			lane.ops <- op
		default:
			pacer.Skip()
		}
		w.skipped.Store(pacer.Skipped())
	}
	w.skipped.Store(pacer.Skipped())

	for _, lane := range w.lanes {
		close(lane.ops)
	}
	return g.Wait()
}

// execute runs one write under its own timeout, records the sample and
// applies a committed write to the registry.
func (w *Writer) execute(ctx context.Context, lane *writerLane, op catalog.Operation) error {
	name := op.Name()
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.CallTimeout)
	start := time.Now()
	_, err := lane.primary.ExecuteWrite(callCtx, op)
	elapsed := time.Since(start)
	err = backend.Classify(callCtx, name, w.cfg.CallTimeout, err)
	cancel()

	sample := Sample{Name: name, Start: start, Duration: elapsed}
	switch {
	case err == nil:
		w.apply(op)
	case backend.IsTimeout(err):
		sample.Outcome = OutcomeTimeout
	default:
		sample.Outcome = OutcomeError
	}
	lane.producer.Record(sample)

	if err != nil {
		if errors.Is(err, backend.ErrConnectionLost) {
			w.log.Error().Err(err).Str("lane", lane.name).Msg("Primary connection lost")
			return &backend.ConnectionError{Role: "primary", Label: lane.name, Err: err}
		}
		w.log.Debug().Err(err).Str("op", name).Int64("id", op.ID).Msg("Write failed")
	}
	return nil
}

// apply records a committed write in the registry.
func (w *Writer) apply(op catalog.Operation) {
	switch op.Kind {
	case catalog.Insert:
		switch op.Entity {
		case catalog.Customer:
			w.registry.Add(catalog.Customer, catalog.Ref{ID: op.ID})
		case catalog.Account:
			w.registry.Add(catalog.Account, catalog.Ref{ID: op.ID, Parent: op.Account.CustomerID})
		case catalog.Security:
			w.registry.AddSecurity(catalog.SecurityRef{ID: op.ID, Ticker: op.Security.Ticker, Sector: op.Security.Sector})
		case catalog.Trade:
			w.registry.Add(catalog.Trade, catalog.Ref{ID: op.ID, Parent: op.Trade.AccountID, Second: op.Trade.SecurityID})
		case catalog.Order:
			w.registry.Add(catalog.Order, catalog.Ref{ID: op.ID, Parent: op.Order.AccountID, Second: op.Order.SecurityID})
		case catalog.MarketData:
			w.registry.Add(catalog.MarketData, catalog.Ref{ID: op.ID, Parent: op.MarketData.SecurityID})
		}
	case catalog.Delete:
		w.registry.Remove(op.Entity, op.ID)
	}
}

// Generate draws the next operation. It reports false when no entity of
// the drawn kind has the rows the operation needs.
func (w *Writer) Generate() (catalog.Operation, bool) {
	kind := w.mix.Pick(w.faker)
	entities := w.catalog.Writes[kind]
	if len(entities) == 0 {
		return catalog.Operation{}, false
	}
	off := w.faker.Int(0, len(entities)-1)
	for i := range entities {
		e := entities[(off+i)%len(entities)]
		var (
			op catalog.Operation
			ok bool
		)
		switch kind {
		case catalog.Insert:
			op, ok = w.insert(e)
		case catalog.Update:
			op, ok = w.update(e)
		case catalog.Delete:
			var id int64
			if id, ok = w.registry.SampleDeletable(e, w.faker); ok {
				op = catalog.Operation{Kind: catalog.Delete, Entity: e, ID: id}
			}
		}
		if ok {
			return op, true
		}
	}
	return catalog.Operation{}, false
}

func (w *Writer) insert(e catalog.Entity) (catalog.Operation, bool) {
	f := w.faker
	op := catalog.Operation{Kind: catalog.Insert, Entity: e}

	switch e {
	case catalog.Customer:
		op.Customer = &catalog.CustomerParams{Name: f.Name(), Address: f.Street()}
	case catalog.Account:
		customer, ok := w.registry.Sample(catalog.Customer, f)
		if !ok {
			return op, false
		}
		op.Account = &catalog.AccountParams{
			CustomerID:  customer,
			AccountType: datagen.Choose(f, catalog.AccountTypes),
			Balance:     f.Money(100, 100000),
		}
	case catalog.Security:
		ticker := f.Ticker()
		for i := 0; i < 10 && w.registry.HasTicker(ticker); i++ {
			ticker = f.Ticker()
		}
		op.Security = &catalog.SecurityParams{Ticker: ticker, Name: f.Company(), Sector: f.Sector()}
	case catalog.Trade, catalog.Order:
		account, ok := w.registry.Sample(catalog.Account, f)
		if !ok {
			return op, false
		}
		security, ok := w.registry.Sample(catalog.Security, f)
		if !ok {
			return op, false
		}
		if e == catalog.Trade {
			op.Trade = &catalog.TradeParams{
				AccountID:  account,
				SecurityID: security,
				TradeType:  datagen.Choose(f, catalog.Sides),
				Quantity:   f.Int(1, 1000),
				Price:      f.Money(1, 1000),
			}
		} else {
			op.Order = &catalog.OrderParams{
				AccountID:  account,
				SecurityID: security,
				OrderType:  datagen.Choose(f, catalog.Sides),
				Quantity:   f.Int(1, 1000),
				LimitPrice: f.Money(1, 1000),
				Status:     catalog.StatusPending,
			}
		}
	case catalog.MarketData:
		security, ok := w.registry.Sample(catalog.Security, f)
		if !ok {
			return op, false
		}
		op.MarketData = &catalog.MarketDataParams{
			SecurityID: security,
			Price:      f.Money(1, 1000),
			Volume:     f.Int64(0, 1000000),
		}
	default:
		return op, false
	}

	op.ID = w.registry.Next(e)
	return op, true
}

func (w *Writer) update(e catalog.Entity) (catalog.Operation, bool) {
	f := w.faker
	id, ok := w.registry.Sample(e, f)
	if !ok {
		return catalog.Operation{}, false
	}
	op := catalog.Operation{Kind: catalog.Update, Entity: e, ID: id}

	switch e {
	case catalog.Customer:
		op.Customer = &catalog.CustomerParams{Address: f.Street()}
	case catalog.Account:
		op.Account = &catalog.AccountParams{Balance: f.Money(100, 100000)}
	case catalog.Trade:
		op.Trade = &catalog.TradeParams{Price: f.Money(1, 1000)}
	case catalog.Order:
		op.Order = &catalog.OrderParams{
			Status:     datagen.Choose(f, catalog.OrderStatuses),
			LimitPrice: f.Money(1, 1000),
		}
	case catalog.MarketData:
		op.MarketData = &catalog.MarketDataParams{Price: f.Money(1, 1000), Volume: f.Int64(0, 1000000)}
	default:
		return catalog.Operation{}, false
	}
	return op, true
}
