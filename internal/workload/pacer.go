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
	"fmt"
	"math"
	"time"
)

// Bounds of the write rate, in transactions per second.
const (
	MinRate = 0.001
	MaxRate = 1e6
)

// ValidateRate reports whether rate can be paced.
func ValidateRate(rate float64) error {
	if math.IsNaN(rate) || rate < MinRate || rate > MaxRate {
		return fmt.Errorf("write rate %v out of range [%v, %v]", rate, MinRate, MaxRate)
	}
	return nil
}

// Pacer schedules write slots on absolute deadlines start + n/rate, so
// slow operations never accumulate drift. Deadlines are computed from the
// slot index, never by adding a rounded period, and a run of duration D
// has exactly round(rate*D) slots.
//
// When an operation overruns its period the deadlines that already passed
// are skipped rather than replayed: the pacer never bursts to catch up.
// Under sustained overrun realized throughput drops below the target; the
// number of skipped slots is reported so the shortfall is visible.
type Pacer struct {
	start   time.Time
	rate    float64
	slots   int64
	slot    int64
	skipped int64
	now     func() time.Time
}

// NewPacer creates a pacer issuing rate slots per second between start
// and end. The first slot is due at start.
func NewPacer(rate float64, start, end time.Time) (*Pacer, error) {
	if err := ValidateRate(rate); err != nil {
		return nil, err
	}
	slots := int64(math.Round(rate * end.Sub(start).Seconds()))
	if slots < 0 {
		slots = 0
	}
	return &Pacer{
		start: start,
		rate:  rate,
		slots: slots,
		slot:  -1,
		now:   time.Now,
	}, nil
}

// Period returns the nominal interval between deadlines.
func (p *Pacer) Period() time.Duration {
	return time.Duration(float64(time.Second) / p.rate)
}

// Slots returns the number of slots in the run.
func (p *Pacer) Slots() int64 {
	return p.slots
}

// Skipped returns the number of deadlines passed over so far.
func (p *Pacer) Skipped() int64 {
	return p.skipped
}

// Skip marks the most recently returned slot as not used.
func (p *Pacer) Skip() {
	p.skipped++
}

func (p *Pacer) deadline(n int64) time.Time {
	return p.start.Add(time.Duration(float64(n) * float64(time.Second) / p.rate))
}

// firstNotBefore returns the smallest slot index whose deadline is not
// before t.
func (p *Pacer) firstNotBefore(t time.Time) int64 {
	m := int64(math.Ceil(t.Sub(p.start).Seconds() * p.rate))
	if m < 0 {
		m = 0
	}
	for m > 0 && !p.deadline(m-1).Before(t) {
		m--
	}
	for p.deadline(m).Before(t) {
		m++
	}
	return m
}

// Next picks the next slot and returns its deadline. It reports false
// when no slot remains. Slots whose deadline already passed are counted
// as skipped; deadlines at or past the end of the run are not slots and
// are never counted.
func (p *Pacer) Next() (time.Time, bool) {
	n := p.slot + 1
	if n >= p.slots {
		return time.Time{}, false
	}
	if now := p.now(); p.slot >= 0 && now.After(p.deadline(n)) {
		// Overran: jump to the first deadline not yet in the past.
		m := min(p.firstNotBefore(now), p.slots)
		p.skipped += m - n
		p.slot = m - 1
		n = m
		if n >= p.slots {
			return time.Time{}, false
		}
	}
	p.slot = n
	return p.deadline(n), true
}

// Wait blocks until the next slot's deadline. It returns false when the
// run is over or ctx is done first.
func (p *Pacer) Wait(ctx context.Context) bool {
	d, ok := p.Next()
	if !ok {
		return false
	}
	wait := d.Sub(p.now())
	if wait <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
