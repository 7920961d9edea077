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
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome is the result of a single read or write.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeError:
		return "error"
	case OutcomeTimeout:
		return "timeout"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// Role distinguishes write and read producers.
type Role string

const (
	RoleWriter Role = "writer"
	RoleReader Role = "reader"
)

// Sample is one timed operation.
type Sample struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	Outcome  Outcome
	Rows     int64
}

// Producer is a private sample buffer owned by a single worker. Its mutex
// is only ever contended by the final merge.
type Producer struct {
	name string
	role Role

	mu      sync.Mutex
	samples []Sample
	closed  bool
	late    int64

	// Live counters read by the reporter and the exporter while the run
	// is in progress.
	total     atomic.Int64
	successes atomic.Int64
	errors    atomic.Int64
	timeouts  atomic.Int64
	latencyNs atomic.Int64
}

// Name returns the producer name.
func (p *Producer) Name() string {
	return p.name
}

// Role returns the producer role.
func (p *Producer) Role() Role {
	return p.role
}

// Record appends a sample. Samples recorded after Finalize are dropped and
// counted as late.
func (p *Producer) Record(s Sample) {
	p.mu.Lock()
	if p.closed {
		p.late++
		p.mu.Unlock()
		return
	}
	p.samples = append(p.samples, s)
	p.mu.Unlock()

	p.total.Add(1)
	p.latencyNs.Add(int64(s.Duration))
	switch s.Outcome {
	case OutcomeSuccess:
		p.successes.Add(1)
	case OutcomeError:
		p.errors.Add(1)
	case OutcomeTimeout:
		p.timeouts.Add(1)
	}
}

// Live is a point-in-time view of a producer's counters.
type Live struct {
	Producer  string
	Role      Role
	Total     int64
	Successes int64
	Errors    int64
	Timeouts  int64
	Latency   time.Duration
}

// Live returns the current counters.
func (p *Producer) Live() Live {
	return Live{
		Producer:  p.name,
		Role:      p.role,
		Total:     p.total.Load(),
		Successes: p.successes.Load(),
		Errors:    p.errors.Load(),
		Timeouts:  p.timeouts.Load(),
		Latency:   time.Duration(p.latencyNs.Load()),
	}
}

// Recorder hands out producers and merges their buffers once all of them
// have stopped.
type Recorder struct {
	mu        sync.Mutex
	producers []*Producer

	once   sync.Once
	report *Report
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Producer registers a new sample buffer.
func (r *Recorder) Producer(name string, role Role) *Producer {
	p := &Producer{name: name, role: role, samples: make([]Sample, 0, 1024)}
	r.mu.Lock()
	r.producers = append(r.producers, p)
	r.mu.Unlock()
	return p
}

// Producers returns the registered producers in registration order.
func (r *Recorder) Producers() []*Producer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Producer, len(r.producers))
	copy(out, r.producers)
	return out
}

// Live returns the live counters of every producer.
func (r *Recorder) Live() []Live {
	ps := r.Producers()
	out := make([]Live, len(ps))
	for i, p := range ps {
		out[i] = p.Live()
	}
	return out
}

// Finalize merges every producer buffer into per-name aggregates. Wall is
// the run's wall clock duration used for throughput. Only the first call
// does any work; later calls return the same report.
func (r *Recorder) Finalize(wall time.Duration) *Report {
	r.once.Do(func() {
		r.report = r.finalize(wall)
	})
	return r.report
}

func (r *Recorder) finalize(wall time.Duration) *Report {
	byName := make(map[string]*aggregator)
	var order []string
	rep := &Report{Wall: wall}

	for _, p := range r.Producers() {
		p.mu.Lock()
		p.closed = true
		samples := p.samples
		p.mu.Unlock()

		ps := ProducerSummary{Name: p.name, Role: p.role, Samples: int64(len(samples))}
		for i := range samples {
			s := &samples[i]
			agg, ok := byName[s.Name]
			if !ok {
				agg = &aggregator{name: s.Name, role: p.role}
				byName[s.Name] = agg
				order = append(order, s.Name)
			}
			agg.add(s)
			if s.Outcome == OutcomeSuccess {
				ps.Successes++
			}
		}
		rep.Producers = append(rep.Producers, ps)
	}

	for _, name := range order {
		rep.Metrics = append(rep.Metrics, byName[name].result(wall))
	}
	sortMetrics(rep.Metrics)
	return rep
}

// Late returns the number of samples dropped because they arrived after
// Finalize.
func (r *Recorder) Late() int64 {
	var n int64
	for _, p := range r.Producers() {
		p.mu.Lock()
		n += p.late
		p.mu.Unlock()
	}
	return n
}
