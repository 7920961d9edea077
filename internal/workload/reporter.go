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
	"time"

	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

// totals sums live counters by role.
type totals struct {
	total, successes, errors, timeouts int64
	latency                            time.Duration
}

func sumLive(live []Live, role Role) totals {
	var t totals
	for _, l := range live {
		if l.Role != role {
			continue
		}
		t.total += l.Total
		t.successes += l.Successes
		t.errors += l.Errors
		t.timeouts += l.Timeouts
		t.latency += l.Latency
	}
	return t
}

func (t totals) avgLatencyMs() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.latency) / float64(t.total) / 1e6
}

// report logs interim statistics every interval until ctx is done.
func (c *Coordinator) report(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastWrites, lastReads int64
	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			live := c.recorder.Live()
			w := sumLive(live, RoleWriter)
			r := sumLive(live, RoleReader)

			// Calculate rates since last report
			elapsed := now.Sub(lastTime).Seconds()
			writeRate := float64(w.total-lastWrites) / elapsed
			readRate := float64(r.total-lastReads) / elapsed

			var skipped int64
			if wr := c.writer.Load(); wr != nil {
				skipped = wr.Skipped()
			}

			logging.Info().
				Int64("writes", w.total).
				Int64("write_errors", w.errors).
				Int64("write_timeouts", w.timeouts).
				Int64("skipped_slots", skipped).
				Float64("write_tps", writeRate).
				Float64("write_avg_ms", w.avgLatencyMs()).
				Int64("reads", r.total).
				Int64("read_errors", r.errors).
				Int64("read_timeouts", r.timeouts).
				Float64("read_qps", readRate).
				Float64("read_avg_ms", r.avgLatencyMs()).
				Msg("Statistics")

			lastWrites = w.total
			lastReads = r.total
			lastTime = now
		}
	}
}
