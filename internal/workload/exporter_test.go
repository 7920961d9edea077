package workload

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pgEdge/pgedge-rrbench/internal/backend/memory"
	"github.com/pgEdge/pgedge-rrbench/internal/logging"
)

func recordedCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(testConfig(testEngine(memory.Options{})))
	if err != nil {
		t.Fatalf("Failed to create coordinator: %v", err)
	}
	w := c.Recorder().Producer("writer", RoleWriter)
	r := c.Recorder().Producer("reader-1", RoleReader)
	now := time.Now()
	w.Record(Sample{Name: "insert_trade", Start: now, Duration: 2 * time.Millisecond})
	w.Record(Sample{Name: "insert_trade", Start: now, Duration: time.Second, Outcome: OutcomeTimeout})
	r.Record(Sample{Name: "market_overview", Start: now, Duration: 5 * time.Millisecond, Rows: 3})
	r.Record(Sample{Name: "market_overview", Start: now, Duration: 5 * time.Millisecond, Outcome: OutcomeError})
	return c
}

func TestRunCollector(t *testing.T) {
	c := recordedCoordinator(t)
	collector := NewRunCollector(c)

	// 2 producers x 3 outcomes
	if n := testutil.CollectAndCount(collector, "rrbench_operations_total"); n != 6 {
		t.Errorf("Expected 6 operation series, got %d", n)
	}
	if n := testutil.CollectAndCount(collector, "rrbench_live_ids"); n != 6 {
		t.Errorf("Expected 6 entity series, got %d", n)
	}
	if n := testutil.CollectAndCount(collector, "rrbench_run_state"); n != 1 {
		t.Errorf("Expected 1 state series, got %d", n)
	}
}

func TestExporterServesMetrics(t *testing.T) {
	c := recordedCoordinator(t)
	exp := NewExporter("127.0.0.1:0", c)
	if err := exp.Start(); err != nil {
		t.Fatalf("Failed to start exporter: %v", err)
	}
	defer func() { _ = exp.Shutdown(context.Background()) }()

	resp, err := http.Get("http://" + exp.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("Failed to scrape: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}

	for _, expected := range []string{
		`rrbench_operations_total{outcome="timeout",producer="writer",role="writer"`,
		`rrbench_operations_total{outcome="error",producer="reader-1",role="reader"`,
		"rrbench_write_slots_skipped_total",
		`rrbench_live_ids{entity="customer"`,
	} {
		if !strings.Contains(string(body), expected) {
			t.Errorf("Expected scrape to contain %s", expected)
		}
	}
}

// syncBuffer is a bytes.Buffer safe for the logger goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReporterLogsStatistics(t *testing.T) {
	out := &syncBuffer{}
	logging.Init(logging.Config{Level: "info", Format: "json", Output: out})
	defer logging.Init(logging.DefaultConfig())

	c := recordedCoordinator(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.report(ctx, 20*time.Millisecond)
	}()
	time.Sleep(70 * time.Millisecond)
	cancel()
	<-done

	logged := out.String()
	if !strings.Contains(logged, `"message":"Statistics"`) {
		t.Fatalf("Expected a statistics line, got %s", logged)
	}
	if !strings.Contains(logged, `"writes":2`) || !strings.Contains(logged, `"read_errors":1`) {
		t.Errorf("Expected live totals in %s", logged)
	}
}
