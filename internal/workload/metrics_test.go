package workload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPercentileNearestRank(t *testing.T) {
	// 1ms..20ms
	sorted := make([]time.Duration, 20)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}

	tests := []struct {
		p        int
		expected time.Duration
	}{
		{50, 10 * time.Millisecond}, // ceil(10)-1 = 9
		{95, 19 * time.Millisecond}, // ceil(19)-1 = 18
		{99, 20 * time.Millisecond}, // ceil(19.8)-1 = 19
		{100, 20 * time.Millisecond},
		{1, 1 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("p%d", tt.p), func(t *testing.T) {
			if got := Percentile(sorted, tt.p); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestPercentileSmallSets(t *testing.T) {
	if got := Percentile(nil, 50); got != 0 {
		t.Errorf("Expected 0 for an empty set, got %s", got)
	}

	one := []time.Duration{7 * time.Millisecond}
	for _, p := range []int{50, 95, 99} {
		if got := Percentile(one, p); got != 7*time.Millisecond {
			t.Errorf("p%d of a single sample: expected 7ms, got %s", p, got)
		}
	}

	// n=7: p50 -> ceil(3.5)-1 = 3, p95 -> ceil(6.65)-1 = 6
	seven := []time.Duration{1, 2, 3, 4, 5, 6, 7}
	if got := Percentile(seven, 50); got != 4 {
		t.Errorf("Expected p50 4, got %d", got)
	}
	if got := Percentile(seven, 95); got != 7 {
		t.Errorf("Expected p95 7, got %d", got)
	}
}

func TestFinalizeAggregates(t *testing.T) {
	rec := NewRecorder()
	w := rec.Producer("writer", RoleWriter)
	r := rec.Producer("reader-1", RoleReader)

	start := time.Now()
	// Unsorted so the merge has to sort.
	for _, d := range []int{5, 1, 4, 2, 3} {
		w.Record(Sample{Name: "insert_trade", Start: start, Duration: time.Duration(d) * time.Millisecond})
	}
	w.Record(Sample{Name: "insert_trade", Start: start, Duration: time.Second, Outcome: OutcomeError})
	w.Record(Sample{Name: "delete_order", Start: start, Duration: 30 * time.Second, Outcome: OutcomeTimeout})
	r.Record(Sample{Name: "top_performers", Start: start, Duration: 8 * time.Millisecond, Rows: 10})
	r.Record(Sample{Name: "top_performers", Start: start, Duration: 12 * time.Millisecond, Rows: 0})

	rep := rec.Finalize(2 * time.Second)

	if len(rep.Metrics) != 3 {
		t.Fatalf("Expected 3 metrics, got %d", len(rep.Metrics))
	}
	// Writes first, then by name.
	names := []string{rep.Metrics[0].Name, rep.Metrics[1].Name, rep.Metrics[2].Name}
	if strings.Join(names, ",") != "delete_order,insert_trade,top_performers" {
		t.Errorf("Unexpected metric order: %v", names)
	}

	ins := rep.Metrics[1]
	if ins.Count != 6 || ins.Successes != 5 || ins.Errors != 1 || ins.Timeouts != 0 {
		t.Errorf("Unexpected insert_trade counts: %+v", ins)
	}
	if ins.Min != time.Millisecond || ins.Max != 5*time.Millisecond {
		t.Errorf("Expected min 1ms max 5ms, got %s %s", ins.Min, ins.Max)
	}
	if ins.Mean != 3*time.Millisecond {
		t.Errorf("Expected mean 3ms, got %s", ins.Mean)
	}
	if ins.P50 != 3*time.Millisecond || ins.P95 != 5*time.Millisecond || ins.P99 != 5*time.Millisecond {
		t.Errorf("Unexpected percentiles: %s %s %s", ins.P50, ins.P95, ins.P99)
	}
	if ins.Throughput != 2.5 {
		t.Errorf("Expected throughput 2.5/s, got %v", ins.Throughput)
	}

	del := rep.Metrics[0]
	if del.Timeouts != 1 || del.Errors != 0 || del.Successes != 0 {
		t.Errorf("Expected one timeout distinct from errors, got %+v", del)
	}

	q := rep.Metrics[2]
	if q.Rows != 10 || q.Successes != 2 {
		t.Errorf("Expected zero-row reads to count as successes, got %+v", q)
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	rec := NewRecorder()
	p := rec.Producer("writer", RoleWriter)
	p.Record(Sample{Name: "insert_customer", Duration: time.Millisecond})

	first := rec.Finalize(time.Second)
	p.Record(Sample{Name: "insert_customer", Duration: time.Millisecond})
	second := rec.Finalize(10 * time.Second)

	if first != second {
		t.Error("Expected Finalize to return the same report")
	}
	if first.Metrics[0].Count != 1 {
		t.Errorf("Expected late sample to be excluded, got count %d", first.Metrics[0].Count)
	}
	if rec.Late() != 1 {
		t.Errorf("Expected 1 late sample, got %d", rec.Late())
	}
}

func TestLiveCounters(t *testing.T) {
	rec := NewRecorder()
	p := rec.Producer("reader-1", RoleReader)
	p.Record(Sample{Name: "q", Duration: 2 * time.Millisecond})
	p.Record(Sample{Name: "q", Duration: 3 * time.Millisecond, Outcome: OutcomeError})
	p.Record(Sample{Name: "q", Duration: 5 * time.Millisecond, Outcome: OutcomeTimeout})

	live := rec.Live()
	if len(live) != 1 {
		t.Fatalf("Expected 1 producer, got %d", len(live))
	}
	l := live[0]
	if l.Total != 3 || l.Successes != 1 || l.Errors != 1 || l.Timeouts != 1 {
		t.Errorf("Unexpected live counters: %+v", l)
	}
	if l.Latency != 10*time.Millisecond {
		t.Errorf("Expected 10ms cumulative latency, got %s", l.Latency)
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		producers []ProducerSummary
		failed    bool
		reasons   int
	}{
		{
			name: "all productive",
			producers: []ProducerSummary{
				{Name: "writer", Role: RoleWriter, Successes: 5},
				{Name: "reader-1", Role: RoleReader, Successes: 1},
			},
		},
		{
			name: "writer lanes share the requirement",
			producers: []ProducerSummary{
				{Name: "writer-1", Role: RoleWriter, Successes: 0},
				{Name: "writer-2", Role: RoleWriter, Successes: 3},
				{Name: "reader-1", Role: RoleReader, Successes: 1},
			},
		},
		{
			name: "idle writer",
			producers: []ProducerSummary{
				{Name: "writer", Role: RoleWriter, Samples: 4},
				{Name: "reader-1", Role: RoleReader, Successes: 1},
			},
			failed:  true,
			reasons: 1,
		},
		{
			name: "one idle reader",
			producers: []ProducerSummary{
				{Name: "writer", Role: RoleWriter, Successes: 5},
				{Name: "reader-1", Role: RoleReader, Successes: 1},
				{Name: "reader-2", Role: RoleReader},
			},
			failed:  true,
			reasons: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &Report{Producers: tt.producers}
			rep.Evaluate()
			if rep.Failed != tt.failed {
				t.Errorf("Expected failed=%v, got %v (%v)", tt.failed, rep.Failed, rep.FailureReasons)
			}
			if len(rep.FailureReasons) != tt.reasons {
				t.Errorf("Expected %d reasons, got %v", tt.reasons, rep.FailureReasons)
			}
		})
	}
}

func TestReportPrint(t *testing.T) {
	rec := NewRecorder()
	p := rec.Producer("writer", RoleWriter)
	p.Record(Sample{Name: "insert_trade", Duration: 4 * time.Millisecond})
	rep := rec.Finalize(time.Second)
	rep.RunID = "run-1"
	rep.Backend = "memory"
	rep.Evaluate()

	var table bytes.Buffer
	if err := rep.Print(&table, "table"); err != nil {
		t.Fatalf("Print table: %v", err)
	}
	if !strings.Contains(table.String(), "insert_trade") {
		t.Errorf("Expected insert_trade in table, got:\n%s", table.String())
	}

	var out bytes.Buffer
	if err := rep.Print(&out, "json"); err != nil {
		t.Fatalf("Print json: %v", err)
	}
	var decoded struct {
		RunID   string `json:"run_id"`
		Metrics []struct {
			Name  string  `json:"name"`
			P50Ms float64 `json:"p50_ms"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if decoded.RunID != "run-1" || len(decoded.Metrics) != 1 || decoded.Metrics[0].P50Ms != 4 {
		t.Errorf("Unexpected JSON report: %+v", decoded)
	}
}

// K producers recording M samples each concurrently always merge to K*M.
func TestFinalizeMergeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("merged count equals K*M", prop.ForAll(
		func(k, m int) bool {
			rec := NewRecorder()
			var wg sync.WaitGroup
			for i := 0; i < k; i++ {
				p := rec.Producer(fmt.Sprintf("reader-%d", i), RoleReader)
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for j := 0; j < m; j++ {
						p.Record(Sample{
							Name:     fmt.Sprintf("query_%d", (id+j)%3),
							Duration: time.Duration(j+1) * time.Microsecond,
						})
					}
				}(i)
			}
			wg.Wait()

			rep := rec.Finalize(time.Second)
			var total int64
			for _, metric := range rep.Metrics {
				total += metric.Count
			}
			var perProducer int64
			for _, ps := range rep.Producers {
				perProducer += ps.Samples
			}
			return total == int64(k*m) && perProducer == int64(k*m)
		},
		gen.IntRange(1, 16),
		gen.IntRange(0, 500),
	))

	properties.TestingRun(t)
}
