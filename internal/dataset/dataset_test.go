package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pgEdge/pgedge-rrbench/internal/backend/sqlite"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
)

var sampleFiles = map[catalog.Entity]string{
	catalog.Customer: `customer_id,name,address,created_at
1,Ada Lovelace,12 Analytical Way,2025-01-02 10:00:00
2,Grace Hopper,,2025-01-02 11:00:00
`,
	catalog.Account: `account_id,customer_id,account_type,balance,created_at
1,1,Savings,1500.25,2025-01-03 10:00:00
2,2,Checking,99.5,2025-01-03 10:00:00
3,2,Brokerage,0,2025-01-03 10:00:00
`,
	catalog.Security: `security_id,ticker,name,sector,created_at
1,ABCD,Acme,Technology,2025-01-01 09:00:00
2,WXYZ,,,2025-01-01 09:00:00
`,
	catalog.Trade: `trade_id,account_id,security_id,trade_type,quantity,price,trade_date
1,1,1,buy,10,25.5,2025-01-04 12:00:00
2,3,2,sell,5,30,2025-01-04 12:30:00
`,
	catalog.Order: `order_id,account_id,security_id,order_type,quantity,limit_price,status,order_date
1,1,1,buy,10,,pending,2025-01-04 12:00:00
`,
	catalog.MarketData: `market_data_id,security_id,price,volume,market_date
1,1,25.5,1000,2025-01-04 16:00:00
2,2,30.25,500,2025-01-04 16:00:00
`,
}

func writeDataset(t *testing.T, files map[catalog.Entity]string) string {
	t.Helper()
	dir := t.TempDir()
	for e, content := range files {
		if err := os.WriteFile(filepath.Join(dir, e.DataFile()), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", e.DataFile(), err)
		}
	}
	return dir
}

// recordingLoader captures everything handed to it.
type recordingLoader struct {
	batches  map[catalog.Entity][]int
	rows     map[catalog.Entity][][]any
	order    []catalog.Entity
	advanced bool
	recorded map[string]string
}

func newRecordingLoader() *recordingLoader {
	return &recordingLoader{
		batches: make(map[catalog.Entity][]int),
		rows:    make(map[catalog.Entity][][]any),
	}
}

func (l *recordingLoader) CreateSchema(context.Context) error { return nil }
func (l *recordingLoader) DropSchema(context.Context) error   { return nil }

func (l *recordingLoader) LoadRows(_ context.Context, e catalog.Entity, _ []string, rows [][]any) (int64, error) {
	if len(l.order) == 0 || l.order[len(l.order)-1] != e {
		l.order = append(l.order, e)
	}
	l.batches[e] = append(l.batches[e], len(rows))
	for _, r := range rows {
		l.rows[e] = append(l.rows[e], append([]any(nil), r...))
	}
	return int64(len(rows)), nil
}

func (l *recordingLoader) AdvanceSequences(context.Context) error {
	l.advanced = true
	return nil
}

func (l *recordingLoader) RecordLoad(_ context.Context, values map[string]string) error {
	l.recorded = values
	return nil
}

func TestLoadBatchesInEntityOrder(t *testing.T) {
	dir := writeDataset(t, sampleFiles)
	loader := newRecordingLoader()

	res, err := Load(context.Background(), loader, Options{Dir: dir, BatchSize: 2})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loader.order) != len(catalog.Entities) {
		t.Fatalf("Expected %d tables loaded, got %d", len(catalog.Entities), len(loader.order))
	}
	for i, e := range catalog.Entities {
		if loader.order[i] != e {
			t.Errorf("Expected table %d to be %s, got %s", i, e, loader.order[i])
		}
	}
	if got := loader.batches[catalog.Account]; len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Errorf("Expected account batches [2 1], got %v", got)
	}
	if res.Total() != 12 {
		t.Errorf("Expected 12 rows, got %d", res.Total())
	}
	if !loader.advanced {
		t.Error("Expected sequences to be advanced")
	}
	if loader.recorded["data_dir"] != dir {
		t.Errorf("Expected data_dir %s recorded, got %q", dir, loader.recorded["data_dir"])
	}
	if loader.recorded["customers_rows"] != "2" {
		t.Errorf("Expected customers_rows 2, got %q", loader.recorded["customers_rows"])
	}
}

func TestLoadParsesColumnTypes(t *testing.T) {
	dir := writeDataset(t, sampleFiles)
	loader := newRecordingLoader()

	if _, err := Load(context.Background(), loader, DefaultOptions(dir)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	customer := loader.rows[catalog.Customer][1]
	if customer[0] != int64(2) {
		t.Errorf("Expected id int64(2), got %#v", customer[0])
	}
	if customer[2] != nil {
		t.Errorf("Expected nil address, got %#v", customer[2])
	}
	want := time.Date(2025, 1, 2, 11, 0, 0, 0, time.UTC)
	if ts, ok := customer[3].(time.Time); !ok || !ts.Equal(want) {
		t.Errorf("Expected created_at %v, got %#v", want, customer[3])
	}

	account := loader.rows[catalog.Account][0]
	if account[3] != 1500.25 {
		t.Errorf("Expected balance 1500.25, got %#v", account[3])
	}
	order := loader.rows[catalog.Order][0]
	if order[5] != nil {
		t.Errorf("Expected nil limit_price, got %#v", order[5])
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		entity  catalog.Entity
		content string
		wantErr string
	}{
		{
			name:    "wrong header",
			entity:  catalog.Customer,
			content: "id,name,address,created_at\n",
			wantErr: `column 1 is "id"`,
		},
		{
			name:    "missing column",
			entity:  catalog.MarketData,
			content: "market_data_id,security_id,price,volume\n",
			wantErr: "expected 5 columns, got 4",
		},
		{
			name:    "bad integer",
			entity:  catalog.Trade,
			content: "trade_id,account_id,security_id,trade_type,quantity,price,trade_date\n1,1,1,buy,ten,25,2025-01-04 12:00:00\n",
			wantErr: "line 2: quantity",
		},
		{
			name:    "missing required value",
			entity:  catalog.Account,
			content: "account_id,customer_id,account_type,balance,created_at\n1,1,Savings,,2025-01-03 10:00:00\n",
			wantErr: "balance: value required",
		},
		{
			name:    "bad timestamp",
			entity:  catalog.Security,
			content: "security_id,ticker,name,sector,created_at\n1,ABCD,Acme,Tech,yesterday\n",
			wantErr: "invalid timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := make(map[catalog.Entity]string, len(sampleFiles))
			for e, c := range sampleFiles {
				files[e] = c
			}
			files[tt.entity] = tt.content
			dir := writeDataset(t, files)

			_, err := Load(context.Background(), newRecordingLoader(), DefaultOptions(dir))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCheckMissingFile(t *testing.T) {
	files := make(map[catalog.Entity]string)
	for e, c := range sampleFiles {
		if e != catalog.Order {
			files[e] = c
		}
	}
	if err := Check(writeDataset(t, files)); err == nil {
		t.Error("Expected an error for a missing orders.csv")
	}
}

func TestParseValueTimestampLayouts(t *testing.T) {
	col := catalog.Column{Name: "created_at", Kind: catalog.ColumnTimestamp}
	want := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	for _, field := range []string{"2025-03-04 05:06:07", "2025-03-04T05:06:07Z", "2025-03-04 05:06:07.000"} {
		v, err := ParseValue(col, field)
		if err != nil {
			t.Errorf("%s: unexpected error %v", field, err)
			continue
		}
		if !v.(time.Time).Equal(want) {
			t.Errorf("%s: expected %v, got %v", field, want, v)
		}
	}
}

func TestLoadIntoSQLite(t *testing.T) {
	ctx := context.Background()
	b, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	defer b.Close()
	if err := b.CreateSchema(ctx); err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}

	if _, err := Load(ctx, b, DefaultOptions(writeDataset(t, sampleFiles))); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	corpus, err := b.LoadCorpus(ctx)
	if err != nil {
		t.Fatalf("LoadCorpus failed: %v", err)
	}
	if len(corpus.Accounts) != 3 {
		t.Errorf("Expected 3 accounts, got %d", len(corpus.Accounts))
	}
	if corpus.MaxIDs[catalog.Trade] != 2 {
		t.Errorf("Expected max trade id 2, got %d", corpus.MaxIDs[catalog.Trade])
	}
	if corpus.Securities[1].Sector != "" {
		t.Errorf("Expected empty sector, got %q", corpus.Securities[1].Sector)
	}
}
