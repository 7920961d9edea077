package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pgEdge/pgedge-rrbench/internal/backend"
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
)

// testDB creates a schema in a temp file and loads a tiny dataset: two
// customers with one account each, two securities, and one trade, order
// and market data row per account or security.
func testDB(t *testing.T) *Backend {
	t.Helper()
	ctx := context.Background()
	b, err := Open(ctx, filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	if err := b.CreateSchema(ctx); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	now := time.Now()
	data := map[catalog.Entity][][]any{
		catalog.Customer: {
			{int64(1), "Ann Lee", "1 Main St", now},
			{int64(2), "Bo Chan", nil, now},
		},
		catalog.Account: {
			{int64(10), int64(1), "Savings", 150000.0, now},
			{int64(11), int64(2), "Checking", 500.0, now},
		},
		catalog.Security: {
			{int64(100), "ACME", "Acme Corp", "Industrials", now},
			{int64(101), "BETA", "Beta Inc", "Energy", now},
		},
		catalog.Trade: {
			{int64(1000), int64(10), int64(100), "buy", int64(100), 200.0, now},
			{int64(1001), int64(11), int64(101), "sell", int64(5), 20.0, now},
		},
		catalog.Order: {
			{int64(2000), int64(10), int64(100), "buy", int64(10), 199.5, "pending", now},
			{int64(2001), int64(11), int64(101), "sell", int64(5), nil, "canceled", now},
		},
		catalog.MarketData: {
			{int64(3000), int64(100), 201.0, int64(5000), now},
			{int64(3001), int64(101), 19.0, int64(700), now},
		},
	}
	for _, e := range catalog.Entities {
		n, err := b.LoadRows(ctx, e, e.ColumnNames(), data[e])
		if err != nil {
			t.Fatalf("Failed to load %s: %v", e, err)
		}
		if n != int64(len(data[e])) {
			t.Fatalf("Expected %d %s rows, got %d", len(data[e]), e, n)
		}
	}
	return b
}

func TestLoadCorpus(t *testing.T) {
	b := testDB(t)
	c, err := b.LoadCorpus(context.Background())
	if err != nil {
		t.Fatalf("Failed to load corpus: %v", err)
	}
	if c.Size() != 12 {
		t.Errorf("Expected 12 rows, got %d", c.Size())
	}
	if c.MaxIDs[catalog.Order] != 2001 {
		t.Errorf("Expected max order id 2001, got %d", c.MaxIDs[catalog.Order])
	}
	for _, o := range c.Orders {
		if o.Parent == 0 || o.Second == 0 {
			t.Errorf("Expected order %d to carry both parents", o.ID)
		}
	}
	for _, s := range c.Securities {
		if s.Ticker == "" || s.Sector == "" {
			t.Errorf("Expected security %d to carry ticker and sector", s.ID)
		}
	}
}

func TestWritesAndCascade(t *testing.T) {
	b := testDB(t)
	ctx := context.Background()
	p, err := b.OpenPrimary(ctx, "writer")
	if err != nil {
		t.Fatalf("Failed to open primary: %v", err)
	}
	defer p.Close(ctx)

	ops := []catalog.Operation{
		{Kind: catalog.Insert, Entity: catalog.Trade, ID: 1002, Trade: &catalog.TradeParams{AccountID: 10, SecurityID: 101, TradeType: "buy", Quantity: 3, Price: 18}},
		{Kind: catalog.Update, Entity: catalog.Order, ID: 2000, Order: &catalog.OrderParams{Status: "completed", LimitPrice: 201}},
		{Kind: catalog.Update, Entity: catalog.Account, ID: 999, Account: &catalog.AccountParams{Balance: 1}},
		{Kind: catalog.Delete, Entity: catalog.Customer, ID: 1},
	}
	for _, op := range ops {
		if _, err := p.ExecuteWrite(ctx, op); err != nil {
			t.Fatalf("%s failed: %v", op.Name(), err)
		}
	}

	c, err := b.LoadCorpus(ctx)
	if err != nil {
		t.Fatalf("Failed to load corpus: %v", err)
	}
	// Deleting customer 1 removes account 10 with its two trades and order.
	if len(c.Customers) != 1 || len(c.Accounts) != 1 || len(c.Trades) != 1 || len(c.Orders) != 1 {
		t.Errorf("Expected cascade to leave one row each, got %d customers, %d accounts, %d trades, %d orders",
			len(c.Customers), len(c.Accounts), len(c.Trades), len(c.Orders))
	}

	bad := catalog.Operation{Kind: catalog.Insert, Entity: catalog.Account, ID: 50,
		Account: &catalog.AccountParams{CustomerID: 1, AccountType: "Savings", Balance: 1}}
	if _, err := p.ExecuteWrite(ctx, bad); err == nil {
		t.Error("Expected a foreign key violation")
	}
}

func TestReadsEveryView(t *testing.T) {
	b := testDB(t)
	ctx := context.Background()
	r, err := b.OpenReplica(ctx, "reader-1")
	if err != nil {
		t.Fatalf("Failed to open replica: %v", err)
	}
	defer r.Close(ctx)

	params := catalog.Params{
		catalog.ParamCustomerID: int64(1),
		catalog.ParamAccountID:  int64(10),
		catalog.ParamSecurityID: int64(100),
		catalog.ParamSector:     "Industrials",
		catalog.ParamTicker:     "ACME",
	}
	expected := map[string]int64{
		"customer_portfolio":       1,
		"market_overview":          1,
		"recent_large_trades":      1,
		"customer_order_book":      1,
		"high_value_customers":     1,
		"pending_orders_summary":   1,
		"account_activity_summary": 1,
	}
	for _, q := range catalog.Default().Queries {
		n, err := r.ExecuteRead(ctx, q, params)
		if err != nil {
			t.Errorf("%s failed: %v", q.Name, err)
			continue
		}
		if want, ok := expected[q.Name]; ok && n != want {
			t.Errorf("%s: expected %d rows, got %d", q.Name, want, n)
		}
	}
}

func TestClosedHandleIsLost(t *testing.T) {
	b := testDB(t)
	ctx := context.Background()
	r, err := b.OpenReplica(ctx, "reader-1")
	if err != nil {
		t.Fatalf("Failed to open replica: %v", err)
	}
	if err := r.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	q, _ := catalog.Default().Query("top_performers")
	_, err = r.ExecuteRead(ctx, q, nil)
	if !errors.Is(err, backend.ErrConnectionLost) {
		t.Errorf("Expected ErrConnectionLost, got %v", err)
	}
}

func TestRegisteredFactory(t *testing.T) {
	ctx := context.Background()
	if _, err := backend.Open(ctx, "sqlite", backend.Config{}); err == nil {
		t.Error("Expected an error without a database path")
	}

	b, err := backend.Open(ctx, "sqlite", backend.Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	defer b.Close()
	if b.Name() != "sqlite" {
		t.Errorf("Expected name sqlite, got %s", b.Name())
	}
}
