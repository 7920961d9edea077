package sqlgen

import (
	"strings"
	"testing"

	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
)

func TestWriteStatements(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		op       catalog.Operation
		expected string
		args     int
	}{
		{
			name:     "insert customer postgres",
			dialect:  Postgres,
			op:       catalog.Operation{Kind: catalog.Insert, Entity: catalog.Customer, ID: 7, Customer: &catalog.CustomerParams{Name: "Ann", Address: "1 Main St"}},
			expected: "INSERT INTO customers (customer_id, name, address) VALUES ($1, $2, $3)",
			args:     3,
		},
		{
			name:     "insert trade sqlite",
			dialect:  SQLite,
			op:       catalog.Operation{Kind: catalog.Insert, Entity: catalog.Trade, ID: 9, Trade: &catalog.TradeParams{AccountID: 1, SecurityID: 2, TradeType: "buy", Quantity: 5, Price: 10}},
			expected: "INSERT INTO trades (trade_id, account_id, security_id, trade_type, quantity, price) VALUES (?, ?, ?, ?, ?, ?)",
			args:     6,
		},
		{
			name:     "update account targets the account id",
			dialect:  Postgres,
			op:       catalog.Operation{Kind: catalog.Update, Entity: catalog.Account, ID: 3, Account: &catalog.AccountParams{Balance: 12.5}},
			expected: "UPDATE accounts SET balance = $1 WHERE account_id = $2",
			args:     2,
		},
		{
			name:     "update market data touches the date",
			dialect:  Postgres,
			op:       catalog.Operation{Kind: catalog.Update, Entity: catalog.MarketData, ID: 3, MarketData: &catalog.MarketDataParams{Price: 1, Volume: 2}},
			expected: "UPDATE market_data SET price = $1, volume = $2, market_date = CURRENT_TIMESTAMP WHERE market_data_id = $3",
			args:     3,
		},
		{
			name:     "delete order",
			dialect:  SQLite,
			op:       catalog.Operation{Kind: catalog.Delete, Entity: catalog.Order, ID: 4},
			expected: "DELETE FROM orders WHERE order_id = ?",
			args:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, args, err := tt.dialect.Write(tt.op)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if stmt != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, stmt)
			}
			if len(args) != tt.args {
				t.Errorf("Expected %d args, got %d", tt.args, len(args))
			}
		})
	}
}

func TestWriteRejectsSecurityUpdate(t *testing.T) {
	op := catalog.Operation{Kind: catalog.Update, Entity: catalog.Security, ID: 1, Security: &catalog.SecurityParams{Ticker: "X"}}
	if _, _, err := Postgres.Write(op); err == nil {
		t.Error("Expected an error for a security update")
	}
}

func TestReadStatements(t *testing.T) {
	cat := catalog.Default()

	q, _ := cat.Query("market_overview")
	stmt, args, err := Postgres.Read(q, catalog.Params{catalog.ParamSector: "Energy"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stmt != "SELECT * FROM market_overview WHERE sector = $1" || len(args) != 1 {
		t.Errorf("Unexpected statement %q with %d args", stmt, len(args))
	}

	q, _ = cat.Query("top_performers")
	stmt, args, err = SQLite.Read(q, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stmt != "SELECT * FROM top_performers" || len(args) != 0 {
		t.Errorf("Unexpected statement %q with %d args", stmt, len(args))
	}

	q, _ = cat.Query("customer_portfolio")
	if _, _, err := SQLite.Read(q, catalog.Params{}); err == nil {
		t.Error("Expected an error for a missing parameter")
	}
}

func TestEveryQueryHasAView(t *testing.T) {
	for _, d := range []Dialect{Postgres, SQLite} {
		for _, q := range catalog.Default().Queries {
			stmt, err := d.View(q.Name)
			if err != nil {
				t.Errorf("%s: %v", d.Name, err)
				continue
			}
			for _, col := range q.Shape {
				if !strings.Contains(stmt, col) {
					t.Errorf("%s: view %s does not mention column %s", d.Name, q.Name, col)
				}
			}
		}
		if n := len(d.ViewNames()); n != len(catalog.Default().Queries) {
			t.Errorf("%s: expected %d views, got %d", d.Name, len(catalog.Default().Queries), n)
		}
	}
}

func TestInsertRows(t *testing.T) {
	got := Postgres.InsertRows("customers", []string{"customer_id", "name"}, 2)
	expected := "INSERT INTO customers (customer_id, name) VALUES ($1, $2), ($3, $4)"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestDropStatementsOrder(t *testing.T) {
	stmts := SQLite.DropStatements(catalog.Default())
	last := stmts[len(stmts)-1]
	if last != "DROP TABLE IF EXISTS customers" {
		t.Errorf("Expected customers to be dropped last, got %q", last)
	}
	if Postgres.AdvanceSequence(catalog.Trade) == "" {
		t.Error("Expected a sequence statement for postgres")
	}
	if SQLite.AdvanceSequence(catalog.Trade) != "" {
		t.Error("Expected no sequence statement for sqlite")
	}
}

func TestCorpusQuery(t *testing.T) {
	tests := []struct {
		entity   catalog.Entity
		expected string
	}{
		{catalog.Customer, "SELECT customer_id, 0, 0, '', '' FROM customers"},
		{catalog.Security, "SELECT security_id, 0, 0, ticker, COALESCE(sector, '') FROM securities"},
		{catalog.Order, "SELECT order_id, account_id, security_id, '', '' FROM orders"},
	}
	for _, tt := range tests {
		if got := CorpusQuery(tt.entity); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

func TestAppendTracksMaxIDs(t *testing.T) {
	c := &catalog.Corpus{}
	Append(c, catalog.Trade, CorpusRow{ID: 5, Parent: 1, Second: 2})
	Append(c, catalog.Trade, CorpusRow{ID: 3, Parent: 1, Second: 2})
	Append(c, catalog.Security, CorpusRow{ID: 2, Ticker: "ABC", Sector: "Energy"})

	if c.MaxIDs[catalog.Trade] != 5 {
		t.Errorf("Expected max trade id 5, got %d", c.MaxIDs[catalog.Trade])
	}
	if len(c.Trades) != 2 || c.Trades[0].Second != 2 {
		t.Errorf("Unexpected trades %+v", c.Trades)
	}
	if c.Securities[0].Ticker != "ABC" {
		t.Errorf("Expected ticker ABC, got %s", c.Securities[0].Ticker)
	}
}
