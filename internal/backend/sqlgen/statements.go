//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package sqlgen

import (
	"fmt"
	"strings"

	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
)

// Write returns the statement and arguments executing op.
func (d Dialect) Write(op catalog.Operation) (string, []any, error) {
	if err := op.Validate(); err != nil {
		return "", nil, err
	}
	table, idCol := op.Entity.Table(), op.Entity.IDColumn()

	switch op.Kind {
	case catalog.Insert:
		cols, args := insertColumns(op)
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(cols, ", "), d.placeholders(1, len(cols))), args, nil

	case catalog.Update:
		sets, args := updateColumns(op)
		if len(sets) == 0 {
			return "", nil, fmt.Errorf("%s is not supported", op.Name())
		}
		for i := range sets {
			sets[i] = fmt.Sprintf("%s = %s", sets[i], d.Placeholder(i+1))
		}
		if op.Entity == catalog.MarketData {
			sets = append(sets, "market_date = CURRENT_TIMESTAMP")
		}
		args = append(args, op.ID)
		return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
			table, strings.Join(sets, ", "), idCol, d.Placeholder(len(args))), args, nil

	case catalog.Delete:
		return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", table, idCol, d.Placeholder(1)),
			[]any{op.ID}, nil
	}
	return "", nil, fmt.Errorf("unknown operation kind %v", op.Kind)
}

func insertColumns(op catalog.Operation) ([]string, []any) {
	switch op.Entity {
	case catalog.Customer:
		p := op.Customer
		return []string{"customer_id", "name", "address"}, []any{op.ID, p.Name, p.Address}
	case catalog.Account:
		p := op.Account
		return []string{"account_id", "customer_id", "account_type", "balance"},
			[]any{op.ID, p.CustomerID, p.AccountType, p.Balance}
	case catalog.Security:
		p := op.Security
		return []string{"security_id", "ticker", "name", "sector"}, []any{op.ID, p.Ticker, p.Name, p.Sector}
	case catalog.Trade:
		p := op.Trade
		return []string{"trade_id", "account_id", "security_id", "trade_type", "quantity", "price"},
			[]any{op.ID, p.AccountID, p.SecurityID, p.TradeType, p.Quantity, p.Price}
	case catalog.Order:
		p := op.Order
		return []string{"order_id", "account_id", "security_id", "order_type", "quantity", "limit_price", "status"},
			[]any{op.ID, p.AccountID, p.SecurityID, p.OrderType, p.Quantity, p.LimitPrice, p.Status}
	case catalog.MarketData:
		p := op.MarketData
		return []string{"market_data_id", "security_id", "price", "volume"},
			[]any{op.ID, p.SecurityID, p.Price, p.Volume}
	}
	return nil, nil
}

func updateColumns(op catalog.Operation) ([]string, []any) {
	switch op.Entity {
	case catalog.Customer:
		return []string{"address"}, []any{op.Customer.Address}
	case catalog.Account:
		return []string{"balance"}, []any{op.Account.Balance}
	case catalog.Trade:
		return []string{"price"}, []any{op.Trade.Price}
	case catalog.Order:
		return []string{"status", "limit_price"}, []any{op.Order.Status, op.Order.LimitPrice}
	case catalog.MarketData:
		return []string{"price", "volume"}, []any{op.MarketData.Price, op.MarketData.Volume}
	}
	return nil, nil
}

// Read returns the statement and arguments running a catalog query
// against its view.
func (d Dialect) Read(q catalog.QueryDefinition, params catalog.Params) (string, []any, error) {
	kind, filtered := q.Filter()
	if !filtered {
		return "SELECT * FROM " + q.Name, nil, nil
	}
	v, ok := params[kind]
	if !ok {
		return "", nil, fmt.Errorf("%s: missing parameter %s", q.Name, kind)
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", q.Name, kind.Column(), d.Placeholder(1)), []any{v}, nil
}

// InsertRows returns a multi-row INSERT for n rows of the given columns.
func (d Dialect) InsertRows(table string, columns []string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		b.WriteString(d.placeholders(i*len(columns)+1, len(columns)))
		b.WriteString(")")
	}
	return b.String()
}
