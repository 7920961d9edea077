//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package catalog

import (
	"fmt"
	"sort"
)

// ParamKind identifies a parameter slot of a read query.
type ParamKind int

const (
	ParamCustomerID ParamKind = iota
	ParamAccountID
	ParamSecurityID
	ParamSector
	ParamTicker
)

func (p ParamKind) String() string {
	switch p {
	case ParamCustomerID:
		return "customer_id"
	case ParamAccountID:
		return "account_id"
	case ParamSecurityID:
		return "security_id"
	case ParamSector:
		return "sector"
	case ParamTicker:
		return "ticker"
	}
	return fmt.Sprintf("param(%d)", int(p))
}

// Column returns the view column the parameter filters on.
func (p ParamKind) Column() string {
	return p.String()
}

// Params holds sampled parameter values for a read. Id parameters are
// int64, sector and ticker are strings.
type Params map[ParamKind]any

// QueryDefinition describes a named analytical read.
type QueryDefinition struct {
	// Name is the query identifier and the name of the view it reads.
	Name string

	// Description describes what the query reports.
	Description string

	// Weight is the relative selection frequency in weighted mode.
	Weight int

	// Params lists the parameter slots the query needs. At most one is
	// used today; all views filter on a single column.
	Params []ParamKind

	// Shape lists the columns the view is expected to return. It is used
	// to validate a schema, never for scoring.
	Shape []string
}

// Filter returns the filtered parameter and true, or false for queries
// that scan the whole view.
func (q QueryDefinition) Filter() (ParamKind, bool) {
	if len(q.Params) == 0 {
		return 0, false
	}
	return q.Params[0], true
}

// Catalog is the workload catalog consumed by the drivers.
type Catalog struct {
	Queries []QueryDefinition

	// Writes maps each write kind to the entities it may target. Entities
	// are chosen uniformly within a kind.
	Writes map[OpKind][]Entity
}

// Default returns the standard catalog: sixteen analytical views and the
// write templates of the synthetic OLTP stream.
func Default() *Catalog {
	return &Catalog{
		Queries: defaultQueries(),
		Writes: map[OpKind][]Entity{
			Insert: {Customer, Account, Security, Trade, Order, MarketData},
			Update: {Customer, Account, Trade, Order, MarketData},
			Delete: {Customer, Account, Security, Trade, Order, MarketData},
		},
	}
}

// Query returns the definition with the given name.
func (c *Catalog) Query(name string) (QueryDefinition, error) {
	for _, q := range c.Queries {
		if q.Name == name {
			return q, nil
		}
	}
	return QueryDefinition{}, fmt.Errorf("unknown query: %s", name)
}

// Names returns the sorted query names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Queries))
	for _, q := range c.Queries {
		names = append(names, q.Name)
	}
	sort.Strings(names)
	return names
}

// WithWeights returns a copy of the catalog with query weights overridden.
// Unknown names are rejected; queries not named keep their weight.
func (c *Catalog) WithWeights(weights map[string]int) (*Catalog, error) {
	out := &Catalog{
		Queries: make([]QueryDefinition, len(c.Queries)),
		Writes:  c.Writes,
	}
	copy(out.Queries, c.Queries)

	for name, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("query %s: weight must be non-negative", name)
		}
		found := false
		for i := range out.Queries {
			if out.Queries[i].Name == name {
				out.Queries[i].Weight = w
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown query: %s", name)
		}
	}

	total := 0
	for _, q := range out.Queries {
		total += q.Weight
	}
	if total == 0 {
		return nil, fmt.Errorf("at least one query must have a positive weight")
	}
	return out, nil
}

func defaultQueries() []QueryDefinition {
	return []QueryDefinition{
		{
			Name:        "customer_portfolio",
			Description: "Holdings and market value per customer account",
			Weight:      1,
			Params:      []ParamKind{ParamCustomerID},
			Shape:       []string{"customer_id", "customer_name", "account_id", "ticker", "net_quantity", "market_value"},
		},
		{
			Name:        "top_performers",
			Description: "Securities with the largest price gain over the last day",
			Weight:      1,
			Shape:       []string{"security_id", "ticker", "first_price", "last_price", "pct_change"},
		},
		{
			Name:        "market_overview",
			Description: "Average price and total volume per security in a sector",
			Weight:      1,
			Params:      []ParamKind{ParamSector},
			Shape:       []string{"sector", "security_id", "ticker", "avg_price", "total_volume"},
		},
		{
			Name:        "recent_large_trades",
			Description: "Trades above a notional threshold in the last day",
			Weight:      1,
			Params:      []ParamKind{ParamAccountID},
			Shape:       []string{"trade_id", "account_id", "ticker", "quantity", "price", "trade_date"},
		},
		{
			Name:        "customer_order_book",
			Description: "Open and historical orders for a customer",
			Weight:      1,
			Params:      []ParamKind{ParamCustomerID},
			Shape:       []string{"customer_id", "order_id", "ticker", "order_type", "quantity", "limit_price", "status"},
		},
		{
			Name:        "sector_performance",
			Description: "Trade count and notional per sector",
			Weight:      1,
			Params:      []ParamKind{ParamSector},
			Shape:       []string{"sector", "trade_count", "total_notional", "avg_price"},
		},
		{
			Name:        "account_activity_summary",
			Description: "Trade and order activity per account",
			Weight:      1,
			Params:      []ParamKind{ParamAccountID},
			Shape:       []string{"account_id", "trade_count", "order_count", "total_traded", "last_trade_date"},
		},
		{
			Name:        "daily_market_movements",
			Description: "Daily open, close, high and low per security",
			Weight:      1,
			Params:      []ParamKind{ParamSecurityID},
			Shape:       []string{"security_id", "market_day", "low_price", "high_price", "total_volume"},
		},
		{
			Name:        "high_value_customers",
			Description: "Customers whose combined balances exceed a threshold",
			Weight:      1,
			Shape:       []string{"customer_id", "name", "total_balance", "account_count"},
		},
		{
			Name:        "pending_orders_summary",
			Description: "Pending order count and quantity per ticker",
			Weight:      1,
			Params:      []ParamKind{ParamTicker},
			Shape:       []string{"ticker", "pending_orders", "total_quantity", "avg_limit_price"},
		},
		{
			Name:        "trade_volume_by_hour",
			Description: "Trade count and volume bucketed by hour",
			Weight:      1,
			Shape:       []string{"trade_hour", "trade_count", "total_quantity"},
		},
		{
			Name:        "top_securities_by_sector",
			Description: "Most traded securities within a sector",
			Weight:      1,
			Params:      []ParamKind{ParamSector},
			Shape:       []string{"sector", "security_id", "ticker", "trade_count", "total_quantity"},
		},
		{
			Name:        "recent_trades_by_account",
			Description: "Latest trades of an account",
			Weight:      1,
			Params:      []ParamKind{ParamAccountID},
			Shape:       []string{"account_id", "trade_id", "ticker", "trade_type", "quantity", "price", "trade_date"},
		},
		{
			Name:        "order_fulfillment_rates",
			Description: "Completed versus canceled orders per customer",
			Weight:      1,
			Params:      []ParamKind{ParamCustomerID},
			Shape:       []string{"customer_id", "total_orders", "completed_orders", "canceled_orders", "fulfillment_rate"},
		},
		{
			Name:        "sector_order_activity",
			Description: "Order counts by status within a sector",
			Weight:      1,
			Params:      []ParamKind{ParamSector},
			Shape:       []string{"sector", "status", "order_count", "total_quantity"},
		},
		{
			Name:        "cascading_order_cancellation_alert",
			Description: "Accounts with a burst of recent cancellations",
			Weight:      1,
			Shape:       []string{"account_id", "canceled_orders", "last_cancellation"},
		},
	}
}
