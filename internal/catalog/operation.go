//-------------------------------------------------------------------------
//
// pgEdge Replica Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package catalog

import "fmt"

// Operation is a single write transaction against the primary. Kind and
// Entity select the variant; exactly one of the parameter pointers matching
// Entity is set for inserts and updates. Deletes only use ID.
type Operation struct {
	Kind   OpKind
	Entity Entity

	// ID is the new row id for inserts and the target row id for updates
	// and deletes.
	ID int64

	Customer   *CustomerParams
	Account    *AccountParams
	Security   *SecurityParams
	Trade      *TradeParams
	Order      *OrderParams
	MarketData *MarketDataParams
}

// Name returns the metric name of the operation, e.g. "insert_trade".
func (o Operation) Name() string {
	return OperationName(o.Kind, o.Entity)
}

// OperationName builds the metric name for a kind/entity pair.
func OperationName(kind OpKind, entity Entity) string {
	return kind.String() + "_" + entity.String()
}

// Validate checks that the operation carries the parameters it needs.
func (o Operation) Validate() error {
	if o.ID <= 0 {
		return fmt.Errorf("%s: invalid id %d", o.Name(), o.ID)
	}
	if o.Kind == Delete {
		return nil
	}

	var ok bool
	switch o.Entity {
	case Customer:
		ok = o.Customer != nil
	case Account:
		ok = o.Account != nil
	case Security:
		ok = o.Security != nil
	case Trade:
		ok = o.Trade != nil
		if ok && o.Kind == Insert && (o.Trade.Quantity <= 0 || o.Trade.Price <= 0) {
			return fmt.Errorf("%s: quantity and price must be positive", o.Name())
		}
	case Order:
		ok = o.Order != nil
		if ok && o.Kind == Insert && o.Order.Quantity <= 0 {
			return fmt.Errorf("%s: quantity must be positive", o.Name())
		}
	case MarketData:
		ok = o.MarketData != nil
		if ok && (o.MarketData.Price <= 0 || o.MarketData.Volume < 0) {
			return fmt.Errorf("%s: invalid price or volume", o.Name())
		}
	}
	if !ok {
		return fmt.Errorf("%s: missing parameters", o.Name())
	}
	return nil
}

// CustomerParams are the columns written for a customer.
// Updates only change Address.
type CustomerParams struct {
	Name    string
	Address string
}

// AccountParams are the columns written for an account.
// Updates only change Balance.
type AccountParams struct {
	CustomerID  int64
	AccountType string
	Balance     float64
}

// SecurityParams are the columns written for a security. Securities are
// never updated.
type SecurityParams struct {
	Ticker string
	Name   string
	Sector string
}

// TradeParams are the columns written for a trade.
// Updates only change Price.
type TradeParams struct {
	AccountID  int64
	SecurityID int64
	TradeType  string
	Quantity   int
	Price      float64
}

// OrderParams are the columns written for an order.
// Updates only change Status and LimitPrice.
type OrderParams struct {
	AccountID  int64
	SecurityID int64
	OrderType  string
	Quantity   int
	LimitPrice float64
	Status     string
}

// MarketDataParams are the columns written for a market data point.
type MarketDataParams struct {
	SecurityID int64
	Price      float64
	Volume     int64
}
