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
	"sort"
)

// viewBodies returns the SELECT of each analytical view by name. Column
// names match the query shapes in the catalog.
func (d Dialect) viewBodies() map[string]string {
	net := "CASE WHEN t.trade_type = 'buy' THEN t.quantity ELSE -t.quantity END"
	return map[string]string{
		"customer_portfolio": `
SELECT c.customer_id, c.name AS customer_name, a.account_id, s.ticker,
       SUM(` + net + `) AS net_quantity,
       SUM((` + net + `) * t.price) AS market_value
FROM customers c
JOIN accounts a ON a.customer_id = c.customer_id
JOIN trades t ON t.account_id = a.account_id
JOIN securities s ON s.security_id = t.security_id
GROUP BY c.customer_id, c.name, a.account_id, s.ticker`,

		"top_performers": `
SELECT s.security_id, s.ticker,
       MIN(m.price) AS first_price, MAX(m.price) AS last_price,
       (MAX(m.price) - MIN(m.price)) * 100.0 / NULLIF(MIN(m.price), 0) AS pct_change
FROM securities s
JOIN market_data m ON m.security_id = s.security_id
WHERE m.market_date >= ` + d.Since(24) + `
GROUP BY s.security_id, s.ticker
ORDER BY pct_change DESC
LIMIT 10`,

		"market_overview": `
SELECT s.sector, s.security_id, s.ticker,
       AVG(m.price) AS avg_price, SUM(m.volume) AS total_volume
FROM securities s
JOIN market_data m ON m.security_id = s.security_id
GROUP BY s.sector, s.security_id, s.ticker`,

		"recent_large_trades": `
SELECT t.trade_id, t.account_id, s.ticker, t.quantity, t.price, t.trade_date
FROM trades t
JOIN securities s ON s.security_id = t.security_id
WHERE t.quantity * t.price > 10000
  AND t.trade_date >= ` + d.Since(24),

		"customer_order_book": `
SELECT a.customer_id, o.order_id, s.ticker, o.order_type, o.quantity,
       o.limit_price, o.status
FROM orders o
JOIN accounts a ON a.account_id = o.account_id
JOIN securities s ON s.security_id = o.security_id`,

		"sector_performance": `
SELECT s.sector, COUNT(*) AS trade_count,
       SUM(t.quantity * t.price) AS total_notional, AVG(t.price) AS avg_price
FROM trades t
JOIN securities s ON s.security_id = t.security_id
GROUP BY s.sector`,

		"account_activity_summary": `
SELECT a.account_id,
       (SELECT COUNT(*) FROM trades t WHERE t.account_id = a.account_id) AS trade_count,
       (SELECT COUNT(*) FROM orders o WHERE o.account_id = a.account_id) AS order_count,
       (SELECT COALESCE(SUM(t.quantity * t.price), 0) FROM trades t WHERE t.account_id = a.account_id) AS total_traded,
       (SELECT MAX(t.trade_date) FROM trades t WHERE t.account_id = a.account_id) AS last_trade_date
FROM accounts a`,

		"daily_market_movements": `
SELECT m.security_id, ` + d.Day("m.market_date") + ` AS market_day,
       MIN(m.price) AS low_price, MAX(m.price) AS high_price,
       SUM(m.volume) AS total_volume
FROM market_data m
GROUP BY m.security_id, ` + d.Day("m.market_date"),

		"high_value_customers": `
SELECT c.customer_id, c.name, SUM(a.balance) AS total_balance,
       COUNT(*) AS account_count
FROM customers c
JOIN accounts a ON a.customer_id = c.customer_id
GROUP BY c.customer_id, c.name
HAVING SUM(a.balance) > 100000`,

		"pending_orders_summary": `
SELECT s.ticker, COUNT(*) AS pending_orders, SUM(o.quantity) AS total_quantity,
       AVG(o.limit_price) AS avg_limit_price
FROM orders o
JOIN securities s ON s.security_id = o.security_id
WHERE o.status = 'pending'
GROUP BY s.ticker`,

		"trade_volume_by_hour": `
SELECT ` + d.Hour("t.trade_date") + ` AS trade_hour, COUNT(*) AS trade_count,
       SUM(t.quantity) AS total_quantity
FROM trades t
GROUP BY ` + d.Hour("t.trade_date"),

		"top_securities_by_sector": `
SELECT s.sector, s.security_id, s.ticker, COUNT(*) AS trade_count,
       SUM(t.quantity) AS total_quantity
FROM trades t
JOIN securities s ON s.security_id = t.security_id
GROUP BY s.sector, s.security_id, s.ticker`,

		"recent_trades_by_account": `
SELECT t.account_id, t.trade_id, s.ticker, t.trade_type, t.quantity,
       t.price, t.trade_date
FROM trades t
JOIN securities s ON s.security_id = t.security_id
WHERE t.trade_date >= ` + d.Since(24*7),

		"order_fulfillment_rates": `
SELECT a.customer_id, COUNT(*) AS total_orders,
       SUM(CASE WHEN o.status = 'completed' THEN 1 ELSE 0 END) AS completed_orders,
       SUM(CASE WHEN o.status = 'canceled' THEN 1 ELSE 0 END) AS canceled_orders,
       SUM(CASE WHEN o.status = 'completed' THEN 1 ELSE 0 END) * 1.0 / COUNT(*) AS fulfillment_rate
FROM orders o
JOIN accounts a ON a.account_id = o.account_id
GROUP BY a.customer_id`,

		"sector_order_activity": `
SELECT s.sector, o.status, COUNT(*) AS order_count, SUM(o.quantity) AS total_quantity
FROM orders o
JOIN securities s ON s.security_id = o.security_id
GROUP BY s.sector, o.status`,

		"cascading_order_cancellation_alert": `
SELECT o.account_id, COUNT(*) AS canceled_orders, MAX(o.order_date) AS last_cancellation
FROM orders o
WHERE o.status = 'canceled'
  AND o.order_date >= ` + d.Since(1) + `
GROUP BY o.account_id
HAVING COUNT(*) >= 3`,
	}
}

// View returns the CREATE VIEW statement for a named query.
func (d Dialect) View(name string) (string, error) {
	body, ok := d.viewBodies()[name]
	if !ok {
		return "", fmt.Errorf("no view defined for query %s", name)
	}
	create := "CREATE VIEW IF NOT EXISTS "
	if d.Name == Postgres.Name {
		create = "CREATE OR REPLACE VIEW "
	}
	return create + name + " AS" + body, nil
}

// ViewNames returns the names of every defined view, sorted.
func (d Dialect) ViewNames() []string {
	bodies := d.viewBodies()
	names := make([]string, 0, len(bodies))
	for name := range bodies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
