package memory

import (
	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
	"github.com/pgEdge/pgedge-rrbench/internal/datagen"
)

// SyntheticCorpus builds a foreign-key valid corpus with the given number
// of customers: two accounts per customer, one security per ten customers
// (at least five), and a few trades, orders and market data rows each.
func SyntheticCorpus(f *datagen.Faker, customers int) *catalog.Corpus {
	c := &catalog.Corpus{MaxIDs: make(map[catalog.Entity]int64)}

	securities := customers / 10
	if securities < 5 {
		securities = 5
	}
	tickers := make(map[string]struct{})
	for i := 1; i <= securities; i++ {
		ticker := f.Ticker()
		for _, dup := tickers[ticker]; dup; _, dup = tickers[ticker] {
			ticker = f.Ticker()
		}
		tickers[ticker] = struct{}{}
		c.Securities = append(c.Securities, catalog.SecurityRef{ID: int64(i), Ticker: ticker, Sector: f.Sector()})
	}

	var account, trade, order, market int64
	for i := 1; i <= customers; i++ {
		c.Customers = append(c.Customers, int64(i))
		for a := 0; a < 2; a++ {
			account++
			c.Accounts = append(c.Accounts, catalog.Ref{ID: account, Parent: int64(i)})
			for k := 0; k < 3; k++ {
				sec := c.Securities[f.Int(0, securities-1)].ID
				trade++
				c.Trades = append(c.Trades, catalog.Ref{ID: trade, Parent: account, Second: sec})
				order++
				c.Orders = append(c.Orders, catalog.Ref{ID: order, Parent: account, Second: sec})
			}
		}
	}
	for _, s := range c.Securities {
		for k := 0; k < 5; k++ {
			market++
			c.MarketData = append(c.MarketData, catalog.Ref{ID: market, Parent: s.ID})
		}
	}

	c.MaxIDs[catalog.Customer] = int64(customers)
	c.MaxIDs[catalog.Account] = account
	c.MaxIDs[catalog.Security] = int64(securities)
	c.MaxIDs[catalog.Trade] = trade
	c.MaxIDs[catalog.Order] = order
	c.MaxIDs[catalog.MarketData] = market
	return c
}
