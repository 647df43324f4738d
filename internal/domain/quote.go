package domain

import (
	"strings"
	"time"
)

// Symbol identifies a tradeable instrument, e.g. "MSFT" or "BTC-USD".
type Symbol string

func (s Symbol) String() string { return string(s) }

func NormalizeSymbol(s string) Symbol {
	return Symbol(strings.ToUpper(strings.TrimSpace(s)))
}

// NormalizeSymbols upper-cases, drops empties and de-duplicates while keeping order.
func NormalizeSymbols(in []string) []Symbol {
	out := make([]Symbol, 0, len(in))
	seen := map[Symbol]struct{}{}
	for _, s := range in {
		u := NormalizeSymbol(s)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// Quote is one price observation for one symbol, in the instrument's native currency.
type Quote struct {
	Symbol    Symbol
	Price     float64
	Currency  Currency
	Timestamp time.Time

	// Optional extension fields; zero when the feed did not send them.
	Exchange      string
	ChangePercent float64
	DayVolume     int64
}

// Supersedes reports whether q is strictly newer than a price stamped at ts.
func (q Quote) Supersedes(ts time.Time) bool {
	return q.Timestamp.After(ts)
}

// QuoteBatch is a transport grouping only; quotes inside are independent.
type QuoteBatch []Quote

// QuoteMeta is resolved once at startup and never changes afterwards.
type QuoteMeta struct {
	Symbol   Symbol
	Name     string
	Currency Currency
	Exchange string
}
