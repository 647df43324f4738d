package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Rates maps a foreign currency to the amount of home currency one unit buys.
type Rates map[Currency]float64

// PositionValue is one row of a snapshot.
type PositionValue struct {
	Symbol        Symbol
	Name          string
	Quantity      float64
	LastPrice     float64
	Currency      Currency
	Rate          float64
	Value         float64
	ChangePercent float64
	Direction     Direction
	QuotedAt      time.Time
	Priced        bool
}

// ValuationSnapshot is the whole portfolio valued at AsOf.
// Total always equals the sum of Positions[i].Value, unpriced rows included.
type ValuationSnapshot struct {
	Home      Currency
	Positions []PositionValue
	Total     float64
	Unpriced  int
	AsOf      time.Time
}

// Position looks up the row for s.
func (s ValuationSnapshot) Position(sym Symbol) (PositionValue, bool) {
	for _, p := range s.Positions {
		if p.Symbol == sym {
			return p, true
		}
	}
	return PositionValue{}, false
}

// Valuer converts prices into the portfolio's home currency.
type Valuer struct {
	portfolio Portfolio
	rates     map[Currency]decimal.Decimal
}

// NewValuer checks that every currency a position is quoted in can be
// converted into the home currency. Only one home currency is supported:
// a rate given for the home currency itself must be exactly 1.
func NewValuer(p Portfolio, rates Rates) (*Valuer, error) {
	rs := make(map[Currency]decimal.Decimal, len(rates)+1)
	for c, r := range rates {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: rate for %q", ErrUnsupportedCurrency, c)
		}
		if c == p.home && r != 1 {
			return nil, fmt.Errorf("%w: %s is the home currency, rate must be 1, got %v", ErrInvalidRate, c, r)
		}
		if r <= 0 {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidRate, c, r)
		}
		rs[c] = decimal.NewFromFloat(r)
	}
	rs[p.home] = decimal.NewFromInt(1)

	for _, pos := range p.positions {
		m := p.meta[pos.Symbol]
		if _, ok := rs[m.Currency]; !ok {
			return nil, fmt.Errorf("%w: %s->%s for %s", ErrMissingRate, m.Currency, p.home, pos.Symbol)
		}
	}
	return &Valuer{portfolio: p, rates: rs}, nil
}

func (v *Valuer) Portfolio() Portfolio { return v.portfolio }

// Value builds a snapshot from the last known prices. Positions without a
// price, or priced in a currency with no rate, are valued at zero and flagged
// unpriced. The result depends only on the arguments.
func (v *Valuer) Value(prices map[Symbol]LastPrice, asOf time.Time) ValuationSnapshot {
	snap := ValuationSnapshot{
		Home:      v.portfolio.home,
		Positions: make([]PositionValue, 0, len(v.portfolio.positions)),
		AsOf:      asOf,
	}

	for _, pos := range v.portfolio.positions {
		m := v.portfolio.meta[pos.Symbol]
		row := PositionValue{
			Symbol:   pos.Symbol,
			Name:     m.Name,
			Quantity: pos.Quantity,
			Currency: m.Currency,
		}

		lp, ok := prices[pos.Symbol]
		rate, hasRate := v.rates[lp.Currency]
		if ok && hasRate {
			value := decimal.NewFromFloat(lp.Price).
				Mul(rate).
				Mul(decimal.NewFromFloat(pos.Quantity))
			row.LastPrice = lp.Price
			row.Currency = lp.Currency
			row.Rate = rate.InexactFloat64()
			row.Value = value.InexactFloat64()
			row.ChangePercent = lp.ChangePercent
			row.Direction = lp.Direction
			row.QuotedAt = lp.Timestamp
			row.Priced = true
		} else {
			snap.Unpriced++
		}
		snap.Total += row.Value
		snap.Positions = append(snap.Positions, row)
	}
	return snap
}
