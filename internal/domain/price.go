package domain

import "time"

// Direction represents the price movement direction
type Direction int

const (
	DirectionSame Direction = 0
	DirectionUp   Direction = +1
	DirectionDown Direction = -1
)

// LastPrice is the newest price held for a symbol.
type LastPrice struct {
	Price         float64
	Currency      Currency
	Timestamp     time.Time
	ChangePercent float64
	Direction     Direction
}

// PriceTable keeps the last known price per tracked symbol.
//
// The table only moves forward in time: a quote is applied only when it is
// strictly newer than the stored one, so replays and out-of-order delivery
// across reconnects never roll a price back. A PriceTable is owned by a single
// goroutine and does no locking.
type PriceTable struct {
	tracked map[Symbol]struct{}
	prices  map[Symbol]LastPrice
}

// NewPriceTable tracks the given symbols. Quotes for other symbols are ignored.
func NewPriceTable(symbols []Symbol) *PriceTable {
	tracked := make(map[Symbol]struct{}, len(symbols))
	for _, s := range symbols {
		tracked[s] = struct{}{}
	}
	return &PriceTable{
		tracked: tracked,
		prices:  make(map[Symbol]LastPrice, len(symbols)),
	}
}

// Apply stores q if it supersedes the held price and reports whether it did.
func (t *PriceTable) Apply(q Quote) bool {
	if _, ok := t.tracked[q.Symbol]; !ok {
		return false
	}
	prev, ok := t.prices[q.Symbol]
	if ok && !q.Supersedes(prev.Timestamp) {
		return false
	}

	dir := DirectionSame
	if ok {
		switch {
		case q.Price > prev.Price:
			dir = DirectionUp
		case q.Price < prev.Price:
			dir = DirectionDown
		}
	}
	t.prices[q.Symbol] = LastPrice{
		Price:         q.Price,
		Currency:      q.Currency,
		Timestamp:     q.Timestamp,
		ChangePercent: q.ChangePercent,
		Direction:     dir,
	}
	return true
}

// ApplyBatch applies every quote of b and returns how many were stored.
func (t *PriceTable) ApplyBatch(b QuoteBatch) int {
	n := 0
	for _, q := range b {
		if t.Apply(q) {
			n++
		}
	}
	return n
}

func (t *PriceTable) Get(s Symbol) (LastPrice, bool) {
	p, ok := t.prices[s]
	return p, ok
}

func (t *PriceTable) Len() int { return len(t.prices) }

// Prices returns a copy that the caller may keep.
func (t *PriceTable) Prices() map[Symbol]LastPrice {
	out := make(map[Symbol]LastPrice, len(t.prices))
	for k, v := range t.prices {
		out[k] = v
	}
	return out
}
