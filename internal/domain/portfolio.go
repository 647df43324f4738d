package domain

import (
	"fmt"
	"math"
)

// Position is a held quantity of one instrument.
type Position struct {
	Symbol   Symbol
	Quantity float64
}

// Portfolio is the static set of positions valued in a single home currency.
// It is immutable after NewPortfolio.
type Portfolio struct {
	home      Currency
	positions []Position
	meta      map[Symbol]QuoteMeta
}

// NewPortfolio validates the positions against the resolved quote metadata.
// Every position symbol must have metadata; the home currency must be supported.
func NewPortfolio(home Currency, positions []Position, meta map[Symbol]QuoteMeta) (Portfolio, error) {
	if !home.Valid() {
		return Portfolio{}, fmt.Errorf("%w: home currency %q", ErrUnsupportedCurrency, home)
	}

	ps := make([]Position, 0, len(positions))
	ms := make(map[Symbol]QuoteMeta, len(positions))
	for _, p := range positions {
		if _, dup := ms[p.Symbol]; dup {
			return Portfolio{}, fmt.Errorf("%w: %s", ErrDuplicatePosition, p.Symbol)
		}
		if math.IsNaN(p.Quantity) || math.IsInf(p.Quantity, 0) || p.Quantity < 0 {
			return Portfolio{}, fmt.Errorf("%w: %s=%v", ErrInvalidQuantity, p.Symbol, p.Quantity)
		}
		m, ok := meta[p.Symbol]
		if !ok {
			return Portfolio{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, p.Symbol)
		}
		if !m.Currency.Valid() {
			return Portfolio{}, fmt.Errorf("%w: %s quoted in %q", ErrUnsupportedCurrency, p.Symbol, m.Currency)
		}
		ps = append(ps, p)
		ms[p.Symbol] = m
	}

	return Portfolio{home: home, positions: ps, meta: ms}, nil
}

func (p Portfolio) Home() Currency { return p.home }

// Positions returns a copy in configuration order.
func (p Portfolio) Positions() []Position {
	out := make([]Position, len(p.positions))
	copy(out, p.positions)
	return out
}

// Symbols returns the position symbols in configuration order.
func (p Portfolio) Symbols() []Symbol {
	out := make([]Symbol, len(p.positions))
	for i, pos := range p.positions {
		out[i] = pos.Symbol
	}
	return out
}

func (p Portfolio) Meta(s Symbol) (QuoteMeta, bool) {
	m, ok := p.meta[s]
	return m, ok
}
