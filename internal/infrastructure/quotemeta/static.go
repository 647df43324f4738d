package quotemeta

import (
	"context"
	"fmt"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"
)

// Static serves metadata listed in the config file.
type Static struct {
	meta map[domain.Symbol]domain.QuoteMeta
}

func NewStatic(entries []domain.QuoteMeta) *Static {
	m := make(map[domain.Symbol]domain.QuoteMeta, len(entries))
	for _, e := range entries {
		m[e.Symbol] = e
	}
	return &Static{meta: m}
}

func (s *Static) Resolve(_ context.Context, symbols []domain.Symbol) (map[domain.Symbol]domain.QuoteMeta, error) {
	out := make(map[domain.Symbol]domain.QuoteMeta, len(symbols))
	for _, sym := range symbols {
		m, ok := s.meta[sym]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no [[symbols]] entry", domain.ErrUnknownSymbol, sym)
		}
		if !m.Currency.Valid() {
			return nil, fmt.Errorf("%w: %s quoted in %q", domain.ErrUnsupportedCurrency, sym, m.Currency)
		}
		if m.Name == "" {
			m.Name = string(sym)
		}
		out[sym] = m
	}
	return out, nil
}

var _ port.MetaResolver = (*Static)(nil)
