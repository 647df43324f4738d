package port

import (
	"context"

	"tickfolio/internal/domain"
)

// MetaResolver resolves display name and native currency for each symbol at startup.
type MetaResolver interface {
	Resolve(ctx context.Context, symbols []domain.Symbol) (map[domain.Symbol]domain.QuoteMeta, error)
}
