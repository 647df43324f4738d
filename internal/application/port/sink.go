package port

import (
	"context"

	"tickfolio/internal/domain"
)

// Sink receives every computed snapshot.
type Sink interface {
	Name() string
	Write(ctx context.Context, snap domain.ValuationSnapshot) error
}
