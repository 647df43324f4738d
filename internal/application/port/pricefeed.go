package port

import (
	"context"
	"errors"

	"tickfolio/internal/domain"
)

var (
	// ErrEmptySymbols is returned by Subscribe when there is nothing to subscribe to.
	ErrEmptySymbols = errors.New("feed: empty symbol set")
	// ErrSubscriptionRejected means the feed refused the subscription itself; retrying cannot help.
	ErrSubscriptionRejected = errors.New("feed: subscription rejected")
)

// FeedEvent carries either a decoded quote or the feed's final, unrecoverable error.
type FeedEvent struct {
	Quote domain.Quote
	Err   error
}

// QuoteFeed is one logical subscription to a market-data service.
// The returned channel is infinite: reconnects are hidden from the caller. It
// is closed after a FeedEvent with Err set, or when ctx is cancelled.
type QuoteFeed interface {
	Name() string
	Subscribe(ctx context.Context, symbols []domain.Symbol) (<-chan FeedEvent, error)
}
