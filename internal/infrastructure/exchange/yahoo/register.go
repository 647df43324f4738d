package yahoo

import (
	"tickfolio/internal/application/port"
	"tickfolio/internal/infrastructure/pricefeed"
)

func init() {
	pricefeed.Register(Name, func(opts pricefeed.Options) port.QuoteFeed {
		return NewTickerFeed(opts)
	})
}
