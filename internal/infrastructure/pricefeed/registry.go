package pricefeed

import (
	"time"

	"tickfolio/internal/application/port"

	"github.com/rs/zerolog/log"
)

// Options is everything a feed provider may need to build its client.
type Options struct {
	URL            string // websocket URL, or a file path for replay
	DialTimeout    time.Duration
	IdleTimeout    time.Duration
	PingInterval   time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	ReplayInterval time.Duration
}

// Factory builds a feed for one provider.
type Factory func(opts Options) port.QuoteFeed

// registry maps provider names to their feed factories
var registry = make(map[string]Factory)

// Register is called from each provider package's init().
func Register(provider string, factory Factory) {
	if factory == nil {
		log.Warn().Str("provider", provider).Msg("invalid quote feed factory")
		return
	}
	if _, exists := registry[provider]; exists {
		log.Warn().Str("provider", provider).Msg("quote feed factory already registered, overwriting")
	}
	registry[provider] = factory
	log.Debug().Str("provider", provider).Msg("quote feed factory registered")
}

// Get returns the factory registered for provider.
func Get(provider string) (Factory, bool) {
	factory, ok := registry[provider]
	return factory, ok
}

// Providers lists registered provider names.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
