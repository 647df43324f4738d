package pipeline

import (
	"context"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DefaultChannelDepth = 32

type Deps struct {
	Feed         port.QuoteFeed
	Valuer       *domain.Valuer
	Sinks        []port.Sink
	ChannelDepth int
	Producer     ProducerConfig
	Receiver     ReceiverConfig
}

// Pipeline runs the producer and the receiver as one unit: the first one to
// fail cancels the other.
type Pipeline struct {
	deps Deps
}

func New(deps Deps) *Pipeline {
	if deps.ChannelDepth <= 0 {
		deps.ChannelDepth = DefaultChannelDepth
	}
	return &Pipeline{deps: deps}
}

// Run blocks until ctx is cancelled (nil) or either task fails (its error).
func (p *Pipeline) Run(ctx context.Context) error {
	ch := make(chan domain.QuoteBatch, p.deps.ChannelDepth)

	symbols := p.deps.Valuer.Portfolio().Symbols()
	producer := NewProducer(p.deps.Feed, symbols, ch, p.deps.Producer)
	receiver := NewReceiver(ch, p.deps.Valuer, p.deps.Sinks, p.deps.Receiver)

	log.Info().
		Int("channel_depth", p.deps.ChannelDepth).
		Dur("batch_window", p.deps.Producer.BatchWindow).
		Int("max_batch", p.deps.Producer.MaxBatch).
		Msg("pipeline starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return producer.Run(gctx) })
	g.Go(func() error { return receiver.Run(gctx) })
	return g.Wait()
}
