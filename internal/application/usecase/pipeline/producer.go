package pipeline

import (
	"context"
	"fmt"
	"time"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"

	"github.com/rs/zerolog/log"
)

type ProducerConfig struct {
	// BatchWindow is how long the first quote of a batch may wait for company.
	// Zero sends every quote as its own batch.
	BatchWindow time.Duration
	// MaxBatch flushes a batch early once it holds this many quotes.
	MaxBatch int
}

// Producer owns the feed subscription and pushes batches downstream.
type Producer struct {
	feed    port.QuoteFeed
	symbols []domain.Symbol
	out     chan<- domain.QuoteBatch
	cfg     ProducerConfig

	sent int
}

func NewProducer(feed port.QuoteFeed, symbols []domain.Symbol, out chan<- domain.QuoteBatch, cfg ProducerConfig) *Producer {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 1
	}
	return &Producer{feed: feed, symbols: symbols, out: out, cfg: cfg}
}

// Run subscribes and forwards batches until ctx is cancelled (nil) or the feed
// fails for good (error). out is closed on return. A full out channel blocks
// Run; quotes are never dropped.
func (p *Producer) Run(ctx context.Context) error {
	defer close(p.out)

	events, err := p.feed.Subscribe(ctx, p.symbols)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", p.feed.Name(), err)
	}
	log.Info().Str("feed", p.feed.Name()).Int("symbols", len(p.symbols)).Msg("producer started")

	var (
		batch  domain.QuoteBatch
		timer  *time.Timer
		flushC <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, flushC = nil, nil
		}
	}
	defer stopTimer()

	flush := func() bool {
		stopTimer()
		if len(batch) == 0 {
			return true
		}
		ok := p.send(ctx, batch)
		batch = nil
		return ok
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				flush()
				return fmt.Errorf("%s: %w", p.feed.Name(), ErrFeedClosed)
			}
			if ev.Err != nil {
				flush()
				return fmt.Errorf("%s: %w", p.feed.Name(), ev.Err)
			}

			batch = append(batch, ev.Quote)
			if len(batch) >= p.cfg.MaxBatch || p.cfg.BatchWindow <= 0 {
				if !flush() {
					return nil
				}
			} else if timer == nil {
				timer = time.NewTimer(p.cfg.BatchWindow)
				flushC = timer.C
			}

		case <-flushC:
			timer, flushC = nil, nil
			if !flush() {
				return nil
			}
		}
	}
}

func (p *Producer) send(ctx context.Context, b domain.QuoteBatch) bool {
	select {
	case p.out <- b:
		p.sent++
		log.Debug().Int("batch", len(b)).Int("sent", p.sent).Msg("batch enqueued")
		return true
	case <-ctx.Done():
		return false
	}
}
