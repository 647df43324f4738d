package replay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"
	"tickfolio/internal/infrastructure/exchange/yahoo"
	"tickfolio/internal/infrastructure/pricefeed"

	"github.com/rs/zerolog/log"
)

const Name = "replay"

// Feed replays recorded streamer frames from a file, one per line, in a loop.
// Timestamps are re-stamped with the replay clock so every pass moves the
// price table forward.
type Feed struct {
	path     string
	interval time.Duration
	now      func() time.Time
}

func NewFeed(opts pricefeed.Options) *Feed {
	interval := opts.ReplayInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Feed{path: opts.URL, interval: interval, now: time.Now}
}

func (f *Feed) Name() string { return Name }

func (f *Feed) Subscribe(ctx context.Context, symbols []domain.Symbol) (<-chan port.FeedEvent, error) {
	if len(symbols) == 0 {
		return nil, port.ErrEmptySymbols
	}
	quotes, err := f.load(symbols)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("replay %s: no frames for subscribed symbols", f.path)
	}

	out := make(chan port.FeedEvent, 64)
	go f.run(ctx, quotes, out)
	return out, nil
}

func (f *Feed) load(symbols []domain.Symbol) ([]domain.Quote, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	want := make(map[domain.Symbol]struct{}, len(symbols))
	for _, s := range symbols {
		want[s] = struct{}{}
	}

	var quotes []domain.Quote
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 || b[0] == '#' {
			continue
		}
		q, err := yahoo.DecodeFrame(b)
		if err != nil {
			log.Warn().Str("feed", Name).Int("line", line).Err(err).Msg("skipping malformed frame")
			continue
		}
		if _, ok := want[q.Symbol]; ok {
			quotes = append(quotes, q)
		}
	}
	return quotes, sc.Err()
}

func (f *Feed) run(ctx context.Context, quotes []domain.Quote, out chan<- port.FeedEvent) {
	defer close(out)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for pass := 0; ; pass++ {
		log.Debug().Str("feed", Name).Int("pass", pass).Int("frames", len(quotes)).Msg("replay pass")
		for _, q := range quotes {
			q.Timestamp = time.UnixMilli(f.now().UnixMilli()).UTC()
			select {
			case <-ctx.Done():
				return
			case out <- port.FeedEvent{Quote: q}:
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}
