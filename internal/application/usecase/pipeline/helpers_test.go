package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"
	"tickfolio/internal/infrastructure/retry"
)

type fakeFeed struct {
	ch  chan port.FeedEvent
	err error

	mu         sync.Mutex
	subscribed []domain.Symbol
}

func newFakeFeed(buf int) *fakeFeed { return &fakeFeed{ch: make(chan port.FeedEvent, buf)} }

func (f *fakeFeed) Name() string { return "fake" }

func (f *fakeFeed) Subscribe(_ context.Context, symbols []domain.Symbol) (<-chan port.FeedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.subscribed = symbols
	f.mu.Unlock()
	return f.ch, nil
}

func (f *fakeFeed) push(qs ...domain.Quote) {
	for _, q := range qs {
		f.ch <- port.FeedEvent{Quote: q}
	}
}

// recordingSink keeps every snapshot; failFor makes the first n writes fail.
type recordingSink struct {
	name string

	mu      sync.Mutex
	snaps   []domain.ValuationSnapshot
	calls   int
	failFor int
	always  bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, snap domain.ValuationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.always || s.calls <= s.failFor {
		return errors.New("write failed")
	}
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *recordingSink) setFailing(v bool) {
	s.mu.Lock()
	s.always = v
	s.mu.Unlock()
}

func (s *recordingSink) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *recordingSink) last() (domain.ValuationSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snaps) == 0 {
		return domain.ValuationSnapshot{}, false
	}
	return s.snaps[len(s.snaps)-1], true
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

func quote(sym domain.Symbol, price float64, ms int64) domain.Quote {
	return domain.Quote{Symbol: sym, Price: price, Currency: domain.USD, Timestamp: time.UnixMilli(ms).UTC()}
}

func testValuer(t *testing.T) *domain.Valuer {
	t.Helper()
	meta := map[domain.Symbol]domain.QuoteMeta{
		"MSFT": {Symbol: "MSFT", Name: "Microsoft", Currency: domain.USD},
		"TSM":  {Symbol: "TSM", Name: "Taiwan Semiconductor", Currency: domain.USD},
	}
	p, err := domain.NewPortfolio(domain.EUR, []domain.Position{
		{Symbol: "MSFT", Quantity: 25},
		{Symbol: "TSM", Quantity: 100},
	}, meta)
	require.NoError(t, err)
	v, err := domain.NewValuer(p, domain.Rates{domain.USD: 0.9})
	require.NoError(t, err)
	return v
}

var fastRetry = retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func fixedClock() time.Time { return time.UnixMilli(42_000).UTC() }

func recvBatch(t *testing.T, ch <-chan domain.QuoteBatch) domain.QuoteBatch {
	t.Helper()
	select {
	case b, ok := <-ch:
		require.True(t, ok, "channel closed")
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}
