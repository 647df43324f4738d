package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"
)

func newTestReceiver(t *testing.T, in <-chan domain.QuoteBatch, maxFailed int, sinks ...port.Sink) *Receiver {
	t.Helper()
	return NewReceiver(in, testValuer(t), sinks, ReceiverConfig{
		Retry:              fastRetry,
		MaxFailedSnapshots: maxFailed,
		Clock:              fixedClock,
	})
}

func TestReceiverKeepsNewestPrice(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	r := newTestReceiver(t, nil, 0, sink)
	ctx := context.Background()

	_, err := r.Process(ctx, domain.QuoteBatch{quote("MSFT", 300, 2000)})
	require.NoError(t, err)
	snap, err := r.Process(ctx, domain.QuoteBatch{quote("MSFT", 290, 1000), quote("MSFT", 310, 2000)})
	require.NoError(t, err)

	row, ok := snap.Position("MSFT")
	require.True(t, ok)
	assert.Equal(t, 300.0, row.LastPrice)
	assert.InDelta(t, 6750.0, row.Value, 1e-9)
	assert.Equal(t, 1, snap.Unpriced)
	assert.Equal(t, 2, sink.count())
}

func TestReceiverIgnoresUntrackedSymbols(t *testing.T) {
	r := newTestReceiver(t, nil, 0)
	snap, err := r.Process(context.Background(), domain.QuoteBatch{quote("AAPL", 190, 1)})
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Unpriced)
	assert.Zero(t, snap.Total)
}

func TestReceiverReplayIsIdempotent(t *testing.T) {
	r := newTestReceiver(t, nil, 0)
	b := domain.QuoteBatch{quote("MSFT", 300, 1000), quote("TSM", 100, 1000)}

	first, err := r.Process(context.Background(), b)
	require.NoError(t, err)
	second, err := r.Process(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.InDelta(t, 6750.0+9000.0, second.Total, 1e-9)
}

func TestReceiverRetriesSink(t *testing.T) {
	sink := &recordingSink{name: "flaky", failFor: 2}
	r := newTestReceiver(t, nil, 1, sink)

	_, err := r.Process(context.Background(), domain.QuoteBatch{quote("MSFT", 300, 1)})
	require.NoError(t, err)
	assert.Equal(t, 3, sink.attempts())
	assert.Equal(t, 1, sink.count())
}

func TestReceiverSkipsFailingSink(t *testing.T) {
	bad := &recordingSink{name: "bad", always: true}
	good := &recordingSink{name: "good"}
	r := newTestReceiver(t, nil, 1, bad, good)

	for i := int64(1); i <= 3; i++ {
		_, err := r.Process(context.Background(), domain.QuoteBatch{quote("MSFT", 300, i)})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, good.count())
	assert.Equal(t, 3*(fastRetry.MaxRetries+1), bad.attempts())
}

func TestReceiverGivesUpAfterConsecutiveFailures(t *testing.T) {
	sink := &recordingSink{name: "down", always: true}
	r := newTestReceiver(t, nil, 3, sink)
	ctx := context.Background()

	process := func(ms int64) error {
		_, err := r.Process(ctx, domain.QuoteBatch{quote("MSFT", 300, ms)})
		return err
	}

	require.NoError(t, process(1))
	require.NoError(t, process(2))

	// a success resets the streak
	sink.setFailing(false)
	require.NoError(t, process(3))
	sink.setFailing(true)

	require.NoError(t, process(4))
	require.NoError(t, process(5))
	assert.ErrorIs(t, process(6), ErrAllSinksFailing)
}

func TestReceiverZeroLimitNeverFatal(t *testing.T) {
	sink := &recordingSink{name: "down", always: true}
	r := newTestReceiver(t, nil, 0, sink)
	for i := int64(1); i <= 10; i++ {
		_, err := r.Process(context.Background(), domain.QuoteBatch{quote("MSFT", 300, i)})
		require.NoError(t, err)
	}
}

func TestReceiverRunStopsWhenChannelCloses(t *testing.T) {
	in := make(chan domain.QuoteBatch, 2)
	sink := &recordingSink{name: "rec"}
	r := newTestReceiver(t, in, 0, sink)
	assert.Equal(t, StateIdle, r.State())

	in <- domain.QuoteBatch{quote("MSFT", 300, 1)}
	in <- domain.QuoteBatch{quote("TSM", 100, 1)}
	close(in)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, StateStopped, r.State())
	assert.Equal(t, 2, sink.count())

	snap, ok := sink.last()
	require.True(t, ok)
	assert.Equal(t, 0, snap.Unpriced)
	assert.Equal(t, fixedClock(), snap.AsOf)
}

func TestReceiverRunReturnsFatalError(t *testing.T) {
	in := make(chan domain.QuoteBatch, 1)
	r := newTestReceiver(t, in, 1, &recordingSink{name: "down", always: true})
	in <- domain.QuoteBatch{quote("MSFT", 300, 1)}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.ErrorIs(t, r.Run(ctx), ErrAllSinksFailing)
	assert.Equal(t, StateStopped, r.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "dispatching", StateDispatching.String())
	assert.Equal(t, "state(9)", State(9).String())
}
