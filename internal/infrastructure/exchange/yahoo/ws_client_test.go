package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"
	"tickfolio/internal/infrastructure/pricefeed"
)

// streamer serves scripted frames; script[i] is sent on the i-th connection.
// The last script entry keeps its connection open.
type streamer struct {
	script [][][]byte

	mu   sync.Mutex
	subs []string
	conn atomic.Int32
}

func (s *streamer) handler() http.HandlerFunc {
	up := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		idx := int(s.conn.Add(1)) - 1
		_, sub, err := c.ReadMessage()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.subs = append(s.subs, string(sub))
		s.mu.Unlock()

		if idx >= len(s.script) {
			idx = len(s.script) - 1
		}
		for _, frame := range s.script[idx] {
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
		if idx < len(s.script)-1 {
			return // drop the connection
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testOptions(url string) pricefeed.Options {
	return pricefeed.Options{
		URL:            url,
		DialTimeout:    time.Second,
		IdleTimeout:    5 * time.Second,
		PingInterval:   time.Second,
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     20 * time.Millisecond,
	}
}

func next(t *testing.T, ch <-chan port.FeedEvent) port.FeedEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "feed closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for feed event")
		return port.FeedEvent{}
	}
}

func TestTickerFeedReconnectsAndResubscribes(t *testing.T) {
	t1 := time.UnixMilli(1_000).UTC()
	t2 := time.UnixMilli(2_000).UTC()
	q1 := domain.Quote{Symbol: "MSFT", Price: 300, Currency: domain.USD, Timestamp: t1}
	q2 := domain.Quote{Symbol: "MSFT", Price: 305, Currency: domain.USD, Timestamp: t2}

	st := &streamer{script: [][][]byte{
		{EncodeFrame(q1), []byte("garbage!"), []byte(`{"type":"heartbeat"}`)},
		{EncodeFrame(q2)},
	}}
	srv := httptest.NewServer(st.handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewTickerFeed(testOptions(wsURL(srv)))
	ch, err := feed.Subscribe(ctx, []domain.Symbol{"MSFT", "TSM"})
	require.NoError(t, err)

	ev := next(t, ch)
	require.NoError(t, ev.Err)
	assert.Equal(t, q1, ev.Quote)

	ev = next(t, ch)
	require.NoError(t, ev.Err)
	assert.Equal(t, q2, ev.Quote)

	st.mu.Lock()
	subs := append([]string(nil), st.subs...)
	st.mu.Unlock()
	require.Len(t, subs, 2)
	for _, s := range subs {
		assert.JSONEq(t, `{"subscribe":["MSFT","TSM"]}`, s)
	}

	cancel()
	for range ch {
	}
}

func TestTickerFeedRejectedSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	feed := NewTickerFeed(testOptions(wsURL(srv)))
	ch, err := feed.Subscribe(context.Background(), []domain.Symbol{"MSFT"})
	require.NoError(t, err)

	ev := next(t, ch)
	assert.ErrorIs(t, ev.Err, port.ErrSubscriptionRejected)

	_, ok := <-ch
	assert.False(t, ok)
}

func TestTickerFeedEmptySymbols(t *testing.T) {
	feed := NewTickerFeed(testOptions("ws://127.0.0.1:1"))
	_, err := feed.Subscribe(context.Background(), nil)
	assert.ErrorIs(t, err, port.ErrEmptySymbols)
}

func TestTickerFeedKeepsRetryingUnreachable(t *testing.T) {
	// nothing listens here; the feed must keep retrying until cancelled
	feed := NewTickerFeed(testOptions("ws://127.0.0.1:1"))
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	ch, err := feed.Subscribe(ctx, []domain.Symbol{"MSFT"})
	require.NoError(t, err)

	for ev := range ch {
		t.Fatalf("unexpected event %+v", ev)
	}
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestRegistered(t *testing.T) {
	f, ok := pricefeed.Get(Name)
	require.True(t, ok)
	assert.Equal(t, Name, f(pricefeed.Options{URL: "ws://x"}).Name())
}

func TestTickerFeedCancelUnderLoad(t *testing.T) {
	frame := EncodeFrame(domain.Quote{Symbol: "MSFT", Price: 300, Currency: domain.USD, Timestamp: time.UnixMilli(1_000).UTC()})
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
		for {
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	feed := NewTickerFeed(testOptions(wsURL(srv)))
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		ch, err := feed.Subscribe(ctx, []domain.Symbol{"MSFT"})
		require.NoError(t, err)

		for j := 0; j < 5; j++ {
			ev := next(t, ch)
			require.NoError(t, ev.Err)
		}
		cancel()

		closed := make(chan struct{})
		go func() {
			for range ch {
			}
			close(closed)
		}()
		select {
		case <-closed:
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: feed did not close after cancel", i)
		}
	}
}
