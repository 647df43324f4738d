package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"
	"tickfolio/internal/infrastructure/pricefeed"
	"tickfolio/internal/infrastructure/retry"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const Name = "yahoo"

const (
	defaultDialTimeout    = 10 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultPingInterval   = 25 * time.Second
	defaultBackoffInitial = 500 * time.Millisecond
	defaultBackoffMax     = 10 * time.Second
)

// TickerFeed streams PricingData frames from a Yahoo-style streamer.
type TickerFeed struct {
	wsURL          string // e.g. wss://streamer.finance.yahoo.com/
	dialTimeout    time.Duration
	idleTimeout    time.Duration
	pingInterval   time.Duration
	backoffInitial time.Duration
	backoffMax     time.Duration
	dialer         *websocket.Dialer
}

func NewTickerFeed(opts pricefeed.Options) *TickerFeed {
	f := &TickerFeed{
		wsURL:          strings.TrimSpace(opts.URL),
		dialTimeout:    opts.DialTimeout,
		idleTimeout:    opts.IdleTimeout,
		pingInterval:   opts.PingInterval,
		backoffInitial: opts.BackoffInitial,
		backoffMax:     opts.BackoffMax,
		dialer:         websocket.DefaultDialer,
	}
	if f.dialTimeout <= 0 {
		f.dialTimeout = defaultDialTimeout
	}
	if f.idleTimeout <= 0 {
		f.idleTimeout = defaultIdleTimeout
	}
	if f.pingInterval <= 0 {
		f.pingInterval = defaultPingInterval
	}
	if f.backoffInitial <= 0 {
		f.backoffInitial = defaultBackoffInitial
	}
	if f.backoffMax <= 0 {
		f.backoffMax = defaultBackoffMax
	}
	return f
}

func (f *TickerFeed) Name() string { return Name }

func (f *TickerFeed) Subscribe(ctx context.Context, symbols []domain.Symbol) (<-chan port.FeedEvent, error) {
	if len(symbols) == 0 {
		return nil, port.ErrEmptySymbols
	}
	if f.wsURL == "" {
		return nil, errors.New("yahoo ws_url empty")
	}
	sub, err := SubscribeFrame(symbols)
	if err != nil {
		return nil, err
	}

	out := make(chan port.FeedEvent, 1024)
	go f.run(ctx, sub, len(symbols), out)
	return out, nil
}

// run owns the connection. Reconnects happen here, one at a time, forever,
// until ctx is done or the server rejects the subscription outright.
func (f *TickerFeed) run(ctx context.Context, sub []byte, nsym int, out chan<- port.FeedEvent) {
	defer close(out)

	backoff := retry.NewBackoff(f.backoffInitial, f.backoffMax)
	for {
		if ctx.Err() != nil {
			return
		}

		log.Info().Str("feed", f.Name()).Str("url", f.wsURL).Msg("ws connecting")
		cctx, cancel := context.WithTimeout(ctx, f.dialTimeout)
		conn, resp, err := f.dialer.DialContext(cctx, f.wsURL, nil)
		cancel()
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if rejected(resp) {
				log.Error().Str("feed", f.Name()).Int("status", resp.StatusCode).Msg("ws subscription rejected")
				emit(ctx, out, port.FeedEvent{Err: fmt.Errorf("%w: http %d", port.ErrSubscriptionRejected, resp.StatusCode)})
				return
			}
			log.Error().Str("feed", f.Name()).Err(err).Msg("ws dial failed")
			if retry.Sleep(ctx, backoff.Next()) != nil {
				return
			}
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
			_ = conn.Close()
			log.Error().Str("feed", f.Name()).Err(err).Msg("ws subscribe failed")
			if retry.Sleep(ctx, backoff.Next()) != nil {
				return
			}
			continue
		}

		backoff.Reset()
		log.Info().Str("feed", f.Name()).Int("symbols", nsym).Msg("ws subscribed")

		err = f.readLoop(ctx, conn, func(b []byte) {
			q, e := DecodeFrame(b)
			if e != nil {
				if errors.Is(e, ErrNotPricing) {
					log.Debug().Str("feed", f.Name()).Err(e).Msg("frame ignored")
					return
				}
				log.Warn().Str("feed", f.Name()).Err(e).Msg("skipping malformed frame")
				return
			}
			emit(ctx, out, port.FeedEvent{Quote: q})
		})

		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}

		log.Warn().Str("feed", f.Name()).Err(err).Msg("ws disconnected, reconnecting")
		if retry.Sleep(ctx, backoff.Next()) != nil {
			return
		}
	}
}

// readLoop returns when the connection fails, goes idle for longer than
// idleTimeout, or ctx is done. The reader goroutine has exited by the time
// readLoop returns, so onMsg is never called afterwards.
func (f *TickerFeed) readLoop(ctx context.Context, conn *websocket.Conn, onMsg func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(f.idleTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(f.idleTimeout))
		return nil
	})

	pingTicker := time.NewTicker(f.pingInterval)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(f.idleTimeout))
			onMsg(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			for range errCh {
			}
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

// emit blocks until the consumer takes ev; this is where backpressure from
// the pipeline reaches the socket.
func emit(ctx context.Context, out chan<- port.FeedEvent, ev port.FeedEvent) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// rejected reports a handshake the server will keep refusing.
func rejected(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	code := resp.StatusCode
	return code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}
