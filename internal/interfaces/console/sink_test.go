package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickfolio/internal/domain"
)

func snapshot() domain.ValuationSnapshot {
	return domain.ValuationSnapshot{
		Home: domain.EUR,
		Positions: []domain.PositionValue{
			{Symbol: "MSFT", Name: "Microsoft Corporation", Quantity: 25, LastPrice: 300, Currency: domain.USD,
				Rate: 0.9, Value: 6750, ChangePercent: 1.5, Direction: domain.DirectionUp, Priced: true},
			{Symbol: "TSM", Name: "Taiwan Semiconductor Manufacturing Company Limited", Quantity: 100, Currency: domain.USD},
		},
		Total:    6750,
		Unpriced: 1,
		AsOf:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSinkRedrawsInPlace(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	assert.Equal(t, "console", s.Name())

	require.NoError(t, s.Write(context.Background(), snapshot()))
	require.NoError(t, s.Write(context.Background(), snapshot()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, ansiClearScreen))
	assert.Equal(t, 2, strings.Count(out, ansiClearScreen))
}

func TestFormatterRender(t *testing.T) {
	out := NewFormatter().Render(snapshot())

	assert.Contains(t, out, "home=EUR")
	assert.Contains(t, out, colorize("      300.00", ansiGreen))
	assert.Contains(t, out, Money(6750, domain.EUR))
	assert.Contains(t, out, "(1 unpriced)")
	assert.Contains(t, out, "Taiwan Semiconductor Manufa…")

	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "TSM") {
			assert.True(t, strings.HasPrefix(line, ansiDim), "unpriced row is dimmed")
			assert.Contains(t, line, "--")
		}
	}
}

func TestMoneyUsesHomeCurrency(t *testing.T) {
	assert.Contains(t, Money(1234.5, domain.EUR), "1,234.50")
	assert.Contains(t, Money(10, domain.USD), "$")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestSinkWriteErrors(t *testing.T) {
	s := NewSink(failingWriter{})
	assert.Error(t, s.Write(context.Background(), snapshot()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewSink(&bytes.Buffer{}).Write(ctx, snapshot()), context.Canceled)
}

func TestFormatQty(t *testing.T) {
	assert.Equal(t, "25", formatQty(25))
	assert.Equal(t, "0.5000", formatQty(0.5))
}
