package console

import (
	"context"
	"io"
	"os"
	"sync"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"
)

// Sink redraws the whole portfolio table in place on every snapshot.
type Sink struct {
	mu  sync.Mutex
	w   io.Writer
	fmt *Formatter
}

func NewSink(w io.Writer) *Sink {
	if w == nil {
		w = os.Stdout
	}
	return &Sink{w: w, fmt: NewFormatter()}
}

func (s *Sink) Name() string { return "console" }

func (s *Sink) Write(ctx context.Context, snap domain.ValuationSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame := ansiClearScreen + s.fmt.Render(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, frame)
	return err
}

var _ port.Sink = (*Sink)(nil)
