package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"
	"tickfolio/internal/infrastructure/retry"

	"github.com/rs/zerolog/log"
)

// State is the receiver's position in its per-batch cycle.
type State int32

const (
	StateIdle State = iota
	StateUpdating
	StateDispatching
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUpdating:
		return "updating"
	case StateDispatching:
		return "dispatching"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type ReceiverConfig struct {
	Retry retry.Config
	// MaxFailedSnapshots is how many consecutive snapshots may fail on every
	// sink before the receiver gives up. Zero never gives up.
	MaxFailedSnapshots int
	Clock              func() time.Time
}

// Receiver applies batches to the price table, values the portfolio and
// hands each snapshot to every sink. The price table belongs to the goroutine
// running Run.
type Receiver struct {
	in     <-chan domain.QuoteBatch
	valuer *domain.Valuer
	table  *domain.PriceTable
	sinks  []port.Sink
	cfg    ReceiverConfig

	state      atomic.Int32
	failStreak int
}

func NewReceiver(in <-chan domain.QuoteBatch, valuer *domain.Valuer, sinks []port.Sink, cfg ReceiverConfig) *Receiver {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Receiver{
		in:     in,
		valuer: valuer,
		table:  domain.NewPriceTable(valuer.Portfolio().Symbols()),
		sinks:  sinks,
		cfg:    cfg,
	}
}

func (r *Receiver) State() State { return State(r.state.Load()) }

func (r *Receiver) setState(s State) { r.state.Store(int32(s)) }

// Run consumes batches until the channel is closed or ctx is done (nil), or a
// sink policy failure occurs (error).
func (r *Receiver) Run(ctx context.Context) error {
	defer r.setState(StateStopped)

	log.Info().Int("sinks", len(r.sinks)).Msg("receiver started")
	for {
		r.setState(StateIdle)
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-r.in:
			if !ok {
				log.Info().Msg("quote channel closed, receiver stopping")
				return nil
			}
			if _, err := r.Process(ctx, b); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Process applies one batch and dispatches the resulting snapshot.
func (r *Receiver) Process(ctx context.Context, b domain.QuoteBatch) (domain.ValuationSnapshot, error) {
	r.setState(StateUpdating)
	applied := r.table.ApplyBatch(b)
	snap := r.valuer.Value(r.table.Prices(), r.cfg.Clock())
	if stale := len(b) - applied; stale > 0 {
		log.Debug().Int("batch", len(b)).Int("discarded", stale).Msg("stale or untracked quotes discarded")
	}

	r.setState(StateDispatching)
	return snap, r.dispatch(ctx, snap)
}

func (r *Receiver) dispatch(ctx context.Context, snap domain.ValuationSnapshot) error {
	failed := 0
	for _, s := range r.sinks {
		sink := s
		attempts, err := retry.Do(ctx, r.cfg.Retry, func(ctx context.Context) error {
			return sink.Write(ctx, snap)
		})
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failed++
		se := &SinkError{Sink: sink.Name(), Attempts: attempts, Err: err}
		log.Error().Err(se).Str("sink", sink.Name()).Int("attempts", attempts).Msg("sink write failed, skipping snapshot")
	}

	if len(r.sinks) > 0 && failed == len(r.sinks) {
		r.failStreak++
	} else {
		r.failStreak = 0
	}
	if r.cfg.MaxFailedSnapshots > 0 && r.failStreak >= r.cfg.MaxFailedSnapshots {
		return fmt.Errorf("%w: %d consecutive snapshots", ErrAllSinksFailing, r.failStreak)
	}
	return nil
}
