package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrFeedClosed means the feed stopped delivering without being cancelled.
	ErrFeedClosed = errors.New("quote feed closed unexpectedly")
	// ErrAllSinksFailing is returned once every sink has failed for the
	// configured number of consecutive snapshots.
	ErrAllSinksFailing = errors.New("all sinks failing")
)

// SinkError is a sink write that still failed after its retries.
type SinkError struct {
	Sink     string
	Attempts int
	Err      error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %d attempts: %v", e.Sink, e.Attempts, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
