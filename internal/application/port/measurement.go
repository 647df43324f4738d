package port

import (
	"context"
	"time"
)

// Measurement is one time-series point: a name, tags and float fields.
type Measurement struct {
	Name   string             `json:"name"`
	Tags   map[string]string  `json:"tags,omitempty"`
	Fields map[string]float64 `json:"fields"`
	Time   time.Time          `json:"time"`
}

// MeasurementStore appends measurements; one call is one write, success or failure.
type MeasurementStore interface {
	Append(ctx context.Context, m Measurement) error
	Close() error
}
