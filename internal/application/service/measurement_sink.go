package service

import (
	"context"
	"fmt"
	"strings"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"
)

const (
	DefaultMeasurement = "portfolio"
	TotalField         = "total"
	CurrencyTag        = "currency"
)

// MeasurementSink writes every snapshot as one measurement point: a field per
// position value plus the total, tagged with the home currency.
type MeasurementSink struct {
	name        string
	store       port.MeasurementStore
	measurement string
}

func NewMeasurementSink(name string, store port.MeasurementStore, measurement string) *MeasurementSink {
	if strings.TrimSpace(measurement) == "" {
		measurement = DefaultMeasurement
	}
	return &MeasurementSink{name: name, store: store, measurement: measurement}
}

func (s *MeasurementSink) Name() string { return s.name }

func (s *MeasurementSink) Write(ctx context.Context, snap domain.ValuationSnapshot) error {
	if err := s.store.Append(ctx, ToMeasurement(s.measurement, snap)); err != nil {
		return fmt.Errorf("append %s: %w", s.measurement, err)
	}
	return nil
}

// ToMeasurement flattens a snapshot. Unpriced positions are written as 0 so
// the fields always sum to the total.
func ToMeasurement(name string, snap domain.ValuationSnapshot) port.Measurement {
	fields := make(map[string]float64, len(snap.Positions)+1)
	for _, p := range snap.Positions {
		fields[string(p.Symbol)] = p.Value
	}
	fields[TotalField] = snap.Total

	return port.Measurement{
		Name:   name,
		Tags:   map[string]string{CurrencyTag: snap.Home.String()},
		Fields: fields,
		Time:   snap.AsOf,
	}
}

var _ port.Sink = (*MeasurementSink)(nil)
