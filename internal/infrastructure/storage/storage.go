package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tickfolio/internal/application/port"
)

// Ranger reads back stored measurements in [from, to], oldest first.
type Ranger interface {
	Range(ctx context.Context, name string, from, to time.Time) ([]port.Measurement, error)
}

// RowScanner is the part of *sql.Rows ScanPoints needs.
type RowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// ScanPoints folds (id, ts_ms, tags, field, value) rows ordered by point back
// into measurements.
func ScanPoints(rows RowScanner, name string) ([]port.Measurement, error) {
	var (
		out    []port.Measurement
		lastID int64 = -1
	)
	for rows.Next() {
		var (
			id, ts int64
			tags   string
			field  string
			value  float64
		)
		if err := rows.Scan(&id, &ts, &tags, &field, &value); err != nil {
			return nil, err
		}
		if id != lastID {
			m := port.Measurement{Name: name, Fields: map[string]float64{}, Time: time.UnixMilli(ts).UTC()}
			if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
				return nil, fmt.Errorf("point %d tags: %w", id, err)
			}
			out = append(out, m)
			lastID = id
		}
		out[len(out)-1].Fields[field] = value
	}
	return out, rows.Err()
}
