package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tickfolio/internal/application/port"
	"tickfolio/internal/infrastructure/storage"
)

// Repo stores measurements in two tables: one row per point and one row per
// field of that point.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db, now: time.Now}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS measurements (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  tags TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_measurements_name_ts ON measurements(name, ts_ms);

CREATE TABLE IF NOT EXISTS measurement_fields (
  measurement_id INTEGER NOT NULL REFERENCES measurements(id) ON DELETE CASCADE,
  field TEXT NOT NULL,
  value REAL NOT NULL,
  PRIMARY KEY (measurement_id, field)
);
`)
	return err
}

// Append writes the point and its fields in one transaction.
func (r *Repo) Append(ctx context.Context, m port.Measurement) error {
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO measurements(name, ts_ms, tags, created_at) VALUES(?, ?, ?, ?)`,
		m.Name, m.Time.UnixMilli(), string(tags), r.now().UnixMilli())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO measurement_fields(measurement_id, field, value) VALUES(?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for field, v := range m.Fields {
		if _, err := stmt.ExecContext(ctx, id, field, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) Range(ctx context.Context, name string, from, to time.Time) ([]port.Measurement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.ts_ms, m.tags, f.field, f.value
		FROM measurements m JOIN measurement_fields f ON f.measurement_id = m.id
		WHERE m.name = ? AND m.ts_ms BETWEEN ? AND ?
		ORDER BY m.ts_ms, m.id`, name, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return storage.ScanPoints(rows, name)
}

var (
	_ port.MeasurementStore = (*Repo)(nil)
	_ storage.Ranger        = (*Repo)(nil)
)
