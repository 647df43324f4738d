package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tickfolio/internal/application/port"
	"tickfolio/internal/infrastructure/storage"
)

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db, now: time.Now}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS measurements (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  ts_ms BIGINT NOT NULL,
  tags JSONB NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_measurements_name_ts ON measurements(name, ts_ms);

CREATE TABLE IF NOT EXISTS measurement_fields (
  measurement_id BIGINT NOT NULL REFERENCES measurements(id) ON DELETE CASCADE,
  field TEXT NOT NULL,
  value DOUBLE PRECISION NOT NULL,
  PRIMARY KEY (measurement_id, field)
);
`)
	return err
}

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

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO measurements(name, ts_ms, tags, created_at) VALUES($1, $2, $3, $4) RETURNING id`,
		m.Name, m.Time.UnixMilli(), string(tags), r.now().UnixMilli()).Scan(&id)
	if err != nil {
		return err
	}

	for field, v := range m.Fields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO measurement_fields(measurement_id, field, value) VALUES($1, $2, $3)`,
			id, field, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) Range(ctx context.Context, name string, from, to time.Time) ([]port.Measurement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.ts_ms, m.tags::text, f.field, f.value
		FROM measurements m JOIN measurement_fields f ON f.measurement_id = m.id
		WHERE m.name = $1 AND m.ts_ms BETWEEN $2 AND $3
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
