package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"prospect-scraper/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS properties (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	source               TEXT    NOT NULL,
	source_id            TEXT    NOT NULL,
	url                  TEXT    NOT NULL,
	reference            TEXT    NOT NULL DEFAULT '',
	title                TEXT    NOT NULL DEFAULT '',
	description          TEXT    NOT NULL DEFAULT '',
	price                INTEGER NOT NULL,
	property_type        TEXT,
	building_surface     REAL,
	land_surface         REAL,
	rooms                INTEGER,
	bedrooms             INTEGER,
	bathrooms            INTEGER,
	floors               INTEGER,
	year_built           INTEGER,
	heating_system       TEXT    NOT NULL DEFAULT '',
	pool                 INTEGER NOT NULL DEFAULT 0,
	images               TEXT    NOT NULL DEFAULT '[]',
	location_city        TEXT    NOT NULL DEFAULT '',
	location_department  TEXT    NOT NULL DEFAULT '',
	location_postal_code TEXT    NOT NULL DEFAULT '',
	is_active            INTEGER NOT NULL DEFAULT 1,
	data_quality_score   REAL    NOT NULL DEFAULT 1,
	validation_errors    TEXT    NOT NULL DEFAULT '[]',
	raw_data             TEXT    NOT NULL DEFAULT '{}',
	first_seen_at        TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	last_seen_at         TEXT    NOT NULL,
	UNIQUE (source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_properties_price      ON properties(price);
CREATE INDEX IF NOT EXISTS idx_properties_department ON properties(location_department);
`

// SQLiteStore persists properties to an embedded SQLite file. It backs local
// runs without a Postgres server; ":memory:" gives a throwaway database.
type SQLiteStore struct {
	db     *sql.DB
	upsert string
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// one writer; also keeps a :memory: database alive on a single connection
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{`PRAGMA busy_timeout = 5000`, sqliteSchema} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: migrate: %w", err)
		}
	}

	return &SQLiteStore{db: db, upsert: buildUpsert("?%d")}, nil
}

// UpsertByKey inserts row or updates the existing row with the same
// (source, source_id). It returns the row id, unchanged across updates.
func (s *SQLiteStore) UpsertByKey(ctx context.Context, row *models.PersistedProperty) (int64, error) {
	args := rowArgs(row, jsonList, func(t time.Time) any {
		return t.UTC().Format(time.RFC3339Nano)
	})

	var id int64
	if err := s.db.QueryRowContext(ctx, s.upsert, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("sqlite: upsert %s/%s: %w", row.Source, row.SourceID, err)
	}
	return id, nil
}

// FetchBySource returns every stored row of one source, oldest first.
func (s *SQLiteStore) FetchBySource(ctx context.Context, source string) ([]*models.PersistedProperty, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM properties WHERE source = ?1 ORDER BY id`, source)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetch %s: %w", source, err)
	}
	defer rows.Close()

	var out []*models.PersistedProperty
	for rows.Next() {
		var r scannedRow
		var images, errs, first, last string
		if err := rows.Scan(r.targets(&images, &errs, &first, &last)...); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		p := r.property()
		if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
			return nil, fmt.Errorf("sqlite: decode images: %w", err)
		}
		if err := json.Unmarshal([]byte(errs), &p.ValidationErrors); err != nil {
			return nil, fmt.Errorf("sqlite: decode validation errors: %w", err)
		}
		p.FirstSeenAt, _ = time.Parse(time.RFC3339Nano, first)
		p.LastSeenAt, _ = time.Parse(time.RFC3339Nano, last)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count returns the number of stored rows.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

// Ping checks the connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func jsonList(v []string) any {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
