package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"prospect-scraper/models"
	"prospect-scraper/utils"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresStore persists properties to PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	upsert string
}

// NewPostgresStore opens a connection, waits for the server, applies pending
// migrations and returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, dsn string, retry *utils.RetryConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	err = retry.Do(ctx, "postgres-ping", func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if _, _, err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return &PostgresStore{db: db, upsert: buildUpsert("$%d")}, nil
}

// runMigrations applies all pending migrations and returns the schema version.
func runMigrations(db *sql.DB) (uint, bool, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return 0, false, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, false, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return 0, false, fmt.Errorf("failed to run migrations: %w", err)
	}

	return m.Version()
}

// UpsertByKey inserts row or updates the existing row with the same
// (source, source_id). It returns the row id, unchanged across updates.
func (s *PostgresStore) UpsertByKey(ctx context.Context, row *models.PersistedProperty) (int64, error) {
	args := rowArgs(row,
		func(v []string) any { return pq.Array(v) },
		func(t time.Time) any { return t },
	)

	var id int64
	if err := s.db.QueryRowContext(ctx, s.upsert, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("postgres: upsert %s/%s: %w", row.Source, row.SourceID, err)
	}
	return id, nil
}

// FetchBySource returns every stored row of one source, oldest first.
func (s *PostgresStore) FetchBySource(ctx context.Context, source string) ([]*models.PersistedProperty, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM properties WHERE source = $1 ORDER BY id`, source)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch %s: %w", source, err)
	}
	defer rows.Close()

	var out []*models.PersistedProperty
	for rows.Next() {
		var r scannedRow
		if err := rows.Scan(r.targets(
			pq.Array(&r.p.Images), pq.Array(&r.p.ValidationErrors),
			&r.p.FirstSeenAt, &r.p.LastSeenAt,
		)...); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		out = append(out, r.property())
	}
	return out, rows.Err()
}

// Count returns the number of stored rows.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
