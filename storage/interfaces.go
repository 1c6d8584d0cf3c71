package storage

import (
	"context"

	"prospect-scraper/models"
)

// PropertyStore is the persistence capability the ingestion pipeline needs.
// UpsertByKey must keep at most one row per (source, source_id) and must not
// change an existing row's id.
type PropertyStore interface {
	UpsertByKey(ctx context.Context, row *models.PersistedProperty) (int64, error)
	FetchBySource(ctx context.Context, source string) ([]*models.PersistedProperty, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// BatchWriter dumps a scored batch for offline review.
type BatchWriter interface {
	WriteBatch(source string, records []*models.NormalizedProperty) error
	Close() error
}
