package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"prospect-scraper/config"
	"prospect-scraper/models"
	"prospect-scraper/storage"
	"prospect-scraper/utils"
)

// ScraperVersion is recorded in every row's audit blob.
const ScraperVersion = "1.0.0"

// Upserter merges scored batches into a PropertyStore.
type Upserter struct {
	store  storage.PropertyStore
	logger *utils.Logger
	now    func() time.Time
}

func NewUpserter(store storage.PropertyStore, logger *utils.Logger) *Upserter {
	return &Upserter{store: store, logger: logger, now: time.Now}
}

// Upsert writes every record under src and returns how many rows were
// written. A failing record is logged and skipped; only an unreachable store
// is returned as an error.
func (u *Upserter) Upsert(ctx context.Context, src *config.SourceConfig, runID string, records []*models.NormalizedProperty) (int, error) {
	if err := u.store.Ping(ctx); err != nil {
		return 0, fmt.Errorf("property store unreachable: %w", err)
	}

	written := 0
	for _, rec := range records {
		row, err := u.buildRow(src, runID, rec)
		if err != nil {
			u.logger.Warn("[upsert] %s: %v", rec.URL, err)
			continue
		}
		if _, err := u.store.UpsertByKey(ctx, row); err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			u.logger.Warn("[upsert] %s/%s: %v", src.Name, row.SourceID, err)
			continue
		}
		written++
	}

	u.logger.Info("[upsert] %s: %d/%d rows written", src.Name, written, len(records))
	return written, nil
}

func (u *Upserter) buildRow(src *config.SourceConfig, runID string, rec *models.NormalizedProperty) (*models.PersistedProperty, error) {
	audit, err := json.Marshal(models.AuditData{
		RunID:          runID,
		ScrapedAt:      rec.ScrapedAt,
		ScraperVersion: ScraperVersion,
		ImageCount:     len(rec.Images),
	})
	if err != nil {
		return nil, fmt.Errorf("encode audit data: %w", err)
	}

	row := &models.PersistedProperty{
		Source:             src.Name,
		SourceID:           DeriveSourceID(src, rec),
		NormalizedProperty: *rec,
		IsActive:           true,
		DataQualityScore:   1,
		ValidationErrors:   []string{},
		RawData:            audit,
		LastSeenAt:         u.now().UTC(),
	}
	if rec.Validation != nil {
		row.DataQualityScore = rec.Validation.QualityScore
		row.ValidationErrors = append(row.ValidationErrors, rec.Validation.Errors...)
	}
	return row, nil
}

// DeriveSourceID returns the stable per-source key of a listing. In order of
// preference: the reference captured from the URL by the source's
// reference_pattern, the last path segment of the URL, the reference read
// from the page, and finally a digest of the URL itself.
func DeriveSourceID(src *config.SourceConfig, rec *models.NormalizedProperty) string {
	if re := src.ReferenceRe(); re != nil {
		if m := re.FindStringSubmatch(rec.URL); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}

	if u, err := url.Parse(rec.URL); err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if last := segments[len(segments)-1]; last != "" {
			return strings.ToLower(last)
		}
	}

	if ref := strings.TrimSpace(rec.Reference); ref != "" {
		return ref
	}

	sum := sha1.Sum([]byte(strings.TrimSpace(rec.URL)))
	return "url-" + hex.EncodeToString(sum[:8])
}
