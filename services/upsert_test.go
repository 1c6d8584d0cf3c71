package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"prospect-scraper/config"
	"prospect-scraper/models"
)

func TestDeriveSourceID(t *testing.T) {
	withRef := agencySources(t)["agency"]
	withoutRef, err := config.ParseSource([]byte(`
name: plain
base_url: https://plain.test
listing_link_pattern: '/annonce/'
`))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		src  *config.SourceConfig
		rec  models.NormalizedProperty
		want string
	}{
		{"reference in url", withRef, models.NormalizedProperty{URL: "https://agency.test/propriete/villa-hyeres-4521"}, "4521"},
		{"reference with query", withRef, models.NormalizedProperty{URL: "https://agency.test/propriete/4521?utm=x"}, "4521"},
		{"last path segment", withoutRef, models.NormalizedProperty{URL: "https://plain.test/annonce/Villa-Hyeres/"}, "villa-hyeres"},
		{"page reference", withoutRef, models.NormalizedProperty{URL: "https://plain.test/", Reference: "REF-9"}, "REF-9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveSourceID(tt.src, &tt.rec); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeriveSourceIDFallsBackToURLDigest(t *testing.T) {
	src := agencySources(t)["agency"]
	a := &models.NormalizedProperty{URL: "https://agency.test/?id=3"}
	b := &models.NormalizedProperty{URL: "https://agency.test/?id=4"}

	idA := DeriveSourceID(src, a)
	if !strings.HasPrefix(idA, "url-") {
		t.Fatalf("expected a url- key, got %q", idA)
	}
	if again := DeriveSourceID(src, a); again != idA {
		t.Errorf("key must be stable: %q vs %q", idA, again)
	}
	if idB := DeriveSourceID(src, b); idB == idA {
		t.Errorf("distinct URLs share key %q", idA)
	}
}

func TestUpsertSkipsFailedRecords(t *testing.T) {
	src := agencySources(t)["agency"]
	store := &failingStore{reject: map[string]bool{"2": true}}
	u := NewUpserter(store, quietLogger())
	u.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	records := []*models.NormalizedProperty{
		{URL: "https://agency.test/propriete/villa-1", Price: 300_000, Images: []string{"a", "b"},
			Validation: &models.ValidationResult{IsValid: false, Errors: []string{"Rooms 51 likely concatenated"}, QualityScore: 0.5}},
		{URL: "https://agency.test/propriete/villa-2", Price: 310_000},
		{URL: "https://agency.test/propriete/villa-3", Price: 320_000},
	}

	n, err := u.Upsert(context.Background(), src, "run-1", records)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n != 2 {
		t.Errorf("written: got %d, want 2", n)
	}

	row := store.rows[0]
	if row.Source != "agency" || row.SourceID != "1" {
		t.Errorf("key: got %s/%s", row.Source, row.SourceID)
	}
	if row.DataQualityScore != 0.5 || len(row.ValidationErrors) != 1 {
		t.Errorf("verdict not carried: %v %v", row.DataQualityScore, row.ValidationErrors)
	}
	if !row.LastSeenAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("LastSeenAt: got %v", row.LastSeenAt)
	}

	var audit models.AuditData
	if err := json.Unmarshal(row.RawData, &audit); err != nil {
		t.Fatalf("raw_data: %v", err)
	}
	if audit.RunID != "run-1" || audit.ImageCount != 2 || audit.ScraperVersion != ScraperVersion {
		t.Errorf("audit: got %+v", audit)
	}

	unscored := store.rows[1]
	if unscored.DataQualityScore != 1 || unscored.ValidationErrors == nil {
		t.Errorf("unscored record: got %v %v", unscored.DataQualityScore, unscored.ValidationErrors)
	}
}

func TestUpsertUnreachableStore(t *testing.T) {
	src := agencySources(t)["agency"]
	store := &failingStore{pingErr: errors.New("connection refused")}

	n, err := NewUpserter(store, quietLogger()).Upsert(context.Background(), src, "run-1",
		[]*models.NormalizedProperty{{URL: "https://agency.test/propriete/villa-1", Price: 300_000}})
	if err == nil {
		t.Fatal("expected an error for an unreachable store")
	}
	if n != 0 {
		t.Errorf("written: got %d, want 0", n)
	}
}

func TestUpsertIsIdempotentOnSQLite(t *testing.T) {
	src := agencySources(t)["agency"]
	store := newSQLiteStore(t)
	u := NewUpserter(store, quietLogger())
	ctx := context.Background()

	records := []*models.NormalizedProperty{
		{URL: "https://agency.test/propriete/villa-1", Price: 300_000},
		{URL: "https://agency.test/propriete/villa-2", Price: 410_000},
	}
	if _, err := u.Upsert(ctx, src, "run-1", records); err != nil {
		t.Fatal(err)
	}
	before, err := store.FetchBySource(ctx, "agency")
	if err != nil {
		t.Fatal(err)
	}

	records[0].Price = 289_000
	n, err := u.Upsert(ctx, src, "run-2", records)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("second run written: got %d, want 2", n)
	}

	after, err := store.FetchBySource(ctx, "agency")
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 2 {
		t.Fatalf("rows: got %d, want 2", len(after))
	}
	for i := range after {
		if after[i].ID != before[i].ID {
			t.Errorf("row %d id changed: %d -> %d", i, before[i].ID, after[i].ID)
		}
	}
	if after[0].Price != 289_000 {
		t.Errorf("price not refreshed: %d", after[0].Price)
	}
}
