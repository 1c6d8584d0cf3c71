package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"prospect-scraper/models"
)

// upsertColumns are written on insert. Every column except the conflict key
// is also refreshed on update; id, is_active and first_seen_at are not listed
// and so keep their original values.
var upsertColumns = []string{
	"source", "source_id", "url", "reference", "title", "description", "price",
	"property_type", "building_surface", "land_surface", "rooms", "bedrooms",
	"bathrooms", "floors", "year_built", "heating_system", "pool", "images",
	"location_city", "location_department", "location_postal_code",
	"data_quality_score", "validation_errors", "raw_data", "last_seen_at",
}

const selectColumns = `id, source, source_id, url, reference, title, description, price,
	property_type, building_surface, land_surface, rooms, bedrooms, bathrooms, floors,
	year_built, heating_system, pool, images, location_city, location_department,
	location_postal_code, is_active, data_quality_score, validation_errors, raw_data,
	first_seen_at, last_seen_at`

// buildUpsert renders the insert-or-update statement. placeholder formats
// the n-th bind parameter ("$%d" for Postgres, "?%d" for SQLite).
func buildUpsert(placeholder string) string {
	params := make([]string, len(upsertColumns))
	updates := make([]string, 0, len(upsertColumns))
	for i, col := range upsertColumns {
		params[i] = fmt.Sprintf(placeholder, i+1)
		if col == "source" || col == "source_id" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	return fmt.Sprintf(`
		INSERT INTO properties (%s)
		VALUES (%s)
		ON CONFLICT (source, source_id) DO UPDATE SET
			%s
		RETURNING id`,
		strings.Join(upsertColumns, ", "),
		strings.Join(params, ", "),
		strings.Join(updates, ",\n\t\t\t"))
}

// rowArgs lists the bind values in upsertColumns order. list encodes string
// slices and stamp encodes timestamps, both driver-specific.
func rowArgs(row *models.PersistedProperty, list func([]string) any, stamp func(time.Time) any) []any {
	return []any{
		row.Source,
		row.SourceID,
		row.URL,
		row.Reference,
		row.Title,
		row.Description,
		row.Price,
		nullString(row.PropertyType),
		nullFloat(row.BuildingSurface),
		nullFloat(row.LandSurface),
		nullInt(row.Rooms),
		nullInt(row.Bedrooms),
		nullInt(row.Bathrooms),
		nullInt(row.Floors),
		nullInt(row.YearBuilt),
		row.HeatingSystem,
		row.Pool,
		list(nonNil(row.Images)),
		row.LocationCity,
		row.LocationDepartment,
		row.LocationPostalCode,
		row.DataQualityScore,
		list(nonNil(row.ValidationErrors)),
		string(rawOrEmpty(row.RawData)),
		stamp(row.LastSeenAt),
	}
}

// scannedRow holds the nullable intermediates of one SELECT row.
type scannedRow struct {
	p            models.PersistedProperty
	propertyType sql.NullString
	building     sql.NullFloat64
	land         sql.NullFloat64
	rooms        sql.NullInt64
	bedrooms     sql.NullInt64
	bathrooms    sql.NullInt64
	floors       sql.NullInt64
	yearBuilt    sql.NullInt64
	rawData      sql.NullString
}

// targets returns scan destinations in selectColumns order. images, errs,
// first and last are driver-specific destinations.
func (s *scannedRow) targets(images, errs, first, last any) []any {
	p := &s.p
	return []any{
		&p.ID, &p.Source, &p.SourceID, &p.URL, &p.Reference, &p.Title, &p.Description, &p.Price,
		&s.propertyType, &s.building, &s.land, &s.rooms, &s.bedrooms, &s.bathrooms, &s.floors,
		&s.yearBuilt, &p.HeatingSystem, &p.Pool, images, &p.LocationCity, &p.LocationDepartment,
		&p.LocationPostalCode, &p.IsActive, &p.DataQualityScore, errs, &s.rawData,
		first, last,
	}
}

func (s *scannedRow) property() *models.PersistedProperty {
	p := s.p
	p.PropertyType = s.propertyType.String
	p.BuildingSurface = floatPtr(s.building)
	p.LandSurface = floatPtr(s.land)
	p.Rooms = intPtr(s.rooms)
	p.Bedrooms = intPtr(s.bedrooms)
	p.Bathrooms = intPtr(s.bathrooms)
	p.Floors = intPtr(s.floors)
	p.YearBuilt = intPtr(s.yearBuilt)
	if s.rawData.Valid {
		p.RawData = []byte(s.rawData.String)
	}
	return &p
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func rawOrEmpty(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
