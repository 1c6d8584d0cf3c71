package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"prospect-scraper/models"
)

var csvHeader = []string{
	"source", "url", "reference", "price", "property_type", "city", "department",
	"postal_code", "quality_score", "validation_errors", "image_count", "scraped_at",
}

// CSVWriter dumps scored batches to a CSV file for offline review.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteBatch appends one row per record. Records without a validation
// verdict are written with an empty score.
func (c *CSVWriter) WriteBatch(source string, records []*models.NormalizedProperty) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		var score, errs string
		if r.Validation != nil {
			score = strconv.FormatFloat(r.Validation.QualityScore, 'f', 2, 64)
			errs = strings.Join(r.Validation.Errors, "; ")
		}
		row := []string{
			source,
			r.URL,
			r.Reference,
			strconv.FormatInt(r.Price, 10),
			r.PropertyType,
			r.LocationCity,
			r.LocationDepartment,
			r.LocationPostalCode,
			score,
			errs,
			strconv.Itoa(len(r.Images)),
			r.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
