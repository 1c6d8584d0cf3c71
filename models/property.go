package models

import "time"

// RawExtraction holds the fields read straight from one detail page's DOM.
// It never leaves the scraper run that produced it.
type RawExtraction struct {
	URL         string
	Title       string
	PriceText   string
	Description string
	Breadcrumb  []string
	// ListItems maps a canonical field name (reference, surface, rooms...) to the
	// raw text of the first list item whose label matched one of its keywords.
	ListItems map[string]string
	Images    []string
	HeroImage string
	ScrapedAt time.Time
}

// NormalizedProperty is the canonical listing schema shared by every source.
// Optional numeric fields are nil when the source did not expose them.
type NormalizedProperty struct {
	URL                string
	Reference          string
	Title              string
	Description        string
	Price              int64
	PropertyType       string
	BuildingSurface    *float64
	LandSurface        *float64
	Rooms              *int
	Bedrooms           *int
	Bathrooms          *int
	Floors             *int
	YearBuilt          *int
	HeatingSystem      string
	Pool               bool
	Images             []string
	LocationCity       string
	LocationDepartment string
	LocationPostalCode string
	ScrapedAt          time.Time

	Validation *ValidationResult
}

// ValidationResult is computed once per record before persistence.
type ValidationResult struct {
	IsValid      bool     `json:"isValid"`
	Errors       []string `json:"errors"`
	QualityScore float64  `json:"qualityScore"`
}

// PersistedProperty is one row of the properties table.
type PersistedProperty struct {
	ID       int64
	Source   string
	SourceID string
	NormalizedProperty

	IsActive         bool
	DataQualityScore float64
	ValidationErrors []string
	RawData          []byte
	FirstSeenAt      time.Time
	LastSeenAt       time.Time
}

// AuditData is serialised into the raw_data column.
type AuditData struct {
	RunID          string    `json:"run_id"`
	ScrapedAt      time.Time `json:"scraped_at"`
	ScraperVersion string    `json:"scraper_version"`
	ImageCount     int       `json:"image_count"`
}

// ValidationStats counts validator verdicts over one batch.
type ValidationStats struct {
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Total   int `json:"total"`
}

// ImageStats summarises image coverage over one batch.
type ImageStats struct {
	WithImages           int     `json:"withImages"`
	AvgImagesPerProperty float64 `json:"avgImagesPerProperty"`
}

// RunReport is what a caller of a scrape run gets back.
type RunReport struct {
	Success      bool            `json:"success"`
	Source       string          `json:"source"`
	RunID        string          `json:"runId"`
	TotalScraped int             `json:"totalScraped"`
	Inserted     int             `json:"inserted"`
	Validation   ValidationStats `json:"validation"`
	ImageStats   ImageStats      `json:"imageStats"`
	Message      string          `json:"message,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
}

// InsightReport holds summary figures computed over stored rows of one source.
type InsightReport struct {
	Source           string         `json:"source"`
	TotalProperties  int            `json:"totalProperties"`
	ActiveProperties int            `json:"activeProperties"`
	FlaggedForReview int            `json:"flaggedForReview"`
	AveragePrice     float64        `json:"averagePrice"`
	MinPrice         int64          `json:"minPrice"`
	MaxPrice         int64          `json:"maxPrice"`
	AverageQuality   float64        `json:"averageQuality"`
	ByDepartment     map[string]int `json:"byDepartment"`
	ByPropertyType   map[string]int `json:"byPropertyType"`
}
