package api

import (
	"context"

	"prospect-scraper/models"
	"prospect-scraper/services"
	"prospect-scraper/storage"
)

// ScrapeRunner triggers scrape runs.
type ScrapeRunner interface {
	RunScrape(ctx context.Context, source, searchURL string, maxPages int) (*models.RunReport, error)
	Sources() []string
}

// InsightProvider summarises stored rows of one source.
type InsightProvider interface {
	ForSource(ctx context.Context, source string) (*models.InsightReport, error)
}

var (
	_ ScrapeRunner    = (*services.Runner)(nil)
	_ InsightProvider = (*services.InsightService)(nil)
)

type Handler struct {
	runner   ScrapeRunner
	insights InsightProvider
	store    storage.PropertyStore
}

// ScrapeRequest is the optional JSON body of a scrape trigger.
type ScrapeRequest struct {
	SearchURL string `json:"searchUrl"`
	MaxPages  int    `json:"maxPages"`
}
