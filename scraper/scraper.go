package scraper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"prospect-scraper/config"
	"prospect-scraper/models"
	"prospect-scraper/utils"
)

// Stage is a step of a source scraper run.
type Stage string

const (
	StageCollectingURLs    Stage = "COLLECTING_URLS"
	StageExtractingDetails Stage = "EXTRACTING_DETAILS"
	StageValidating        Stage = "VALIDATING"
	StagePersisting        Stage = "PERSISTING"
	StageDone              Stage = "DONE"
)

// ProgressFunc observes a run. detail is human-readable.
type ProgressFunc func(stage Stage, detail string)

// Validator scores a normalized record.
type Validator interface {
	Validate(p *models.NormalizedProperty) models.ValidationResult
}

// Options tune a SourceScraper.
type Options struct {
	// RequestDelay is the minimum spacing between any two page loads of the run.
	RequestDelay time.Duration
	Progress     ProgressFunc
}

// SourceScraper drives one source through crawl, extraction, normalization
// and validation. Detail pages are fetched one at a time on a single page.
type SourceScraper struct {
	src       *config.SourceConfig
	validator Validator
	logger    *utils.Logger
	progress  ProgressFunc
	crawler   *ListingCrawler
	extractor *DetailExtractor
}

// Batch is the outcome of a run, ready for persistence.
type Batch struct {
	Source     string
	Records    []*models.NormalizedProperty
	Discovered int // detail URLs found by the crawl
	Failed     int // detail pages that could not be loaded or parsed
	Dropped    int // records rejected as unusable
	Validation models.ValidationStats
	Images     models.ImageStats
}

// New creates a SourceScraper for src using page for every load.
func New(src *config.SourceConfig, page Page, validator Validator, logger *utils.Logger, opts Options) *SourceScraper {
	progress := opts.Progress
	if progress == nil {
		progress = func(stage Stage, detail string) {
			logger.Debug("%s: %s", stage, detail)
		}
	}
	pacer := utils.NewPacer(opts.RequestDelay)

	return &SourceScraper{
		src:       src,
		validator: validator,
		logger:    logger,
		progress:  progress,
		crawler:   NewListingCrawler(src, page, pacer, logger, progress),
		extractor: NewDetailExtractor(src, page, pacer),
	}
}

// Run crawls up to maxPages listing pages from searchURL and extracts every
// discovered detail page. Per-URL failures are logged and skipped; only a
// cancelled ctx aborts the run, returning what was gathered so far.
func (s *SourceScraper) Run(ctx context.Context, searchURL string, maxPages int) (*Batch, error) {
	batch := &Batch{Source: s.src.Name}

	s.progress(StageCollectingURLs, fmt.Sprintf("%s, up to %d pages", searchURL, maxPages))
	links, err := s.crawler.Crawl(ctx, searchURL, maxPages)
	if err != nil {
		return batch, fmt.Errorf("collect urls: %w", err)
	}
	urls := links.URLs()
	batch.Discovered = len(urls)
	s.logger.Info("Collected %d unique detail URLs", len(urls))

	for i, u := range urls {
		s.progress(StageExtractingDetails, fmt.Sprintf("[%d/%d] %s", i+1, len(urls), u))

		raw, err := s.extractor.Extract(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			batch.Failed++
			s.logger.Warn("Detail page failed for %s: %v", u, err)
			continue
		}
		raw.HeroImage = links.Value(u)

		prop, err := Normalize(s.src, raw)
		if err != nil {
			if errors.Is(err, ErrUnusable) {
				batch.Dropped++
				s.logger.Warn("Skipping %s: %v", u, err)
				continue
			}
			batch.Failed++
			s.logger.Warn("Normalize failed for %s: %v", u, err)
			continue
		}

		s.progress(StageValidating, u)
		result := s.validator.Validate(prop)
		prop.Validation = &result
		if result.IsValid {
			batch.Validation.Valid++
		} else {
			batch.Validation.Invalid++
			s.logger.Debug("Flagged %s for review: %v", u, result.Errors)
		}

		batch.Records = append(batch.Records, prop)
	}

	batch.Validation.Total = len(batch.Records)
	batch.Images = imageStats(batch.Records)

	s.logger.Info("Extracted %d records (%d failed, %d dropped), %d valid, %d flagged",
		len(batch.Records), batch.Failed, batch.Dropped, batch.Validation.Valid, batch.Validation.Invalid)
	return batch, nil
}

func imageStats(records []*models.NormalizedProperty) models.ImageStats {
	var stats models.ImageStats
	if len(records) == 0 {
		return stats
	}
	total := 0
	for _, r := range records {
		if len(r.Images) > 0 {
			stats.WithImages++
		}
		total += len(r.Images)
	}
	stats.AvgImagesPerProperty = math.Round(float64(total)/float64(len(records))*100) / 100
	return stats
}
