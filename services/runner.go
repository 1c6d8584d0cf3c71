package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"prospect-scraper/config"
	"prospect-scraper/models"
	"prospect-scraper/scraper"
	"prospect-scraper/storage"
	"prospect-scraper/utils"
)

// RunnerOptions tune every run started by a Runner.
type RunnerOptions struct {
	RequestDelay time.Duration
	MaxPages     int // used when neither the caller nor the source sets one
	MaxParallel  int // sources scraped at once by RunAll
	Retry        *utils.RetryConfig
	// Progress, when set, observes every run. The source name is passed first.
	Progress func(source string, stage scraper.Stage, detail string)
}

// Runner is the trigger surface of the ingestion pipeline: it resolves a
// source, owns the page session of each run and persists the batch.
type Runner struct {
	sources   config.Sources
	launchers map[string]scraper.Launcher // keyed by render mode
	validator *Validator
	upserter  *Upserter
	csv       storage.BatchWriter
	logger    *utils.Logger
	opts      RunnerOptions
}

// NewRunner wires a Runner. csv may be nil.
func NewRunner(sources config.Sources, store storage.PropertyStore, launchers map[string]scraper.Launcher,
	csv storage.BatchWriter, logger *utils.Logger, opts RunnerOptions) *Runner {
	if opts.Retry == nil {
		opts.Retry = &utils.RetryConfig{MaxAttempts: 1, Logger: logger}
	}
	return &Runner{
		sources:   sources,
		launchers: launchers,
		validator: NewValidator(DefaultValidationRules()),
		upserter:  NewUpserter(store, logger),
		csv:       csv,
		logger:    logger,
		opts:      opts,
	}
}

// Sources lists the configured source names.
func (r *Runner) Sources() []string {
	return r.sources.Names()
}

// RunScrape scrapes one source and persists the result. An empty searchURL
// uses the source's search_url; maxPages <= 0 uses the configured default.
//
// Per-page failures only lower the counters. An unknown source, a session
// that cannot be started or an unreachable store fail the run: the returned
// report then has Success false and Message set, and the error is non-nil.
func (r *Runner) RunScrape(ctx context.Context, source, searchURL string, maxPages int) (*models.RunReport, error) {
	report := &models.RunReport{
		Source:    source,
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	fail := func(err error) (*models.RunReport, error) {
		report.Success = false
		report.Message = err.Error()
		report.FinishedAt = time.Now().UTC()
		return report, err
	}

	src, err := r.sources.Get(source)
	if err != nil {
		return fail(err)
	}
	report.Source = src.Name

	if searchURL == "" {
		searchURL = src.SearchURL
	}
	if maxPages <= 0 {
		maxPages = src.MaxPages
	}
	if maxPages <= 0 {
		maxPages = r.opts.MaxPages
	}

	logger := r.logger.With(src.Name)
	logger.Info("Run %s: %s, up to %d pages", report.RunID, searchURL, maxPages)
	progress := r.progressFor(src.Name, logger)

	batch, err := r.scrape(ctx, src, searchURL, maxPages, logger, progress)
	if err != nil {
		return fail(err)
	}
	report.TotalScraped = len(batch.Records)
	report.Validation = batch.Validation
	report.ImageStats = batch.Images

	if r.csv != nil && len(batch.Records) > 0 {
		if err := r.csv.WriteBatch(src.Name, batch.Records); err != nil {
			logger.Warn("CSV audit write failed: %v", err)
		}
	}

	progress(scraper.StagePersisting, fmt.Sprintf("%d records", len(batch.Records)))
	inserted, err := r.upserter.Upsert(ctx, src, report.RunID, batch.Records)
	report.Inserted = inserted
	if err != nil {
		return fail(fmt.Errorf("persist %s: %w", src.Name, err))
	}

	report.Success = true
	report.Message = fmt.Sprintf("scraped %d, persisted %d (%d failed, %d dropped)",
		report.TotalScraped, inserted, batch.Failed, batch.Dropped)
	report.FinishedAt = time.Now().UTC()
	progress(scraper.StageDone, report.Message)
	return report, nil
}

// scrape owns the page session; it is closed before persistence starts and
// on every error path.
func (r *Runner) scrape(ctx context.Context, src *config.SourceConfig, searchURL string, maxPages int,
	logger *utils.Logger, progress scraper.ProgressFunc) (*scraper.Batch, error) {
	launcher, ok := r.launchers[src.Render]
	if !ok {
		return nil, fmt.Errorf("no page launcher for render mode %q", src.Render)
	}

	var session scraper.Session
	err := r.opts.Retry.Do(ctx, "launch "+src.Render+" session", func() error {
		s, err := launcher.Launch(ctx)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("Session close failed: %v", err)
		}
	}()

	sc := scraper.New(src, session.Page(), r.validator, logger, scraper.Options{
		RequestDelay: r.opts.RequestDelay,
		Progress:     progress,
	})
	batch, err := sc.Run(ctx, searchURL, maxPages)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *Runner) progressFor(source string, logger *utils.Logger) scraper.ProgressFunc {
	if r.opts.Progress != nil {
		return func(stage scraper.Stage, detail string) {
			r.opts.Progress(source, stage, detail)
		}
	}
	return func(stage scraper.Stage, detail string) {
		logger.Info("%s %s", stage, detail)
	}
}

// RunAll scrapes every configured source on a bounded pool. Reports come back
// in source-name order; a failed source does not stop the others.
func (r *Runner) RunAll(ctx context.Context, maxPages int) []*models.RunReport {
	names := r.sources.Names()
	reports := make([]*models.RunReport, len(names))

	pool := utils.NewWorkerPool(r.opts.MaxParallel)
	for i, name := range names {
		i, name := i, name
		pool.Submit(func() {
			report, err := r.RunScrape(ctx, name, "", maxPages)
			if err != nil {
				r.logger.Error("Source %s failed: %v", name, err)
			}
			reports[i] = report
		})
	}
	pool.Wait()

	return reports
}
