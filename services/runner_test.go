package services

import (
	"context"
	"errors"
	"testing"

	"prospect-scraper/config"
	"prospect-scraper/scraper"
)

const (
	listing1 = "https://agency.test/acheter"
	listing2 = "https://agency.test/acheter?page=2"
	villa1   = "https://agency.test/propriete/villa-1"
	villa2   = "https://agency.test/propriete/villa-2"
	villa3   = "https://agency.test/propriete/villa-3"
)

func threeListingSite() *site {
	s := newSite()
	s.listing(listing1, villa1, villa2, villa3)
	s.listing(listing2)
	s.detail(villa1, "Villa 1", "350 000 €")
	s.detail(villa2, "Villa 2", "420 000 €")
	s.detail(villa3, "Villa 3", "515 000 €")
	s.fail[villa2] = true
	return s
}

func newTestRunner(t *testing.T, launcher *fakeLauncher, store *failingStore) (*Runner, *fakeLauncher) {
	t.Helper()
	launchers := map[string]scraper.Launcher{"browser": launcher}
	if store != nil {
		return NewRunner(agencySources(t), store, launchers, nil, quietLogger(), RunnerOptions{MaxPages: 3}), launcher
	}
	return NewRunner(agencySources(t), newSQLiteStore(t), launchers, nil, quietLogger(), RunnerOptions{MaxPages: 3}), launcher
}

func TestRunScrapeSkipsFailedDetail(t *testing.T) {
	launcher := &fakeLauncher{site: threeListingSite()}
	r, _ := newTestRunner(t, launcher, nil)

	report, err := r.RunScrape(context.Background(), "agency", "", 0)
	if err != nil {
		t.Fatalf("RunScrape: %v", err)
	}
	if !report.Success {
		t.Errorf("Success: got false (%s)", report.Message)
	}
	if report.TotalScraped != 2 {
		t.Errorf("TotalScraped: got %d, want 2", report.TotalScraped)
	}
	if report.Inserted != 2 {
		t.Errorf("Inserted: got %d, want 2", report.Inserted)
	}
	if report.Validation.Total != 2 || report.Validation.Valid != 2 {
		t.Errorf("Validation: got %+v", report.Validation)
	}
	if report.RunID == "" || report.FinishedAt.Before(report.StartedAt) {
		t.Errorf("run metadata: %+v", report)
	}
	if launcher.launches != 1 || launcher.closed != 1 {
		t.Errorf("session: %d launches, %d closes, want 1/1", launcher.launches, launcher.closed)
	}
}

func TestRunScrapeTwiceKeepsRowCount(t *testing.T) {
	store := newSQLiteStore(t)
	launcher := &fakeLauncher{site: threeListingSite()}
	r := NewRunner(agencySources(t), store, map[string]scraper.Launcher{"browser": launcher},
		nil, quietLogger(), RunnerOptions{MaxPages: 3})
	ctx := context.Background()

	first, err := r.RunScrape(ctx, "agency", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	countFirst, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}

	second, err := r.RunScrape(ctx, "agency", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	countSecond, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if countFirst != 2 || countSecond != 2 {
		t.Errorf("row count: %d then %d, want 2 both times", countFirst, countSecond)
	}
	if first.Inserted != second.Inserted {
		t.Errorf("inserted: %d then %d", first.Inserted, second.Inserted)
	}
	if first.RunID == second.RunID {
		t.Errorf("each run needs its own id")
	}
}

func TestRunScrapeLaunchFailure(t *testing.T) {
	launcher := &fakeLauncher{site: newSite(), err: errors.New("chrome not found")}
	r, _ := newTestRunner(t, launcher, nil)

	report, err := r.RunScrape(context.Background(), "agency", "", 0)
	if err == nil {
		t.Fatal("expected a fatal error when the session cannot start")
	}
	if report == nil || report.Success || report.Message == "" {
		t.Errorf("report: got %+v", report)
	}
	if launcher.closed != 0 {
		t.Errorf("nothing to close, got %d closes", launcher.closed)
	}
}

func TestRunScrapeStoreUnreachable(t *testing.T) {
	launcher := &fakeLauncher{site: threeListingSite()}
	store := &failingStore{pingErr: errors.New("connection refused")}
	r, _ := newTestRunner(t, launcher, store)

	report, err := r.RunScrape(context.Background(), "agency", "", 0)
	if err == nil {
		t.Fatal("expected a fatal error for an unreachable store")
	}
	if report.Success || report.TotalScraped != 2 {
		t.Errorf("report: got %+v", report)
	}
	if launcher.closed != 1 {
		t.Errorf("session must be released, got %d closes", launcher.closed)
	}
}

func TestRunScrapeUnknownSource(t *testing.T) {
	r, launcher := newTestRunner(t, &fakeLauncher{site: newSite()}, nil)

	_, err := r.RunScrape(context.Background(), "nope", "", 0)
	if !errors.Is(err, config.ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
	if launcher.launches != 0 {
		t.Errorf("no session should start for an unknown source")
	}
}

func TestRunAll(t *testing.T) {
	launcher := &fakeLauncher{site: threeListingSite()}
	r, _ := newTestRunner(t, launcher, nil)

	reports := r.RunAll(context.Background(), 0)
	if len(reports) != 1 {
		t.Fatalf("reports: got %d, want 1", len(reports))
	}
	if !reports[0].Success || reports[0].Source != "agency" {
		t.Errorf("report: got %+v", reports[0])
	}
}
