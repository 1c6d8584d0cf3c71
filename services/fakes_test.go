package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"prospect-scraper/config"
	"prospect-scraper/models"
	"prospect-scraper/scraper"
	"prospect-scraper/storage"
	"prospect-scraper/utils"
)

const agencyYAML = `
name: agency
base_url: https://agency.test
search_url: https://agency.test/acheter
listing_link_pattern: '/propriete/[^/?#]+'
card_selector: '.card'
detail_selectors:
  title: ['h1']
  price: ['.price']
list_item_selector: '.features li'
list_item_keywords:
  rooms: ['pièces']
images:
  container_selectors: ['.gallery']
reference_pattern: '/propriete/(?:[a-z0-9-]+-)?(\d+)(?:[/?#]|$)'
location:
  strategy: breadcrumb
  default_department: Var
  default_postal_code: '83000'
`

func agencySources(t *testing.T) config.Sources {
	t.Helper()
	src, err := config.ParseSource([]byte(agencyYAML))
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	return config.Sources{src.Name: src}
}

func quietLogger() *utils.Logger {
	return utils.NewLoggerTo(io.Discard)
}

func newSQLiteStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// site is a canned set of pages shared by every session of a fakeLauncher.
type site struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]bool
}

func newSite() *site {
	return &site{pages: make(map[string]string), fail: make(map[string]bool)}
}

func (s *site) listing(url string, hrefs ...string) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<div class="card"><a href="%s">Voir</a></div>`, h)
	}
	b.WriteString("</body></html>")
	s.pages[url] = b.String()
}

func (s *site) detail(url, title, price string) {
	s.pages[url] = `<html><body><h1>` + title + `</h1><div class="price">` + price + `</div>
<ul class="features"><li>Pièces : 4</li></ul></body></html>`
}

type fakePage struct {
	site    *site
	current string
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if _, ok := p.site.pages[url]; !ok || p.site.fail[url] {
		return fmt.Errorf("%w: %s", scraper.ErrNavigation, url)
	}
	p.current = url
	return nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	return p.site.pages[p.current], nil
}

func (p *fakePage) Scroll(ctx context.Context) error { return nil }

type fakeSession struct {
	page   *fakePage
	closed *int
}

func (s *fakeSession) Page() scraper.Page { return s.page }

func (s *fakeSession) Close() error {
	*s.closed++
	return nil
}

type fakeLauncher struct {
	site     *site
	err      error
	launches int
	closed   int
}

func (l *fakeLauncher) Launch(ctx context.Context) (scraper.Session, error) {
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	return &fakeSession{page: &fakePage{site: l.site}, closed: &l.closed}, nil
}

// failingStore rejects upserts of the listed source ids.
type failingStore struct {
	storage.PropertyStore
	pingErr error
	reject  map[string]bool
	rows    []*models.PersistedProperty
}

func (s *failingStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *failingStore) UpsertByKey(ctx context.Context, row *models.PersistedProperty) (int64, error) {
	if s.reject[row.SourceID] {
		return 0, errors.New("constraint violation")
	}
	s.rows = append(s.rows, row)
	return int64(len(s.rows)), nil
}
