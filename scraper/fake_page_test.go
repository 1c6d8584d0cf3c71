package scraper

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"prospect-scraper/config"
	"prospect-scraper/utils"
)

// fakePage serves canned HTML per URL. URLs in fail return a navigation
// error; unknown URLs do too.
type fakePage struct {
	pages   map[string]string
	fail    map[string]bool
	visited []string
	scrolls int
	current string
}

func newFakePage() *fakePage {
	return &fakePage{pages: make(map[string]string), fail: make(map[string]bool)}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.visited = append(p.visited, url)
	if p.fail[url] {
		return fmt.Errorf("%w: %s: timeout", ErrNavigation, url)
	}
	if _, ok := p.pages[url]; !ok {
		return fmt.Errorf("%w: %s: 404", ErrNavigation, url)
	}
	p.current = url
	return nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	return p.pages[p.current], nil
}

func (p *fakePage) Scroll(ctx context.Context) error {
	p.scrolls++
	return nil
}

const testSourceYAML = `
name: Agency
base_url: https://agency.test
search_url: https://agency.test/acheter
pagination:
  mode: query
  param: page
listing_link_pattern: '/propriete/[^/?#]+'
card_selector: '.card'
detail_selectors:
  title: ['h1.title', 'h1']
  price: ['.price']
  description: ['.description']
  breadcrumb: ['.breadcrumb li']
list_item_selector: '.features li'
list_item_keywords:
  reference: ['référence']
  building_surface: ['surface habitable']
  land_surface: ['surface du terrain', 'terrain']
  rooms: ['pièces']
  bedrooms: ['chambres', 'chambre']
  bathrooms: ['salle de bain']
  year_built: ['année de construction']
  heating_system: ['chauffage']
  postal_code: ['code postal']
  city: ['ville']
images:
  container_selectors: ['.gallery']
  attributes: ['data-src', 'src']
  logo_asset_hash: 'abc123'
  host: 'cdn.agency.test'
  min_width: 300
  upgrade_from: '/thumb/'
  upgrade_to: '/large/'
reference_pattern: '/propriete/(?:[a-z0-9-]+-)?(\d+)(?:[/?#]|$)'
location:
  strategy: breadcrumb
  default_department: Var
  default_postal_code: '83000'
  departments:
    '83': Var
    '06': Alpes-Maritimes
`

func testSource(t *testing.T) *config.SourceConfig {
	t.Helper()
	src, err := config.ParseSource([]byte(testSourceYAML))
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	return src
}

func quietLogger() *utils.Logger {
	return utils.NewLoggerTo(io.Discard)
}

type card struct {
	href string
	img  string
}

func listingHTML(cards ...card) string {
	var b strings.Builder
	b.WriteString(`<html><body><header><a href="/">Accueil</a><img src="https://cdn.agency.test/assets/abc123.png"></header><main>`)
	for _, c := range cards {
		b.WriteString(`<div class="card">`)
		if c.img != "" {
			fmt.Fprintf(&b, `<img src="%s" width="400">`, c.img)
		}
		fmt.Fprintf(&b, `<a href="%s">Voir le bien</a></div>`, c.href)
	}
	b.WriteString(`</main><footer><a href="/contact">Contact</a></footer></body></html>`)
	return b.String()
}

func detailHTML(title, price string, gallery ...string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Agency</title></head><body>
<ul class="breadcrumb"><li>Accueil</li><li>Var</li><li>Hyères (83400)</li><li>` + title + `</li></ul>
<h1 class="title">` + title + `</h1>
<div class="price">` + price + `</div>
<div class="description">Belle villa provençale avec piscine chauffée.</div>
<ul class="features">
<li>Référence : 4521</li>
<li>Surface habitable : 145 m²</li>
<li>Surface du terrain : 1 200 m²</li>
<li>Pièces : 6</li>
<li>Chambres : 4</li>
<li>Salle de bain : 2</li>
<li>Année de construction : 1998</li>
<li>Chauffage : Pompe à chaleur</li>
</ul>
<div class="gallery">`)
	for _, img := range gallery {
		fmt.Fprintf(&b, `<img src="%s">`, img)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}
