package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"prospect-scraper/config"
	"prospect-scraper/models"
	"prospect-scraper/utils"
)

// DetailExtractor loads one detail page and reads the source's fields out of it.
type DetailExtractor struct {
	src   *config.SourceConfig
	page  Page
	pacer *utils.Pacer
}

// NewDetailExtractor creates an extractor bound to one page.
func NewDetailExtractor(src *config.SourceConfig, page Page, pacer *utils.Pacer) *DetailExtractor {
	if pacer == nil {
		pacer = utils.NewPacer(0)
	}
	return &DetailExtractor{src: src, page: page, pacer: pacer}
}

// Extract navigates to detailURL and returns its raw fields.
func (e *DetailExtractor) Extract(ctx context.Context, detailURL string) (*models.RawExtraction, error) {
	if err := e.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	if err := e.page.Navigate(ctx, detailURL); err != nil {
		return nil, err
	}
	html, err := e.page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractDetail(e.src, detailURL, html)
}

// ExtractDetail runs the source's extraction rules against a detail page.
func ExtractDetail(src *config.SourceConfig, detailURL, html string) (*models.RawExtraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail html: %w", err)
	}
	root := doc.Selection

	raw := &models.RawExtraction{
		URL:         detailURL,
		Title:       firstText(root, src.DetailSelectors.Title),
		PriceText:   firstText(root, src.DetailSelectors.Price),
		Description: firstText(root, src.DetailSelectors.Description),
		Breadcrumb:  allTexts(root, src.DetailSelectors.Breadcrumb),
		ListItems:   scanListItems(root, src.ListItemSelector, src.ListItemKeywords),
		Images:      newImageFilter(src.Images, detailURL).gallery(root),
		ScrapedAt:   time.Now(),
	}

	// Some templates only put the price in a meta tag.
	if raw.PriceText == "" {
		if v, ok := root.Find(`meta[itemprop="price"], meta[property="product:price:amount"]`).First().Attr("content"); ok {
			raw.PriceText = v
		}
	}
	if raw.Title == "" {
		raw.Title = normaliseText(root.Find("title").First().Text())
	}

	return raw, nil
}
