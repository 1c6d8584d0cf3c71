package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"prospect-scraper/config"
	"prospect-scraper/utils"
)

// ListingCrawler walks the paginated search results of one source and
// collects detail-page URLs, each with the hero image seen on its card.
type ListingCrawler struct {
	src      *config.SourceConfig
	page     Page
	pacer    *utils.Pacer
	logger   *utils.Logger
	progress ProgressFunc
}

// NewListingCrawler creates a crawler bound to one page.
func NewListingCrawler(src *config.SourceConfig, page Page, pacer *utils.Pacer, logger *utils.Logger, progress ProgressFunc) *ListingCrawler {
	if pacer == nil {
		pacer = utils.NewPacer(0)
	}
	if progress == nil {
		progress = func(Stage, string) {}
	}
	return &ListingCrawler{src: src, page: page, pacer: pacer, logger: logger, progress: progress}
}

// ListingLink is one detail link found on a listing page.
type ListingLink struct {
	URL  string
	Hero string
}

// Crawl visits pages 1..maxPages. It stops early on the first page without
// detail links (end of catalogue) or on a navigation error; links gathered
// before the stop are kept. Only a cancelled ctx produces an error.
func (c *ListingCrawler) Crawl(ctx context.Context, searchURL string, maxPages int) (*utils.LinkSet, error) {
	links := utils.NewLinkSet()

	for page := 1; page <= maxPages; page++ {
		pageURL, err := PageURL(c.src.Pagination, searchURL, page)
		if err != nil {
			return links, fmt.Errorf("build page %d url: %w", page, err)
		}

		if err := c.pacer.Wait(ctx); err != nil {
			return links, err
		}

		c.progress(StageCollectingURLs, fmt.Sprintf("page %d/%d: %s", page, maxPages, pageURL))

		found, err := c.crawlPage(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return links, ctx.Err()
			}
			c.logger.Error("Listing page %d failed, stopping pagination: %v", page, err)
			break
		}

		if len(found) == 0 {
			c.logger.Info("Listing page %d has no detail links, end of catalogue", page)
			break
		}

		added := 0
		for _, l := range found {
			if links.Add(l.URL, l.Hero) {
				added++
			} else {
				c.logger.Debug("Skipping duplicate: %s", l.URL)
			}
		}
		c.logger.Info("Listing page %d: %d links, %d new, %d collected so far",
			page, len(found), added, links.Size())
	}

	return links, nil
}

func (c *ListingCrawler) crawlPage(ctx context.Context, pageURL string) ([]ListingLink, error) {
	if err := c.page.Navigate(ctx, pageURL); err != nil {
		return nil, err
	}
	if c.src.ScrollListing {
		if err := c.page.Scroll(ctx); err != nil {
			c.logger.Warn("Scroll failed on %s: %v", pageURL, err)
		}
	}

	html, err := c.page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractListingLinks(c.src, pageURL, html)
}

// ExtractListingLinks finds anchors matching the source's detail pattern in
// a listing page, in document order.
func ExtractListingLinks(src *config.SourceConfig, pageURL, html string) ([]ListingLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	base, _ := url.Parse(pageURL)
	images := newImageFilter(src.Images, pageURL)
	pattern := src.LinkPattern()

	var links []ListingLink
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := resolveURL(base, href)
		if abs == "" || seen[abs] || !pattern.MatchString(abs) {
			return
		}
		seen[abs] = true

		card := a
		if src.CardSelector != "" {
			if closest := a.Closest(src.CardSelector); closest.Length() > 0 {
				card = closest
			}
		}
		links = append(links, ListingLink{URL: abs, Hero: images.hero(card)})
	})

	return links, nil
}

// PageURL addresses page k of a search. Page 1 is the search URL itself.
//
//	query: https://x/acheter        -> https://x/acheter?page=3
//	path:  https://x/vente/1        -> https://x/vente/3
//	       https://x/vente          -> https://x/vente/3
func PageURL(p config.Pagination, searchURL string, page int) (string, error) {
	u, err := url.Parse(searchURL)
	if err != nil {
		return "", err
	}
	if page <= 1 {
		return u.String(), nil
	}

	switch p.Mode {
	case "path":
		path := strings.TrimSuffix(u.Path, "/")
		segments := strings.Split(path, "/")
		last := segments[len(segments)-1]
		if _, err := strconv.Atoi(last); err == nil && len(segments) > 1 {
			segments[len(segments)-1] = strconv.Itoa(page)
		} else {
			segments = append(segments, strconv.Itoa(page))
		}
		u.Path = strings.Join(segments, "/")
		u.RawPath = ""
	default:
		param := p.Param
		if param == "" {
			param = "page"
		}
		q := u.Query()
		q.Set(param, strconv.Itoa(page))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
