package scraper

import (
	"context"
	"errors"
	"time"
)

// ErrNavigation wraps any failure to load or read a page.
var ErrNavigation = errors.New("navigation failed")

// Page is the browser capability the crawl engine drives. Implementations own
// the per-navigation timeout and the settle delay after a load.
type Page interface {
	// Navigate loads url and returns once the content has settled.
	Navigate(ctx context.Context, url string) error
	// HTML returns the current DOM serialised as HTML.
	HTML(ctx context.Context) (string, error)
	// Scroll walks to the bottom of the page and back to trigger lazy images.
	Scroll(ctx context.Context) error
}

// Session is one browser (or fetcher) scoped to a single scrape run.
// Close must be called on every exit path.
type Session interface {
	Page() Page
	Close() error
}

// Launcher starts sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// PageOptions tune page loads.
type PageOptions struct {
	NavTimeout  time.Duration
	SettleDelay time.Duration
	UserAgent   string
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func (o PageOptions) withDefaults() PageOptions {
	if o.NavTimeout <= 0 {
		o.NavTimeout = 30 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	return o
}
