package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
)

// StaticLauncher serves sources whose pages are fully server-rendered, so no
// browser is needed.
type StaticLauncher struct {
	Options PageOptions
}

// Launch prepares a collector. It never starts a process.
func (l *StaticLauncher) Launch(ctx context.Context) (Session, error) {
	opts := l.Options.withDefaults()

	c := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(opts.NavTimeout)

	return &staticSession{page: &StaticPage{collector: c, opts: opts}}, nil
}

type staticSession struct {
	page *StaticPage
}

func (s *staticSession) Page() Page   { return s.page }
func (s *staticSession) Close() error { return nil }

// StaticPage fetches pages over plain HTTP and keeps the last body.
type StaticPage struct {
	collector *colly.Collector
	opts      PageOptions
	body      string
}

// Navigate fetches url. Non-2xx responses are navigation failures.
func (p *StaticPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := p.collector.Clone()
	c.SetRequestTimeout(p.opts.NavTimeout)

	var body string
	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("status %d: %v", r.StatusCode, err)
	})

	if err := c.Visit(url); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, fetchErr)
	}

	p.body = body
	if p.opts.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.opts.SettleDelay):
		}
	}
	return nil
}

// HTML returns the last fetched body.
func (p *StaticPage) HTML(ctx context.Context) (string, error) {
	return p.body, nil
}

// Scroll is a no-op: static pages have no lazy loading to trigger.
func (p *StaticPage) Scroll(ctx context.Context) error { return nil }
