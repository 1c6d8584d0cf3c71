package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeLauncher starts a headless Chrome per scrape run.
type ChromeLauncher struct {
	ChromeBin string
	Headful   bool
	Options   PageOptions
}

// Launch starts the browser. A failure here is fatal for the run.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	opts := l.Options.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !l.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(opts.UserAgent),
	)
	if bin := findChromeBinary(l.ChromeBin); bin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// An empty Run starts the browser process so launch errors surface now.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("chromedp: launch browser: %w", err)
	}

	return &chromeSession{
		page:          &ChromePage{ctx: browserCtx, opts: opts},
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

type chromeSession struct {
	page          *ChromePage
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func (s *chromeSession) Page() Page { return s.page }

// Close shuts the browser down and kills the process.
func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.page.ctx)
	s.cancelBrowser()
	s.cancelAlloc()
	if err != nil && err != context.Canceled {
		return fmt.Errorf("chromedp: close browser: %w", err)
	}
	return nil
}

// ChromePage drives the single tab of a chromeSession.
type ChromePage struct {
	ctx  context.Context
	opts PageOptions
}

// Navigate loads url within the navigation budget, waits for the body and
// then for the settle delay so client-rendered content can populate.
func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(p.ctx, p.opts.NavTimeout)
	defer cancel()

	err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(p.opts.SettleDelay),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	return nil
}

// HTML returns the serialised document.
func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	tctx, cancel := context.WithTimeout(p.ctx, p.opts.NavTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(tctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%w: read DOM: %v", ErrNavigation, err)
	}
	return html, nil
}

// Scroll goes to the bottom then back to the top, pausing so lazy images load.
func (p *ChromePage) Scroll(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(p.ctx, p.opts.NavTimeout)
	defer cancel()

	err := chromedp.Run(tctx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(time.Second),
		chromedp.Evaluate(`window.scrollTo(0, 0)`, nil),
		chromedp.Sleep(500*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("%w: scroll: %v", ErrNavigation, err)
	}
	return nil
}

// findChromeBinary locates Chrome/Chromium, preferring an explicit path.
func findChromeBinary(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
