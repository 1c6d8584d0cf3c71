package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"prospect-scraper/config"
)

// imageFilter applies a source's image rules to candidate URLs.
type imageFilter struct {
	rules config.ImageRules
	base  *url.URL
}

func newImageFilter(rules config.ImageRules, pageURL string) *imageFilter {
	base, _ := url.Parse(pageURL)
	return &imageFilter{rules: rules, base: base}
}

// source reads the first usable attribute of an <img>. srcset values
// contribute their first candidate.
func (f *imageFilter) source(img *goquery.Selection) string {
	for _, attr := range f.rules.Attributes {
		v, ok := img.Attr(attr)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if attr == "srcset" || attr == "data-srcset" {
			v = firstSrcsetCandidate(v)
		}
		if v == "" || strings.HasPrefix(v, "data:") {
			continue
		}
		return v
	}
	return ""
}

func firstSrcsetCandidate(srcset string) string {
	first := strings.Split(srcset, ",")[0]
	if fields := strings.Fields(first); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// accept resolves and filters one <img>, returning "" when it is rejected.
func (f *imageFilter) accept(img *goquery.Selection) string {
	raw := f.source(img)
	if raw == "" {
		return ""
	}
	abs := resolveURL(f.base, raw)
	if abs == "" {
		return ""
	}

	lower := strings.ToLower(abs)
	if f.rules.LogoAssetHash != "" && strings.Contains(lower, strings.ToLower(f.rules.LogoAssetHash)) {
		return ""
	}
	for _, ex := range f.rules.Exclude {
		if ex != "" && strings.Contains(lower, strings.ToLower(ex)) {
			return ""
		}
	}
	if f.rules.Host != "" {
		u, err := url.Parse(abs)
		if err != nil || !onHost(u.Hostname(), f.rules.Host) {
			return ""
		}
	}
	if f.rules.MinWidth > 0 {
		if w, ok := img.Attr("width"); ok {
			if n, err := strconv.Atoi(strings.TrimSuffix(w, "px")); err == nil && n < f.rules.MinWidth {
				return ""
			}
		}
	}
	return f.upgrade(abs)
}

// onHost reports whether hostname is host or one of its subdomains.
func onHost(hostname, host string) bool {
	hostname, host = strings.ToLower(hostname), strings.ToLower(host)
	return hostname == host || strings.HasSuffix(hostname, "."+host)
}

// upgrade swaps a low-resolution CDN path segment for the high-resolution one.
func (f *imageFilter) upgrade(u string) string {
	if f.rules.UpgradeFrom == "" || f.rules.UpgradeTo == "" {
		return u
	}
	return strings.Replace(u, f.rules.UpgradeFrom, f.rules.UpgradeTo, 1)
}

// gallery collects images from the configured containers in document order.
func (f *imageFilter) gallery(doc *goquery.Selection) []string {
	var out []string
	for _, sel := range f.rules.ContainerSelectors {
		doc.Find(sel).Find("img").Each(func(_ int, img *goquery.Selection) {
			if u := f.accept(img); u != "" {
				out = append(out, u)
			}
		})
	}
	return dedupe(out)
}

// hero returns the first acceptable image inside a listing card.
func (f *imageFilter) hero(card *goquery.Selection) string {
	var found string
	card.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		found = f.accept(img)
		return found == ""
	})
	return found
}

// mergeImages puts hero first and drops repeats, keeping first-seen order.
func mergeImages(hero string, gallery []string) []string {
	all := make([]string, 0, len(gallery)+1)
	if hero != "" {
		all = append(all, hero)
	}
	return dedupe(append(all, gallery...))
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
