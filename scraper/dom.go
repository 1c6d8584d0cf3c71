package scraper

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var (
	// digitsRegexp captures the first run of digits
	digitsRegexp = regexp.MustCompile(`\d+`)
	// amountRegexp captures a number with thousands separators and an optional decimal comma
	amountRegexp = regexp.MustCompile(`\d[\d \x{00a0}\x{202f}.]*(?:,\d+)?`)
	// postalCodeRegexp captures a French postal code
	postalCodeRegexp = regexp.MustCompile(`\b(\d{5})\b`)
	// yearRegexp captures a plausible construction year
	yearRegexp = regexp.MustCompile(`\b(1[6-9]\d{2}|20\d{2})\b`)
	// trailingNumberRegexp captures a number closing a label's prefix: "3 pièces dont 2"
	trailingNumberRegexp = regexp.MustCompile(`\d[\d\x{00a0}\x{202f} .,]*$`)
)

// listItemFields is the order in which list items are claimed. More specific
// labels go first so "Surface du terrain" is not taken as the living surface.
var listItemFields = []string{
	"reference",
	"year_built",
	"land_surface",
	"building_surface",
	"bedrooms",
	"bathrooms",
	"rooms",
	"floors",
	"heating_system",
	"postal_code",
	"city",
}

// firstText tries each selector in turn and returns the first non-empty text.
func firstText(doc *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = normaliseText(s.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// allTexts returns the texts of the first selector that matches anything.
func allTexts(doc *goquery.Selection, selectors []string) []string {
	for _, sel := range selectors {
		var out []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if t := normaliseText(s.Text()); t != "" {
				out = append(out, t)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// scanListItems matches every candidate list item against the keyword table,
// case-insensitively. Each field keeps its first matching item. An item whose
// value follows its label is claimed by that field alone; an item read as
// "<number> <label>" stays open so "3 pièces dont 2 chambres" feeds both
// rooms and bedrooms.
func scanListItems(doc *goquery.Selection, selector string, keywords map[string][]string) map[string]string {
	var items []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := normaliseText(s.Text()); t != "" {
			items = append(items, t)
		}
	})

	found := make(map[string]string)
	claimed := make([]bool, len(items))

	fields := orderedFields(keywords)
	for _, field := range fields {
		for i, item := range items {
			if claimed[i] {
				continue
			}
			if kw := matchKeyword(item, keywords[field]); kw != "" {
				value, before := labelValue(item, kw)
				found[field] = value
				claimed[i] = !before
				break
			}
		}
	}
	return found
}

// orderedFields returns the known fields first, in claim order, then any
// source-specific extras alphabetically.
func orderedFields(keywords map[string][]string) []string {
	fields := make([]string, 0, len(keywords))
	known := make(map[string]bool, len(listItemFields))
	for _, f := range listItemFields {
		known[f] = true
		if _, ok := keywords[f]; ok {
			fields = append(fields, f)
		}
	}
	var extra []string
	for f := range keywords {
		if !known[f] {
			extra = append(extra, f)
		}
	}
	sort.Strings(extra)
	return append(fields, extra...)
}

func matchKeyword(text string, keywords []string) string {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return kw
		}
	}
	return ""
}

// labelValue returns the value tied to the matched label and whether it was
// read in front of the label. "Chauffage : Gaz au sol" -> "Gaz au sol",
// "3 pièces dont 2 chambres" with "chambres" -> "2". When the label carries no
// value on either side the whole text is kept.
func labelValue(text, keyword string) (string, bool) {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(keyword))
	if idx < 0 || idx+len(keyword) > len(text) {
		return text, false
	}

	head := strings.TrimRight(text[:idx], " \u00a0\u202f:")
	if m := trailingNumberRegexp.FindString(head); m != "" {
		return strings.TrimSpace(m), true
	}

	rest := text[idx+len(keyword):]
	// the keyword may be the prefix of a longer word ("chambre" in "chambres")
	rest = strings.TrimLeftFunc(rest, unicode.IsLetter)
	rest = strings.TrimLeft(rest, " \u00a0:-–")
	if rest == "" {
		return text, false
	}
	return strings.TrimSpace(rest), false
}

// parseCount returns the first run of digits as an int.
func parseCount(raw string) (int, bool) {
	m := digitsRegexp.FindString(raw)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseAmount strips currency symbols and thousands separators:
// "1 250 000 €" -> 1250000, "€450.000" -> 450000, "120,5 m²" -> 120.5.
// A dot is a thousands separator only before a group of exactly three digits,
// so "85.5 m²" and machine-formatted "350000.00" keep their decimals.
func parseAmount(raw string) (float64, bool) {
	m := amountRegexp.FindString(raw)
	if m == "" {
		return 0, false
	}
	m = strings.TrimRight(m, " \u00a0\u202f.")
	m = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(m)

	if dot := strings.LastIndex(m, "."); dot >= 0 && !strings.Contains(m, ",") && len(m)-dot-1 != 3 {
		m = strings.ReplaceAll(m[:dot], ".", "") + m[dot:]
	} else {
		m = strings.ReplaceAll(m, ".", "")
		m = strings.Replace(m, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parsePrice returns a whole-euro price, or false when none is readable.
func parsePrice(raw string) (int64, bool) {
	v, ok := parseAmount(raw)
	if !ok {
		return 0, false
	}
	return int64(v), true
}

// resolveURL makes href absolute against base.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	u.Fragment = ""
	return u.String()
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
