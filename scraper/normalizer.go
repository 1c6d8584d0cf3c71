package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"prospect-scraper/config"
	"prospect-scraper/models"
)

// ErrUnusable marks a record that cannot be kept at all (no URL, no price).
var ErrUnusable = errors.New("unusable record")

// Property type categories.
const (
	TypeHouse      = "House/Villa"
	TypeApartment  = "Apartment"
	TypeLand       = "Land"
	TypeBuilding   = "Building"
	TypeProperty   = "Property"
	TypeCommercial = "Commercial"
	TypeParking    = "Parking"
)

// propertyTypes is checked in order; the first keyword found wins, so
// "Maison avec terrain" is a house, not land.
var propertyTypes = []struct {
	keywords []string
	category string
}{
	{[]string{"maison", "villa", "mas", "bastide", "pavillon", "chalet", "house"}, TypeHouse},
	{[]string{"appartement", "studio", "duplex", "loft", "triplex", "apartment", "flat"}, TypeApartment},
	{[]string{"immeuble", "building"}, TypeBuilding},
	{[]string{"propriete", "propriété", "domaine", "chateau", "château", "estate"}, TypeProperty},
	{[]string{"local commercial", "commerce", "bureau", "fonds de commerce"}, TypeCommercial},
	{[]string{"parking", "garage", "box"}, TypeParking},
	{[]string{"terrain", "land", "plot"}, TypeLand},
}

var poolKeywords = []string{"piscine", "pool"}

// ClassifyPropertyType maps free text to a category, or "" when nothing matches.
func ClassifyPropertyType(text string) string {
	words := tokenize(text)
	joined := " " + strings.Join(words, " ") + " "
	for _, pt := range propertyTypes {
		for _, kw := range pt.keywords {
			if strings.Contains(joined, " "+kw+" ") {
				return pt.category
			}
		}
	}
	return ""
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
}

// Normalize maps a raw extraction into the canonical schema. Records without
// a URL or a positive price are rejected with ErrUnusable.
func Normalize(src *config.SourceConfig, raw *models.RawExtraction) (*models.NormalizedProperty, error) {
	if raw == nil || strings.TrimSpace(raw.URL) == "" {
		return nil, fmt.Errorf("%w: missing url", ErrUnusable)
	}
	price, ok := parsePrice(raw.PriceText)
	if !ok || price <= 0 {
		return nil, fmt.Errorf("%w: no price in %q", ErrUnusable, raw.PriceText)
	}

	items := raw.ListItems
	p := &models.NormalizedProperty{
		URL:           strings.TrimSpace(raw.URL),
		Reference:     countString(items["reference"]),
		Title:         normaliseText(raw.Title),
		Description:   normaliseText(raw.Description),
		Price:         price,
		HeatingSystem: items["heating_system"],
		Images:        mergeImages(raw.HeroImage, raw.Images),
		ScrapedAt:     raw.ScrapedAt,
	}

	p.BuildingSurface = amountField(items["building_surface"])
	p.LandSurface = amountField(items["land_surface"])
	p.Rooms = countField(items["rooms"])
	p.Bedrooms = countField(items["bedrooms"])
	p.Bathrooms = countField(items["bathrooms"])
	p.Floors = countField(items["floors"])
	if m := yearRegexp.FindStringSubmatch(items["year_built"]); len(m) > 1 {
		p.YearBuilt = countField(m[1])
	}

	p.PropertyType = propertyType(src, p)
	p.Pool = containsAny(p.Title+" "+p.Description, poolKeywords)
	p.LocationCity, p.LocationDepartment, p.LocationPostalCode = resolveLocation(src, raw)

	return p, nil
}

func propertyType(src *config.SourceConfig, p *models.NormalizedProperty) string {
	for _, from := range src.PropertyTypeFrom {
		var text string
		switch from {
		case "url":
			// only the slug: section paths like /propriete/ name every listing
			if u, err := url.Parse(p.URL); err == nil {
				text = path.Base(strings.TrimRight(u.Path, "/"))
			}
		case "title":
			text = p.Title
		}
		if t := ClassifyPropertyType(text); t != "" {
			return t
		}
	}
	return ""
}

// resolveLocation applies the source's location strategy and falls back to
// the source's operating-region defaults.
func resolveLocation(src *config.SourceConfig, raw *models.RawExtraction) (city, department, postal string) {
	rules := src.Location
	items := raw.ListItems

	switch rules.Strategy {
	case "breadcrumb":
		// trail ends with the most specific place: "..., Var, Hyères (83400)"
		for i := len(raw.Breadcrumb) - 1; i >= 0 && (city == "" || postal == ""); i-- {
			crumb := raw.Breadcrumb[i]
			if strings.EqualFold(crumb, raw.Title) {
				continue
			}
			if m := postalCodeRegexp.FindStringSubmatch(crumb); len(m) > 1 && postal == "" {
				postal = m[1]
				if city == "" {
					city = cleanPlace(postalCodeRegexp.ReplaceAllString(crumb, ""))
				}
			}
		}
		for i := len(raw.Breadcrumb) - 1; i >= 0 && city == ""; i-- {
			crumb := cleanPlace(raw.Breadcrumb[i])
			if strings.EqualFold(crumb, raw.Title) || genericCrumbs[strings.ToLower(crumb)] {
				continue
			}
			// listing labels ("Villa 5 pièces avec piscine") are not places
			if ClassifyPropertyType(crumb) != "" || strings.ContainsAny(crumb, "0123456789") {
				continue
			}
			if dep := departmentNamed(rules, crumb); dep != "" {
				if department == "" {
					department = dep
				}
				continue
			}
			city = crumb
		}
	case "url_slug":
		if re := src.SlugRe(); re != nil {
			if m := re.FindStringSubmatch(raw.URL); len(m) > 1 {
				city = placeFromSlug(m[1])
			}
		}
	}

	// list items are read by every strategy when present
	if v := items["city"]; v != "" && city == "" {
		city = cleanPlace(v)
	}
	if m := postalCodeRegexp.FindStringSubmatch(items["postal_code"]); len(m) > 1 && postal == "" {
		postal = m[1]
	}
	if postal == "" {
		if m := postalCodeRegexp.FindStringSubmatch(raw.Title); len(m) > 1 {
			postal = m[1]
		}
	}

	if postal != "" {
		if dep := rules.Departments[postal[:2]]; dep != "" {
			department = dep
		}
	}
	if city == "" {
		city = rules.DefaultCity
	}
	if department == "" {
		department = rules.DefaultDepartment
	}
	if postal == "" {
		postal = rules.DefaultPostalCode
	}
	return city, department, postal
}

func departmentNamed(rules config.LocationRules, name string) string {
	for _, dep := range rules.Departments {
		if strings.EqualFold(dep, name) {
			return dep
		}
	}
	return ""
}

// genericCrumbs are navigation entries, never place names.
var genericCrumbs = map[string]bool{
	"accueil": true, "home": true, "acheter": true, "achat": true, "vente": true,
	"ventes": true, "annonces": true, "biens": true, "nos biens": true, "louer": true,
	"location": true, "immobilier": true,
}

// smallWords stay lower case inside composed place names.
var smallWords = map[string]bool{
	"en": true, "de": true, "du": true, "des": true, "la": true, "le": true,
	"les": true, "sur": true, "sous": true, "et": true, "aux": true,
}

// placeFromSlug turns "aix-en-provence" into "Aix-en-Provence".
func placeFromSlug(slug string) string {
	parts := strings.Split(strings.Trim(strings.ToLower(slug), "-"), "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i > 0 && smallWords[part] {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, "-")
}

func cleanPlace(s string) string {
	s = strings.Trim(normaliseText(s), " ()-,")
	return s
}

func countField(raw string) *int {
	n, ok := parseCount(raw)
	if !ok {
		return nil
	}
	return &n
}

func amountField(raw string) *float64 {
	v, ok := parseAmount(raw)
	if !ok {
		return nil
	}
	return &v
}

func countString(raw string) string {
	return digitsRegexp.FindString(raw)
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
