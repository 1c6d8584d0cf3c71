package config

import (
	"fmt"
	"regexp"
)

// SourceConfig declares how one agency website is scraped. One generic engine
// consumes it; adding a source means adding a YAML file, not code.
type SourceConfig struct {
	Name          string `yaml:"name"`
	BaseURL       string `yaml:"base_url"`
	SearchURL     string `yaml:"search_url"`
	Render        string `yaml:"render"` // browser | static
	ScrollListing bool   `yaml:"scroll_listing"`
	MaxPages      int    `yaml:"max_pages"`

	Pagination         Pagination `yaml:"pagination"`
	ListingLinkPattern string     `yaml:"listing_link_pattern"`
	CardSelector       string     `yaml:"card_selector"`

	DetailSelectors  DetailSelectors     `yaml:"detail_selectors"`
	ListItemSelector string              `yaml:"list_item_selector"`
	ListItemKeywords map[string][]string `yaml:"list_item_keywords"`

	Images           ImageRules    `yaml:"images"`
	ReferencePattern string        `yaml:"reference_pattern"`
	PropertyTypeFrom []string      `yaml:"property_type_from"` // url, title
	Location         LocationRules `yaml:"location"`

	linkRe      *regexp.Regexp
	referenceRe *regexp.Regexp
	slugRe      *regexp.Regexp
}

// Pagination describes how page k of a search is addressed.
type Pagination struct {
	Mode  string `yaml:"mode"`  // query: ?param=k, path: trailing /k
	Param string `yaml:"param"` // query parameter name
}

// DetailSelectors are fallback chains; the first selector yielding text wins.
type DetailSelectors struct {
	Title       []string `yaml:"title"`
	Price       []string `yaml:"price"`
	Description []string `yaml:"description"`
	Breadcrumb  []string `yaml:"breadcrumb"`
}

// ImageRules select and clean gallery images.
type ImageRules struct {
	ContainerSelectors []string `yaml:"container_selectors"`
	Attributes         []string `yaml:"attributes"`
	LogoAssetHash      string   `yaml:"logo_asset_hash"`
	Host               string   `yaml:"host"`
	MinWidth           int      `yaml:"min_width"`
	Exclude            []string `yaml:"exclude"`
	UpgradeFrom        string   `yaml:"upgrade_from"`
	UpgradeTo          string   `yaml:"upgrade_to"`
}

// LocationRules say where city, department and postal code come from.
//
//	breadcrumb: postal code and city from the breadcrumb trail
//	list_item:  from the "city" and "postal_code" list items
//	url_slug:   city from the slug captured by slug_pattern
//
// Whatever cannot be found falls back to the defaults, which describe the
// region the agency operates in.
type LocationRules struct {
	Strategy          string            `yaml:"strategy"`
	SlugPattern       string            `yaml:"slug_pattern"`
	DefaultCity       string            `yaml:"default_city"`
	DefaultDepartment string            `yaml:"default_department"`
	DefaultPostalCode string            `yaml:"default_postal_code"`
	Departments       map[string]string `yaml:"departments"` // postal prefix -> name
}

// LinkPattern returns the compiled detail-page URL pattern.
func (s *SourceConfig) LinkPattern() *regexp.Regexp { return s.linkRe }

// ReferenceRe returns the compiled reference pattern, or nil.
func (s *SourceConfig) ReferenceRe() *regexp.Regexp { return s.referenceRe }

// SlugRe returns the compiled location slug pattern, or nil.
func (s *SourceConfig) SlugRe() *regexp.Regexp { return s.slugRe }

func (s *SourceConfig) setDefaults() {
	if s.Render == "" {
		s.Render = "browser"
	}
	if s.Pagination.Mode == "" {
		s.Pagination.Mode = "query"
	}
	if s.Pagination.Mode == "query" && s.Pagination.Param == "" {
		s.Pagination.Param = "page"
	}
	if s.ListItemSelector == "" {
		s.ListItemSelector = "li"
	}
	if len(s.Images.Attributes) == 0 {
		s.Images.Attributes = []string{"src", "data-src", "data-lazy-src", "data-original"}
	}
	if len(s.Images.Exclude) == 0 {
		s.Images.Exclude = []string{"logo", "icon", "sprite", "placeholder"}
	}
	if len(s.PropertyTypeFrom) == 0 {
		s.PropertyTypeFrom = []string{"url", "title"}
	}
	if s.Location.Strategy == "" {
		s.Location.Strategy = "list_item"
	}
}

// compile validates the config and prepares its regular expressions.
func (s *SourceConfig) compile() error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if s.ListingLinkPattern == "" {
		return fmt.Errorf("listing_link_pattern is required")
	}
	switch s.Render {
	case "browser", "static":
	default:
		return fmt.Errorf("invalid render mode: %s", s.Render)
	}
	switch s.Pagination.Mode {
	case "query", "path":
	default:
		return fmt.Errorf("invalid pagination mode: %s", s.Pagination.Mode)
	}
	switch s.Location.Strategy {
	case "breadcrumb", "list_item", "url_slug":
	default:
		return fmt.Errorf("invalid location strategy: %s", s.Location.Strategy)
	}
	if s.Location.Strategy == "url_slug" && s.Location.SlugPattern == "" {
		return fmt.Errorf("url_slug location strategy needs slug_pattern")
	}
	if s.MaxPages < 0 {
		return fmt.Errorf("max_pages must be non-negative")
	}

	var err error
	if s.linkRe, err = regexp.Compile(s.ListingLinkPattern); err != nil {
		return fmt.Errorf("listing_link_pattern: %w", err)
	}
	if s.ReferencePattern != "" {
		if s.referenceRe, err = regexp.Compile(s.ReferencePattern); err != nil {
			return fmt.Errorf("reference_pattern: %w", err)
		}
		if s.referenceRe.NumSubexp() < 1 {
			return fmt.Errorf("reference_pattern must have a capture group")
		}
	}
	if s.Location.SlugPattern != "" {
		if s.slugRe, err = regexp.Compile(s.Location.SlugPattern); err != nil {
			return fmt.Errorf("slug_pattern: %w", err)
		}
		if s.slugRe.NumSubexp() < 1 {
			return fmt.Errorf("slug_pattern must have a capture group")
		}
	}
	return nil
}
