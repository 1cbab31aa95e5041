package models

// SourceType is the kind of external source a SourceConfig points at.
type SourceType string

const (
	SourceTypeRSS      SourceType = "rss"
	SourceTypeTelegram SourceType = "telegram"
)

// Label is the display form used in NewsItem.Source.Type.
func (t SourceType) Label() string {
	if t == SourceTypeTelegram {
		return "Telegram"
	}
	return "RSS"
}

// Selector is one CSS selector plus the attribute to read from the first match.
// An empty Attr reads the element text.
type Selector struct {
	CSS  string `yaml:"css" validate:"required"`
	Attr string `yaml:"attr"`
}

// ImageRule describes how to find an article image on the linked page.
type ImageRule struct {
	FetchPage bool       `yaml:"fetch_page"`
	Selectors []Selector `yaml:"selectors" validate:"dive"`
}

// RegionRule describes the secondary page check that an article belongs to the target region.
type RegionRule struct {
	Selector string   `yaml:"selector"`
	Prefix   string   `yaml:"prefix"`
	Keywords []string `yaml:"keywords" validate:"required,min=1"`
	// Pattern is matched against the page text when Selector finds nothing.
	Pattern string `yaml:"pattern"`
	// FailOpen keeps the entry when the page cannot be fetched.
	FailOpen bool `yaml:"fail_open"`
}

// SourceConfig is one statically configured source.
type SourceConfig struct {
	ID                 string      `yaml:"id" validate:"required"`
	Name               string      `yaml:"name" validate:"required"`
	Type               SourceType  `yaml:"type" validate:"required,oneof=rss telegram"`
	Family             string      `yaml:"family" validate:"required"`
	URL                string      `yaml:"url" validate:"required_if=Type rss,omitempty,url"`
	BaseURL            string      `yaml:"base_url" validate:"omitempty,url"`
	FallbackPaths      []string    `yaml:"fallback_paths"`
	Username           string      `yaml:"username" validate:"required_if=Type telegram"`
	Category           string      `yaml:"category"`
	Priority           int         `yaml:"priority"`
	Enabled            *bool       `yaml:"enabled"`
	ScanLimit          int         `yaml:"scan_limit" validate:"gte=0"`
	MaxItems           int         `yaml:"max_items" validate:"gte=0"`
	DescriptionLimit   int         `yaml:"description_limit" validate:"gte=0"`
	SkipLanguageFilter bool        `yaml:"skip_language_filter"`
	Region             *RegionRule `yaml:"region_check"`
	Image              ImageRule   `yaml:"image"`
}

// IsEnabled treats a missing flag as enabled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// CandidateURLs returns the primary feed URL followed by the conventional
// fallback paths on BaseURL, without duplicates.
func (s SourceConfig) CandidateURLs() []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	add(s.URL)
	if s.BaseURL != "" {
		base := trimTrailingSlash(s.BaseURL)
		for _, p := range s.FallbackPaths {
			if len(p) > 0 && p[0] != '/' {
				p = "/" + p
			}
			add(base + p)
		}
	}
	return urls
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
