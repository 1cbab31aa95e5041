package models

import "time"

// Platform identifies the acquisition platform of a news item.
type Platform string

const (
	PlatformRSS      Platform = "rss"
	PlatformTelegram Platform = "telegram"
)

// SourceRef is the source block embedded in every NewsItem.
type SourceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // "RSS" or "Telegram"
}

// NewsItem is the normalized record produced by every source adapter.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    *string   `json:"imageUrl"`
	SourceURL   string    `json:"sourceUrl"`
	PublishedAt string    `json:"publishedAt"`
	RawDate     time.Time `json:"rawDate"`
	Source      SourceRef `json:"source"`
	Category    string    `json:"category"`
	ViewCount   int       `json:"viewCount"`
	// ViewCountEstimated is true when ViewCount is a placeholder rather than a counter read from the source.
	ViewCountEstimated bool     `json:"viewCountEstimated"`
	IsLiked            bool     `json:"isLiked"`
	Platform           Platform `json:"platform"`
}

// HasImage reports whether an image URL was resolved for the item.
func (n NewsItem) HasImage() bool {
	return n.ImageURL != nil && *n.ImageURL != ""
}

// StringPtr returns nil for an empty string, a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Snapshot is an immutable cache state produced by one aggregation cycle.
// Neither the slice nor the items may be modified after construction.
type Snapshot struct {
	Items       []NewsItem `json:"items"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// Len returns the number of items in the snapshot; a nil snapshot is empty.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}
