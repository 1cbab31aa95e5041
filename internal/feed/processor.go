package feed

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bilgisen/nnews/internal/models"
	"github.com/rs/zerolog"
)

// DedupPolicy selects the duplicate key(s) used during aggregation.
type DedupPolicy int

const (
	// DedupByURL keeps the first item per sourceUrl.
	DedupByURL DedupPolicy = iota
	// DedupByURLOrDescription also treats an identical description as a duplicate.
	DedupByURLOrDescription
	// DedupByTitle keys on the normalized title and drops short titles.
	DedupByTitle
)

// MinTitleKeyLength is the shortest normalized title kept under DedupByTitle.
const MinTitleKeyLength = 10

func (p DedupPolicy) String() string {
	switch p {
	case DedupByURLOrDescription:
		return "url_or_description"
	case DedupByTitle:
		return "title"
	default:
		return "url"
	}
}

// Processor turns one cycle's candidate items into a snapshot.
type Processor struct {
	policy   DedupPolicy
	maxItems int
	log      zerolog.Logger
}

func NewProcessor(policy DedupPolicy, maxItems int, log zerolog.Logger) *Processor {
	return &Processor{policy: policy, maxItems: maxItems, log: log}
}

// Aggregate validates, deduplicates, sorts newest first and truncates the
// candidates. The input slice is not modified.
func (p *Processor) Aggregate(candidates []models.NewsItem, now time.Time) *models.Snapshot {
	valid := Validate(candidates)
	unique := Deduplicate(valid, p.policy)
	SortByDate(unique)

	truncated := 0
	if p.maxItems > 0 && len(unique) > p.maxItems {
		truncated = len(unique) - p.maxItems
		unique = unique[:p.maxItems]
	}

	p.log.Debug().
		Int("candidates", len(candidates)).
		Int("invalid", len(candidates)-len(valid)).
		Int("duplicates", len(valid)-len(unique)-truncated).
		Int("truncated", truncated).
		Str("policy", p.policy.String()).
		Msg("Aggregated items")

	return &models.Snapshot{Items: unique, GeneratedAt: now}
}

// Validate returns a copy of items without entries missing a title or sourceUrl.
func Validate(items []models.NewsItem) []models.NewsItem {
	out := make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.SourceURL) == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Deduplicate keeps the first-seen item for every key of the policy.
func Deduplicate(items []models.NewsItem, policy DedupPolicy) []models.NewsItem {
	seenURL := make(map[string]bool, len(items))
	seenDesc := make(map[string]bool)
	seenTitle := make(map[string]bool)
	out := make([]models.NewsItem, 0, len(items))

	for _, item := range items {
		switch policy {
		case DedupByTitle:
			key := NormalizeTitle(item.Title)
			if utf8.RuneCountInString(key) < MinTitleKeyLength || seenTitle[key] {
				continue
			}
			seenTitle[key] = true

		case DedupByURLOrDescription:
			if seenURL[item.SourceURL] || (item.Description != "" && seenDesc[item.Description]) {
				continue
			}
			seenURL[item.SourceURL] = true
			if item.Description != "" {
				seenDesc[item.Description] = true
			}

		default:
			if seenURL[item.SourceURL] {
				continue
			}
			seenURL[item.SourceURL] = true
		}
		out = append(out, item)
	}
	return out
}

// NormalizeTitle lowercases the title, strips everything but letters, digits
// and spaces, and collapses whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return collapseSpaces(b.String())
}

// SortByDate orders items newest first; zero dates sort last and ties keep input order.
func SortByDate(items []models.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].RawDate.After(items[j].RawDate)
	})
}
