package news

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bilgisen/nnews/internal/cache"
	"github.com/bilgisen/nnews/internal/config"
	"github.com/bilgisen/nnews/internal/fallback"
	"github.com/bilgisen/nnews/internal/feed"
	"github.com/bilgisen/nnews/internal/models"
)

// ErrUnknownFamily is returned for a family with no pipeline.
var ErrUnknownFamily = errors.New("unknown source family")

// Refresher starts an out-of-schedule refresh of a family.
type Refresher interface {
	Trigger(family string) error
}

// CachedNews is the read view of one family snapshot.
type CachedNews struct {
	Data        []models.NewsItem `json:"data"`
	Total       int               `json:"total"`
	LastUpdated *time.Time        `json:"lastUpdated"`
	Source      string            `json:"source"`
}

// Stats summarizes one family snapshot.
type Stats struct {
	Total          int            `json:"total"`
	PerSource      map[string]int `json:"sources"`
	PerCategory    map[string]int `json:"categories"`
	WithImages     int            `json:"withImages"`
	WorkingSources int            `json:"workingSources"`
	LastUpdated    *time.Time     `json:"lastUpdated"`
}

// Page is a filtered, paginated slice of a family snapshot.
type Page struct {
	Items []models.NewsItem `json:"data"`
	Total int               `json:"total"`
}

// Service is the read side over the snapshot store plus the refresh controls.
// Reads never block on I/O.
type Service struct {
	store         *cache.Store
	pipelines     map[string]*Pipeline
	chain         *fallback.Chain
	refresher     Refresher
	combinedLimit int
}

func NewService(store *cache.Store, pipelines []*Pipeline, chain *fallback.Chain, combinedLimit int) *Service {
	byFamily := make(map[string]*Pipeline, len(pipelines))
	for _, p := range pipelines {
		byFamily[p.Family()] = p
	}
	return &Service{
		store:         store,
		pipelines:     byFamily,
		chain:         chain,
		combinedLimit: combinedLimit,
	}
}

// SetRefresher installs the component that runs TriggerRefresh requests.
func (s *Service) SetRefresher(r Refresher) {
	s.refresher = r
}

// Families returns the configured family names in sorted order.
func (s *Service) Families() []string {
	out := make([]string, 0, len(s.pipelines))
	for f := range s.pipelines {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Sources returns the configured sources of family.
func (s *Service) Sources(family string) []models.SourceConfig {
	if p, ok := s.pipelines[family]; ok {
		return p.Sources()
	}
	return nil
}

// HasFamily reports whether family has a pipeline.
func (s *Service) HasFamily(family string) bool {
	_, ok := s.pipelines[family]
	return ok
}

func (s *Service) snapshot(family string) (*models.Snapshot, error) {
	if !s.HasFamily(family) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	return s.store.Get(family), nil
}

// GetCachedNews returns the current snapshot of family.
func (s *Service) GetCachedNews(family string) (CachedNews, error) {
	snap, err := s.snapshot(family)
	if err != nil {
		return CachedNews{}, err
	}

	out := CachedNews{Data: []models.NewsItem{}, Source: family}
	if snap != nil {
		out.Data = snap.Items
		out.Total = len(snap.Items)
		out.LastUpdated = generatedAt(snap)
	}
	return out, nil
}

// GetStats summarizes the current snapshot of family.
func (s *Service) GetStats(family string) (Stats, error) {
	snap, err := s.snapshot(family)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		PerSource:   make(map[string]int),
		PerCategory: make(map[string]int),
	}
	if snap == nil {
		return stats, nil
	}

	stats.Total = len(snap.Items)
	stats.LastUpdated = generatedAt(snap)
	for _, item := range snap.Items {
		stats.PerSource[item.Source.Name]++
		stats.PerCategory[item.Category]++
		if item.HasImage() {
			stats.WithImages++
		}
	}
	stats.WorkingSources = len(stats.PerSource)
	return stats, nil
}

// GetCombined merges every family snapshot newest first, without repeating a
// sourceUrl, capped at max (or the configured limit when max <= 0).
func (s *Service) GetCombined(max int) []models.NewsItem {
	if max <= 0 {
		max = s.combinedLimit
	}

	snaps := s.store.All()
	var all []models.NewsItem
	for _, family := range s.Families() {
		if snap := snaps[family]; snap != nil {
			all = append(all, snap.Items...)
		}
	}

	merged := feed.Deduplicate(all, feed.DedupByURL)
	feed.SortByDate(merged)
	if max > 0 && len(merged) > max {
		merged = merged[:max]
	}
	return merged
}

// CombinedCounts returns the item count of every family snapshot.
func (s *Service) CombinedCounts() map[string]int {
	counts := make(map[string]int, len(s.pipelines))
	for _, family := range s.Families() {
		counts[family] = s.store.Get(family).Len()
	}
	return counts
}

// Query filters a family snapshot by category ("" or "all" for none) and pages it.
func (s *Service) Query(family, category string, limit, offset int) (Page, error) {
	snap, err := s.snapshot(family)
	if err != nil {
		return Page{}, err
	}
	if snap == nil {
		return Page{Items: []models.NewsItem{}}, nil
	}

	items := snap.Items
	if category != "" && category != "all" {
		filtered := make([]models.NewsItem, 0, len(items))
		for _, item := range items {
			if item.Category == category {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	total := len(items)
	if offset >= len(items) {
		return Page{Items: []models.NewsItem{}, Total: total}, nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return Page{Items: items, Total: total}, nil
}

// TriggerRefresh asks the refresher to run family now.
func (s *Service) TriggerRefresh(family string) error {
	if !s.HasFamily(family) {
		return fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	if s.refresher == nil {
		return errors.New("no refresher configured")
	}
	return s.refresher.Trigger(family)
}

// TelegramMode names the strategy the Telegram family currently uses.
func (s *Service) TelegramMode() string {
	if s.chain == nil {
		return ""
	}
	return s.chain.Mode()
}

// SwitchTelegramMode re-runs the Bot API activation check and schedules a
// Telegram refresh with the resulting mode.
func (s *Service) SwitchTelegramMode(ctx context.Context) (string, error) {
	if s.chain == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, config.FamilyTelegram)
	}
	s.chain.Reinitialize(ctx)

	if s.HasFamily(config.FamilyTelegram) && s.refresher != nil {
		if err := s.refresher.Trigger(config.FamilyTelegram); err != nil {
			return s.chain.Mode(), err
		}
	}
	return s.chain.Mode(), nil
}

func generatedAt(snap *models.Snapshot) *time.Time {
	if snap.GeneratedAt.IsZero() {
		return nil
	}
	t := snap.GeneratedAt
	return &t
}
