package news

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bilgisen/nnews/internal/cache"
	"github.com/bilgisen/nnews/internal/config"
	"github.com/bilgisen/nnews/internal/fallback"
	"github.com/bilgisen/nnews/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRefresher struct {
	mu       sync.Mutex
	families []string
}

func (r *recordingRefresher) Trigger(family string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families = append(r.families, family)
	return nil
}

func familyPipeline(family string, store *cache.Store) *Pipeline {
	return NewPipeline(PipelineConfig{Family: family, Adapter: &stubAdapter{}, Spec: Families[family]}, store, zerolog.Nop())
}

func withSource(it models.NewsItem, name, category string, img bool) models.NewsItem {
	it.Source.Name = name
	it.Category = category
	if img {
		it.ImageURL = models.StringPtr("https://img.example/" + name + ".jpg")
	}
	return it
}

func newTestService(t *testing.T) (*Service, *cache.Store) {
	t.Helper()
	store := cache.NewStore()
	svc := NewService(store, []*Pipeline{
		familyPipeline(config.FamilyRSS, store),
		familyPipeline(config.FamilyTelegram, store),
		familyPipeline(config.FamilyNational, store),
	}, nil, 3)

	store.Replace(config.FamilyRSS, &models.Snapshot{GeneratedAt: cycleTime, Items: []models.NewsItem{
		withSource(item("https://r/1", cycleTime.Add(-1*time.Hour)), "Время Н", "Нижний Новгород", true),
		withSource(item("https://shared", cycleTime.Add(-2*time.Hour)), "НИА", "Нижний Новгород", false),
		withSource(item("https://r/3", cycleTime.Add(-5*time.Hour)), "Время Н", "Нижний Новгород", false),
	}})
	store.Replace(config.FamilyTelegram, &models.Snapshot{GeneratedAt: cycleTime, Items: []models.NewsItem{
		withSource(item("https://t/1", cycleTime.Add(-30*time.Minute)), "NN.RU", "Новости", true),
		withSource(item("https://shared", cycleTime.Add(-2*time.Hour)), "NN.RU", "Новости", false),
	}})
	return svc, store
}

func TestGetCachedNews(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.GetCachedNews(config.FamilyRSS)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, config.FamilyRSS, got.Source)
	require.NotNil(t, got.LastUpdated)
	assert.Equal(t, cycleTime, *got.LastUpdated)

	empty, err := svc.GetCachedNews(config.FamilyNational)
	require.NoError(t, err)
	assert.NotNil(t, empty.Data)
	assert.Empty(t, empty.Data)
	assert.Nil(t, empty.LastUpdated)

	_, err = svc.GetCachedNews("sports")
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestGetStats(t *testing.T) {
	svc, _ := newTestService(t)

	stats, err := svc.GetStats(config.FamilyRSS)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.WithImages)
	assert.Equal(t, 2, stats.WorkingSources)
	assert.Equal(t, map[string]int{"Время Н": 2, "НИА": 1}, stats.PerSource)
	assert.Equal(t, map[string]int{"Нижний Новгород": 3}, stats.PerCategory)

	empty, err := svc.GetStats(config.FamilyNational)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.PerSource)
}

func TestGetCombined(t *testing.T) {
	svc, store := newTestService(t)
	before := store.Get(config.FamilyRSS).Items[0]

	all := svc.GetCombined(10)
	urls := make([]string, 0, len(all))
	for _, it := range all {
		urls = append(urls, it.SourceURL)
	}
	assert.Equal(t, []string{"https://t/1", "https://r/1", "https://shared", "https://r/3"}, urls)

	assert.Len(t, svc.GetCombined(0), 3)
	assert.Len(t, svc.GetCombined(2), 2)
	assert.Equal(t, before, store.Get(config.FamilyRSS).Items[0])

	assert.Equal(t, map[string]int{config.FamilyRSS: 3, config.FamilyTelegram: 2, config.FamilyNational: 0}, svc.CombinedCounts())
}

func TestQuery(t *testing.T) {
	svc, store := newTestService(t)
	store.Replace(config.FamilyNational, &models.Snapshot{GeneratedAt: cycleTime, Items: []models.NewsItem{
		withSource(item("https://n/1", cycleTime), "ТАСС", "Политика", false),
		withSource(item("https://n/2", cycleTime), "РИА", "Экономика", false),
		withSource(item("https://n/3", cycleTime), "ТАСС", "Политика", false),
	}})

	page, err := svc.Query(config.FamilyNational, "Политика", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 2)

	page, err = svc.Query(config.FamilyNational, "all", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "https://n/2", page.Items[0].SourceURL)

	page, err = svc.Query(config.FamilyNational, "", 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Empty(t, page.Items)
}

func TestTriggerRefresh(t *testing.T) {
	svc, _ := newTestService(t)
	assert.Error(t, svc.TriggerRefresh(config.FamilyRSS))

	r := &recordingRefresher{}
	svc.SetRefresher(r)
	require.NoError(t, svc.TriggerRefresh(config.FamilyRSS))
	assert.ErrorIs(t, svc.TriggerRefresh("sports"), ErrUnknownFamily)
	assert.Equal(t, []string{config.FamilyRSS}, r.families)
}

func TestSwitchTelegramMode(t *testing.T) {
	store := cache.NewStore()
	activateErr := errors.New("no token")
	chain := fallback.New(fallback.Options{
		Primary:      &stubAdapter{},
		Fallback:     &stubAdapter{},
		PrimaryName:  "Bot API",
		FallbackName: "Web Scraping",
		Activate:     func(context.Context) error { return activateErr },
	}, zerolog.Nop())

	svc := NewService(store, []*Pipeline{familyPipeline(config.FamilyTelegram, store)}, chain, 0)
	r := &recordingRefresher{}
	svc.SetRefresher(r)
	assert.Equal(t, "Web Scraping", svc.TelegramMode())

	mode, err := svc.SwitchTelegramMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Web Scraping", mode)

	activateErr = nil
	mode, err = svc.SwitchTelegramMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bot API", mode)
	assert.Equal(t, []string{config.FamilyTelegram, config.FamilyTelegram}, r.families)
}
