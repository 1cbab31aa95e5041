package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bilgisen/nnews/internal/cache"
	"github.com/bilgisen/nnews/internal/config"
	"github.com/bilgisen/nnews/internal/feed"
	"github.com/bilgisen/nnews/internal/images"
	"github.com/bilgisen/nnews/internal/models"
	"github.com/bilgisen/nnews/internal/sources"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cycleTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// stubAdapter serves canned items per source id.
type stubAdapter struct {
	mu      sync.Mutex
	items   map[string][]models.NewsItem
	calls   []string
	block   chan struct{}
	started chan struct{}
}

func (s *stubAdapter) Fetch(ctx context.Context, src models.SourceConfig) []models.NewsItem {
	s.mu.Lock()
	s.calls = append(s.calls, src.ID)
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
		}
	}
	return s.items[src.ID]
}

func (s *stubAdapter) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func item(url string, at time.Time) models.NewsItem {
	return models.NewsItem{
		ID:        url,
		Title:     "Новость " + url,
		SourceURL: url,
		RawDate:   at,
		Source:    models.SourceRef{ID: "src", Name: "Источник", Type: "RSS"},
		Category:  "Нижний Новгород",
	}
}

func newTestPipeline(adapter sources.Adapter, store *cache.Store, srcs ...string) *Pipeline {
	cfgs := make([]models.SourceConfig, 0, len(srcs))
	for _, id := range srcs {
		cfgs = append(cfgs, models.SourceConfig{ID: id, Name: id, Type: models.SourceTypeRSS})
	}
	p := NewPipeline(PipelineConfig{
		Family:  config.FamilyRSS,
		Sources: cfgs,
		Adapter: adapter,
		Spec:    Families[config.FamilyRSS],
	}, store, zerolog.Nop())
	p.now = func() time.Time { return cycleTime }
	return p
}

func TestRunCycleAggregatesSources(t *testing.T) {
	adapter := &stubAdapter{items: map[string][]models.NewsItem{
		"a": {item("https://a/1", cycleTime.Add(-3*time.Hour)), item("https://shared", cycleTime.Add(-1*time.Hour))},
		"b": {item("https://shared", cycleTime.Add(-1*time.Hour)), item("https://b/1", cycleTime.Add(-2*time.Hour))},
		"c": nil,
	}}
	store := cache.NewStore()
	p := newTestPipeline(adapter, store, "a", "b", "c")

	require.NoError(t, p.RunCycle(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, adapter.Calls())

	snap := store.Get(config.FamilyRSS)
	require.NotNil(t, snap)
	assert.Equal(t, cycleTime, snap.GeneratedAt)

	urls := make([]string, 0, len(snap.Items))
	for _, it := range snap.Items {
		urls = append(urls, it.SourceURL)
	}
	assert.Equal(t, []string{"https://shared", "https://b/1", "https://a/1"}, urls)
}

func TestRunCycleTruncatesToFamilyCap(t *testing.T) {
	var many []models.NewsItem
	for i := 0; i < 120; i++ {
		many = append(many, item(fmt.Sprintf("https://a/%d", i), cycleTime.Add(-time.Duration(i)*time.Minute)))
	}
	store := cache.NewStore()
	p := newTestPipeline(&stubAdapter{items: map[string][]models.NewsItem{"a": many}}, store, "a")

	require.NoError(t, p.RunCycle(context.Background()))
	snap := store.Get(config.FamilyRSS)
	require.Len(t, snap.Items, 100)
	assert.Equal(t, "https://a/0", snap.Items[0].SourceURL)
	assert.Equal(t, "https://a/99", snap.Items[99].SourceURL)
}

func TestRunCycleKeepsSnapshotWhenCancelled(t *testing.T) {
	store := cache.NewStore()
	old := &models.Snapshot{Items: []models.NewsItem{item("https://old", cycleTime)}, GeneratedAt: cycleTime.Add(-time.Hour)}
	store.Replace(config.FamilyRSS, old)

	adapter := &stubAdapter{items: map[string][]models.NewsItem{"a": {item("https://new", cycleTime)}}}
	p := newTestPipeline(adapter, store, "a", "b")
	p.delay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.RunCycle(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Same(t, old, store.Get(config.FamilyRSS))
	assert.Equal(t, []string{"a"}, adapter.Calls())
}

func TestRunCycleRejectsConcurrentRun(t *testing.T) {
	adapter := &stubAdapter{
		items:   map[string][]models.NewsItem{"a": {item("https://a/1", cycleTime)}},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	store := cache.NewStore()
	p := newTestPipeline(adapter, store, "a")

	done := make(chan error, 1)
	go func() { done <- p.RunCycle(context.Background()) }()
	<-adapter.started

	assert.ErrorIs(t, p.RunCycle(context.Background()), ErrCycleInProgress)

	close(adapter.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, store.Get(config.FamilyRSS).Len())
}

func TestRSSFamilyEndToEnd(t *testing.T) {
	feedXML := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Лента</title>
<item><title>В Нижнем Новгороде открыли новый мост</title><link>https://news.example/1</link>
<description>Движение по мосту запустят завтра</description><pubDate>Mon, 10 Mar 2025 09:00:00 +0000</pubDate></item>
<item><title>City council approves the new budget</title><link>https://news.example/2</link>
<description>English only</description><pubDate>Mon, 10 Mar 2025 11:00:00 +0000</pubDate></item>
<item><title>Синоптики обещают снегопад на выходных</title><link>https://news.example/3</link>
<description>Снег ожидается в субботу</description><pubDate>Mon, 10 Mar 2025 10:00:00 +0000</pubDate></item>
</channel></rss>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	fetcher := feed.NewFetcher(feed.FetcherConfig{Timeout: 2 * time.Second})
	adapter := sources.NewRSSAdapter(
		fetcher,
		images.NewResolver(fetcher, nil, images.Config{}, zerolog.Nop()),
		sources.NewRegionChecker(fetcher, time.Second),
		2*time.Second,
		zerolog.Nop(),
	)

	store := cache.NewStore()
	p := NewPipeline(PipelineConfig{
		Family:  config.FamilyRSS,
		Sources: []models.SourceConfig{{ID: "mock", Name: "Mock", Type: models.SourceTypeRSS, URL: srv.URL, Category: "Нижний Новгород"}},
		Adapter: adapter,
		Spec:    Families[config.FamilyRSS],
	}, store, zerolog.Nop())

	require.NoError(t, p.RunCycle(context.Background()))

	snap := store.Get(config.FamilyRSS)
	require.NotNil(t, snap)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "https://news.example/3", snap.Items[0].SourceURL)
	assert.Equal(t, "https://news.example/1", snap.Items[1].SourceURL)
	assert.True(t, snap.Items[0].RawDate.After(snap.Items[1].RawDate))
	for _, it := range snap.Items {
		assert.Equal(t, models.PlatformRSS, it.Platform)
		assert.Equal(t, "Mock", it.Source.Name)
		assert.NotEmpty(t, it.ID)
	}
}
