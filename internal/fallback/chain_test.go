package fallback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bilgisen/nnews/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingStrategy struct {
	calls int32
	items []models.NewsItem
	// results, when set, is consumed one entry per call before falling back to items.
	mu      sync.Mutex
	results [][]models.NewsItem
}

func (s *countingStrategy) Fetch(ctx context.Context, src models.SourceConfig) []models.NewsItem {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) > 0 {
		r := s.results[0]
		s.results = s.results[1:]
		return r
	}
	return s.items
}

func (s *countingStrategy) count() int {
	return int(atomic.LoadInt32(&s.calls))
}

var (
	src  = models.SourceConfig{ID: "nn_ru"}
	some = []models.NewsItem{{ID: "1", Title: "t", SourceURL: "https://t.me/nn_ru/1"}}
)

func newChain(primary, secondary, fb *countingStrategy, activateErr error) *Chain {
	return New(Options{
		Primary:      primary,
		Secondary:    secondary,
		Fallback:     fb,
		PrimaryName:  "Bot API",
		FallbackName: "Web Scraping",
		Activate:     func(context.Context) error { return activateErr },
	}, zerolog.Nop())
}

func TestChainStartsDegradedWithoutActivation(t *testing.T) {
	primary, secondary, fb := &countingStrategy{}, &countingStrategy{}, &countingStrategy{items: some}
	c := newChain(primary, secondary, fb, errors.New("no token"))

	assert.Equal(t, Degraded, c.State())
	assert.Equal(t, Degraded, c.Reinitialize(context.Background()))
	assert.Equal(t, "Web Scraping", c.Mode())

	assert.Len(t, c.Fetch(context.Background(), src), 1)
	assert.Equal(t, 0, primary.count())
	assert.Equal(t, 0, secondary.count())
	assert.Equal(t, 1, fb.count())
}

func TestChainPrimarySuccess(t *testing.T) {
	primary, secondary, fb := &countingStrategy{items: some}, &countingStrategy{}, &countingStrategy{}
	c := newChain(primary, secondary, fb, nil)

	assert.Equal(t, PrimaryActive, c.Reinitialize(context.Background()))
	assert.Equal(t, "Bot API", c.Mode())

	for i := 0; i < 3; i++ {
		assert.Len(t, c.Fetch(context.Background(), src), 1)
	}
	assert.Equal(t, 3, primary.count())
	assert.Equal(t, 0, secondary.count())
	assert.Equal(t, 0, fb.count())
}

func TestChainSecondaryCoversOneCall(t *testing.T) {
	primary := &countingStrategy{results: [][]models.NewsItem{nil}, items: some}
	secondary := &countingStrategy{items: some}
	fb := &countingStrategy{}
	c := newChain(primary, secondary, fb, nil)
	c.Reinitialize(context.Background())

	assert.Len(t, c.Fetch(context.Background(), src), 1, "secondary fills the gap")
	assert.Equal(t, PrimaryActive, c.State())

	assert.Len(t, c.Fetch(context.Background(), src), 1)
	assert.Equal(t, 2, primary.count())
	assert.Equal(t, 1, secondary.count(), "secondary is used only for the empty call")
	assert.Equal(t, 0, fb.count())
}

func TestChainDegradesAfterPrimaryEmptyTwice(t *testing.T) {
	// First empty primary result is covered by the secondary; the second is not.
	primary := &countingStrategy{}
	secondary := &countingStrategy{results: [][]models.NewsItem{some, nil}}
	fb := &countingStrategy{items: some}
	c := newChain(primary, secondary, fb, nil)
	c.Reinitialize(context.Background())

	assert.Len(t, c.Fetch(context.Background(), src), 1)
	assert.Equal(t, PrimaryActive, c.State())

	assert.Empty(t, c.Fetch(context.Background(), src))
	assert.Equal(t, Degraded, c.State())

	for i := 0; i < 3; i++ {
		assert.Len(t, c.Fetch(context.Background(), src), 1)
	}
	assert.Equal(t, 2, primary.count())
	assert.Equal(t, 2, secondary.count())
	assert.Equal(t, 3, fb.count())
}

func TestChainReinitializeRestoresPrimary(t *testing.T) {
	primary, fb := &countingStrategy{}, &countingStrategy{items: some}
	activateErr := errors.New("getMe failed")
	c := New(Options{
		Primary:      primary,
		Fallback:     fb,
		PrimaryName:  "Bot API",
		FallbackName: "RSS Proxy",
		Activate:     func(context.Context) error { return activateErr },
	}, zerolog.Nop())

	assert.Equal(t, Degraded, c.Reinitialize(context.Background()))

	activateErr = nil
	assert.Equal(t, PrimaryActive, c.Reinitialize(context.Background()))

	// No secondary: an empty primary call degrades immediately.
	assert.Empty(t, c.Fetch(context.Background(), src))
	assert.Equal(t, Degraded, c.State())
	assert.Equal(t, "RSS Proxy", c.Mode())
}

func TestChainCancelledCallDoesNotDegrade(t *testing.T) {
	primary, secondary, fb := &countingStrategy{}, &countingStrategy{}, &countingStrategy{}
	c := newChain(primary, secondary, fb, nil)
	c.Reinitialize(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, c.Fetch(ctx, src))
	assert.Equal(t, PrimaryActive, c.State())
}

func TestChainWithoutPrimaryIsDegraded(t *testing.T) {
	c := New(Options{Fallback: &countingStrategy{}}, zerolog.Nop())
	assert.Equal(t, Degraded, c.Reinitialize(context.Background()))
	assert.Equal(t, "degraded", c.State().String())
}
