package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bilgisen/nnews/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClientImageMemo(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, found, err := m.GetImage(ctx, "https://a.example/1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.SetImage(ctx, "https://a.example/1", "https://a.example/1.jpg", time.Hour))
	require.NoError(t, m.SetImage(ctx, "https://a.example/2", "", time.Hour))

	img, found, err := m.GetImage(ctx, "https://a.example/1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "https://a.example/1.jpg", img)

	img, found, err = m.GetImage(ctx, "https://a.example/2")
	require.NoError(t, err)
	assert.True(t, found, "negative results are memoized")
	assert.Empty(t, img)

	now = now.Add(2 * time.Hour)
	_, found, err = m.GetImage(ctx, "https://a.example/1")
	require.NoError(t, err)
	assert.False(t, found, "entries expire")

	require.NoError(t, m.SetImage(ctx, "https://a.example/3", "x", 0))
	require.NoError(t, m.Clear(ctx))
	_, found, _ = m.GetImage(ctx, "https://a.example/3")
	assert.False(t, found)
	assert.NoError(t, m.Close())
}

func TestNewRedisClientBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-redis-url", "nnews:")
	assert.Error(t, err)
}

func TestStoreReplace(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Get("rss"))
	assert.Equal(t, 0, s.Get("rss").Len())

	snap := &models.Snapshot{Items: []models.NewsItem{{ID: "1"}}, GeneratedAt: time.Now()}
	s.Replace("rss", snap)

	assert.Same(t, snap, s.Get("rss"))
	assert.Len(t, s.All(), 1)
	assert.Nil(t, s.Get("telegram"))
}

func TestStoreReadersSeeWholeSnapshots(t *testing.T) {
	s := NewStore()

	build := func(n int) *models.Snapshot {
		items := make([]models.NewsItem, n)
		for i := range items {
			items[i] = models.NewsItem{ID: fmt.Sprint(i)}
		}
		return &models.Snapshot{Items: items}
	}
	oldSnap, newSnap := build(30), build(50)
	s.Replace("rss", oldSnap)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				n := s.Get("rss").Len()
				if n != 30 && n != 50 {
					t.Errorf("reader saw partial snapshot of %d items", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		if i%2 == 0 {
			s.Replace("rss", newSnap)
		} else {
			s.Replace("rss", oldSnap)
		}
	}
	close(stop)
	wg.Wait()
}
