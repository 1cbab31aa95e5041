package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryClient is the in-process ImageCache used when Redis is not configured.
type MemoryClient struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (m *MemoryClient) Close() error {
	return nil
}

func (m *MemoryClient) GetImage(ctx context.Context, pageURL string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data[pageURL]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.data, pageURL)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryClient) SetImage(ctx context.Context, pageURL, imageURL string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: imageURL}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.data[pageURL] = e
	return nil
}

// Clear drops every entry.
func (m *MemoryClient) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.data = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}
