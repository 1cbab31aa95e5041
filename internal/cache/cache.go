package cache

import (
	"context"
	"time"
)

// ImageCache memoizes page image lookups. An empty image URL records a
// lookup that found nothing.
type ImageCache interface {
	GetImage(ctx context.Context, pageURL string) (imageURL string, found bool, err error)
	SetImage(ctx context.Context, pageURL, imageURL string, ttl time.Duration) error
	Close() error
}
