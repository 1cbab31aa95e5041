package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrHTTPStatus is returned for any non-2xx response.
var ErrHTTPStatus = errors.New("unexpected status code")

// Request describes one page fetch.
type Request struct {
	URL     string
	Timeout time.Duration // zero uses the client timeout
	Headers map[string]string
}

// PageFetcher returns the raw body of a URL.
type PageFetcher interface {
	Get(ctx context.Context, req Request) ([]byte, error)
}

// FetcherConfig tunes the underlying HTTP client.
type FetcherConfig struct {
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
}

type Fetcher struct {
	client *resty.Client
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() >= 500
		})
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Fetcher{client: client}
}

// Get retrieves url and returns its body. Per-request headers override the client defaults.
func (f *Fetcher) Get(ctx context.Context, req Request) ([]byte, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		Get(req.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("%w %d from %s", ErrHTTPStatus, resp.StatusCode(), req.URL)
	}

	return resp.Body(), nil
}
