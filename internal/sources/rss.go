package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bilgisen/nnews/internal/feed"
	"github.com/bilgisen/nnews/internal/images"
	"github.com/bilgisen/nnews/internal/models"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

// RSSAdapter reads a site feed, trying the configured URL and then the
// conventional fallback paths until one parses.
type RSSAdapter struct {
	fetcher  feed.PageFetcher
	resolver *images.Resolver
	region   *RegionChecker
	timeout  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewRSSAdapter(fetcher feed.PageFetcher, resolver *images.Resolver, region *RegionChecker, timeout time.Duration, log zerolog.Logger) *RSSAdapter {
	return &RSSAdapter{
		fetcher:  fetcher,
		resolver: resolver,
		region:   region,
		timeout:  timeout,
		log:      log,
		now:      time.Now,
	}
}

func (a *RSSAdapter) Fetch(ctx context.Context, src models.SourceConfig) []models.NewsItem {
	parsed, feedURL, err := a.load(ctx, src)
	if err != nil {
		warn(a.log, src, src.URL, err)
		return nil
	}

	now := a.now()
	lim := limitsFor(src)
	var (
		items          []models.NewsItem
		langFiltered   int
		regionFiltered int
	)

	for i, e := range parsed.Items {
		if i >= lim.scan || len(items) >= lim.max || ctx.Err() != nil {
			break
		}

		title := feed.CleanText(e.Title, feed.MaxTitleLength)
		link := entryLink(e)
		if title == "" || link == "" {
			continue
		}

		if !src.SkipLanguageFilter && !feed.IsTargetLanguage(title) {
			langFiltered++
			continue
		}

		if src.Region != nil && !a.inRegion(ctx, src, link) {
			regionFiltered++
			continue
		}

		var image string
		if a.resolver != nil {
			image = a.resolver.Resolve(ctx, e, src)
		}

		items = append(items, newItem(src, models.PlatformRSS, entry{
			title:       title,
			description: feed.CleanText(firstNonEmpty(e.Description, e.Content), lim.description),
			link:        link,
			image:       image,
			at:          entryTime(e),
		}, now))
	}

	a.log.Info().
		Str("source", src.ID).
		Str("url", feedURL).
		Int("entries", len(parsed.Items)).
		Int("items", len(items)).
		Int("language_filtered", langFiltered).
		Int("region_filtered", regionFiltered).
		Msg("Fetched RSS source")

	return items
}

func (a *RSSAdapter) load(ctx context.Context, src models.SourceConfig) (*gofeed.Feed, string, error) {
	candidates := src.CandidateURLs()
	if len(candidates) == 0 {
		return nil, "", fmt.Errorf("%w: source %s has no feed URL", ErrValidation, src.ID)
	}

	var lastErr error
	for _, u := range candidates {
		body, err := a.fetcher.Get(ctx, feed.Request{URL: u, Timeout: a.timeout})
		if err != nil {
			lastErr = err
			a.log.Debug().Err(err).Str("source", src.ID).Str("url", u).Msg("Feed URL failed")
			continue
		}

		parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
		if err != nil {
			lastErr = fmt.Errorf("%w: %s: %v", ErrParse, u, err)
			a.log.Debug().Err(err).Str("source", src.ID).Str("url", u).Msg("Feed URL did not parse")
			continue
		}
		return parsed, u, nil
	}
	return nil, "", lastErr
}

func (a *RSSAdapter) inRegion(ctx context.Context, src models.SourceConfig, link string) bool {
	if a.region == nil {
		return src.Region.FailOpen
	}

	ok, err := a.region.Check(ctx, link, src.Region)
	if err != nil {
		a.log.Debug().
			Err(err).
			Str("source", src.ID).
			Str("url", link).
			Bool("fail_open", src.Region.FailOpen).
			Msg("Region check failed")
		return src.Region.FailOpen
	}
	return ok
}

func entryLink(e *gofeed.Item) string {
	if link := strings.TrimSpace(e.Link); link != "" {
		return link
	}
	if guid := strings.TrimSpace(e.GUID); strings.HasPrefix(guid, "http://") || strings.HasPrefix(guid, "https://") {
		return guid
	}
	return ""
}

func entryTime(e *gofeed.Item) time.Time {
	switch {
	case e.PublishedParsed != nil:
		return *e.PublishedParsed
	case e.UpdatedParsed != nil:
		return *e.UpdatedParsed
	default:
		return feed.ParseTimestamp(firstNonEmpty(e.Published, e.Updated))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
