package sources

import (
	"bytes"
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/bilgisen/nnews/internal/feed"
	"github.com/bilgisen/nnews/internal/images"
	"github.com/bilgisen/nnews/internal/models"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

// RSSProxyUserAgent identifies requests to the channel RSS proxy.
const RSSProxyUserAgent = "NewsApp/1.0 (RSS Reader)"

// TelegramRSSAdapter reads a third-party RSS rendering of a channel.
type TelegramRSSAdapter struct {
	fetcher     feed.PageFetcher
	urlTemplate string
	timeout     time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

func NewTelegramRSSAdapter(fetcher feed.PageFetcher, urlTemplate string, timeout time.Duration, log zerolog.Logger) *TelegramRSSAdapter {
	return &TelegramRSSAdapter{
		fetcher:     fetcher,
		urlTemplate: urlTemplate,
		timeout:     timeout,
		log:         log,
		now:         time.Now,
	}
}

func (a *TelegramRSSAdapter) Fetch(ctx context.Context, src models.SourceConfig) []models.NewsItem {
	feedURL := fmt.Sprintf(a.urlTemplate, channelName(src))

	body, err := a.fetcher.Get(ctx, feed.Request{
		URL:     feedURL,
		Timeout: a.timeout,
		Headers: map[string]string{"User-Agent": RSSProxyUserAgent},
	})
	if err != nil {
		warn(a.log, src, feedURL, err)
		return nil
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		warn(a.log, src, feedURL, fmt.Errorf("%w: %v", ErrParse, err))
		return nil
	}

	now := a.now()
	lim := limitsFor(src)
	var items []models.NewsItem

	for i, e := range parsed.Items {
		if i >= TelegramMaxPosts {
			break
		}

		title := feed.CleanText(e.Title, 0)
		link := entryLink(e)
		if utf8.RuneCountInString(title) < TelegramMinTextLength || link == "" {
			continue
		}

		snippet := feed.CleanText(firstNonEmpty(e.Description, e.Content), 0)
		if !feed.IsTargetLanguage(title + " " + snippet) {
			continue
		}

		items = append(items, newItem(src, models.PlatformTelegram, entry{
			title:       feed.ExtractTitle(title),
			description: feed.CleanText(firstNonEmpty(snippet, title), lim.description),
			link:        link,
			image:       images.FromHTML(firstNonEmpty(e.Content, e.Description)),
			at:          entryTime(e),
		}, now))
	}

	a.log.Info().
		Str("source", src.ID).
		Str("url", feedURL).
		Int("items", len(items)).
		Msg("Fetched Telegram channel via RSS proxy")

	return items
}
