package sources

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/bilgisen/nnews/internal/feed"
	"github.com/bilgisen/nnews/internal/models"
	"github.com/rs/zerolog"
)

const (
	// TelegramMaxPosts caps the posts read per channel per cycle.
	TelegramMaxPosts = 15
	// TelegramMinTextLength is the shortest post text accepted, in runes.
	TelegramMinTextLength = 10
)

var backgroundImageRegex = regexp.MustCompile(`background-image:\s*url\(['"]?([^'")]+)['"]?\)`)

// TelegramScrapeAdapter reads the public web preview of a channel (t.me/s/<name>).
type TelegramScrapeAdapter struct {
	fetcher     feed.PageFetcher
	urlTemplate string
	userAgent   string
	timeout     time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

func NewTelegramScrapeAdapter(fetcher feed.PageFetcher, urlTemplate, userAgent string, timeout time.Duration, log zerolog.Logger) *TelegramScrapeAdapter {
	return &TelegramScrapeAdapter{
		fetcher:     fetcher,
		urlTemplate: urlTemplate,
		userAgent:   userAgent,
		timeout:     timeout,
		log:         log,
		now:         time.Now,
	}
}

func (a *TelegramScrapeAdapter) Fetch(ctx context.Context, src models.SourceConfig) []models.NewsItem {
	username := channelName(src)
	pageURL := fmt.Sprintf(a.urlTemplate, username)

	req := feed.Request{URL: pageURL, Timeout: a.timeout}
	if a.userAgent != "" {
		req.Headers = map[string]string{"User-Agent": a.userAgent}
	}
	body, err := a.fetcher.Get(ctx, req)
	if err != nil {
		warn(a.log, src, pageURL, err)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		warn(a.log, src, pageURL, fmt.Errorf("%w: %v", ErrParse, err))
		return nil
	}

	now := a.now()
	lim := limitsFor(src)
	var items []models.NewsItem

	doc.Find(".tgme_widget_message").EachWithBreak(func(i int, post *goquery.Selection) bool {
		if i >= TelegramMaxPosts {
			return false
		}
		if item, ok := a.parsePost(post, src, username, lim, now); ok {
			items = append(items, item)
		}
		return true
	})

	a.log.Info().
		Str("source", src.ID).
		Str("url", pageURL).
		Int("items", len(items)).
		Msg("Scraped Telegram channel")

	return items
}

func (a *TelegramScrapeAdapter) parsePost(post *goquery.Selection, src models.SourceConfig, username string, lim limits, now time.Time) (models.NewsItem, bool) {
	postID, _ := post.Attr("data-post")
	_, number, found := strings.Cut(postID, "/")
	if !found || number == "" {
		return models.NewsItem{}, false
	}

	textNode := post.Find(".tgme_widget_message_text").
		Not(".tgme_widget_message_reply .tgme_widget_message_text").
		First()
	textNode.Find("br").ReplaceWithHtml("\n")
	text := feed.CleanText(textNode.Text(), 0)
	if utf8.RuneCountInString(text) < TelegramMinTextLength || !feed.IsTargetLanguage(text) {
		return models.NewsItem{}, false
	}

	datetime, _ := post.Find(".tgme_widget_message_date time").Attr("datetime")

	var image string
	if style, ok := post.Find(".tgme_widget_message_photo_wrap").First().Attr("style"); ok {
		if m := backgroundImageRegex.FindStringSubmatch(style); m != nil {
			image = m[1]
		}
	}

	e := entry{
		title:       feed.ExtractTitle(text),
		description: feed.CleanText(text, lim.description),
		link:        fmt.Sprintf("https://t.me/%s/%s", username, number),
		image:       image,
		at:          feed.ParseTimestamp(datetime),
	}
	e.views, e.hasViews = feed.ParseViews(post.Find(".tgme_widget_message_views").First().Text())

	return newItem(src, models.PlatformTelegram, e, now), true
}

func channelName(src models.SourceConfig) string {
	return strings.TrimPrefix(strings.TrimSpace(src.Username), "@")
}
