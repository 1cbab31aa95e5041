// Package sources turns external feeds and channels into normalized news items.
//
// Every Adapter swallows its own failures: a broken source yields no items
// for the cycle and a warning in the log, never an error to the caller.
package sources

import (
	"context"
	"errors"
	"time"

	"github.com/bilgisen/nnews/internal/config"
	"github.com/bilgisen/nnews/internal/feed"
	"github.com/bilgisen/nnews/internal/models"
	"github.com/bilgisen/nnews/internal/utils"
	"github.com/rs/zerolog"
)

// Adapter fetches and normalizes the items of one configured source.
type Adapter interface {
	Fetch(ctx context.Context, src models.SourceConfig) []models.NewsItem
}

// Display names of the Telegram acquisition strategies.
const (
	ModeBotAPI   = "Bot API"
	ModeScrape   = "Web Scraping"
	ModeRSSProxy = "RSS Proxy"
)

// FailureKind groups adapter failures for diagnostics.
type FailureKind string

const (
	FailureNetwork    FailureKind = "network"
	FailureParse      FailureKind = "parse"
	FailureValidation FailureKind = "validation"
)

var (
	// ErrParse marks a payload that could not be decoded.
	ErrParse = errors.New("unparsable payload")
	// ErrValidation marks a source or payload missing required data.
	ErrValidation = errors.New("validation failed")
	// ErrNoToken is returned when the Bot API is selected without a token.
	ErrNoToken = errors.New("telegram bot token is not set")
	// ErrNotConnected is returned by bot calls before a successful Connect.
	ErrNotConnected = errors.New("telegram bot is not connected")
)

// Classify maps an adapter error to its FailureKind.
func Classify(err error) FailureKind {
	switch {
	case errors.Is(err, ErrParse):
		return FailureParse
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNoToken), errors.Is(err, ErrNotConnected):
		return FailureValidation
	default:
		return FailureNetwork
	}
}

func warn(log zerolog.Logger, src models.SourceConfig, url string, err error) {
	log.Warn().
		Err(err).
		Str("source", src.ID).
		Str("url", url).
		Str("kind", string(Classify(err))).
		Msg("Source produced no items")
}

type entry struct {
	title       string
	description string
	link        string
	image       string
	at          time.Time
	views       int
	hasViews    bool
}

func newItem(src models.SourceConfig, platform models.Platform, e entry, now time.Time) models.NewsItem {
	item := models.NewsItem{
		ID:          utils.NewsID(e.link, src.ID, e.title, e.description),
		Title:       e.title,
		Description: e.description,
		ImageURL:    models.StringPtr(e.image),
		SourceURL:   e.link,
		PublishedAt: feed.FormatRelativeDate(e.at, now),
		RawDate:     e.at,
		Source: models.SourceRef{
			ID:   src.ID,
			Name: src.Name,
			Type: src.Type.Label(),
		},
		Category: src.Category,
		Platform: platform,
	}

	switch {
	case e.hasViews:
		item.ViewCount = e.views
	case platform == models.PlatformTelegram:
		item.ViewCount = feed.EstimatedViews(nil, feed.TelegramViewsMin, feed.TelegramViewsMax)
		item.ViewCountEstimated = true
	default:
		item.ViewCount = feed.EstimatedViews(nil, feed.RSSViewsMin, feed.RSSViewsMax)
		item.ViewCountEstimated = true
	}
	return item
}

type limits struct {
	scan, max, description int
}

// limitsFor fills in registry defaults for sources built outside config.ParseSources.
func limitsFor(src models.SourceConfig) limits {
	l := limits{scan: src.ScanLimit, max: src.MaxItems, description: src.DescriptionLimit}
	if l.scan <= 0 {
		l.scan = config.DefaultScanLimit
	}
	if l.max <= 0 {
		l.max = config.DefaultMaxItems
	}
	if l.description <= 0 {
		l.description = config.DefaultDescriptionLimit
	}
	return l
}
