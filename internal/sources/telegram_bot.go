package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bilgisen/nnews/internal/feed"
	"github.com/bilgisen/nnews/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Bot API polling parameters for channel posts.
const (
	botUpdatesOffset = -100
	botUpdatesLimit  = TelegramMaxPosts
)

// BotClient owns the Bot API connection shared by every Telegram source.
type BotClient struct {
	token    string
	endpoint string
	client   *http.Client

	mu  sync.RWMutex
	bot *tgbotapi.BotAPI
}

func NewBotClient(token, endpoint string, timeout time.Duration) *BotClient {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &BotClient{
		token:    token,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Connect verifies the token with getMe. On failure the previous connection is dropped.
func (c *BotClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bot = nil
	if c.token == "" {
		return ErrNoToken
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bot, err := tgbotapi.NewBotAPIWithClient(c.token, c.endpoint, c.client)
	if err != nil {
		return fmt.Errorf("telegram getMe failed: %w", err)
	}
	c.bot = bot
	return nil
}

// Username returns the bot username once connected.
func (c *BotClient) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bot == nil {
		return ""
	}
	return c.bot.Self.UserName
}

func (c *BotClient) api() *tgbotapi.BotAPI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bot
}

// TelegramBotAdapter reads channel posts the bot receives as an administrator.
type TelegramBotAdapter struct {
	client *BotClient
	log    zerolog.Logger
	now    func() time.Time
}

func NewTelegramBotAdapter(client *BotClient, log zerolog.Logger) *TelegramBotAdapter {
	return &TelegramBotAdapter{client: client, log: log, now: time.Now}
}

func (a *TelegramBotAdapter) Fetch(ctx context.Context, src models.SourceConfig) []models.NewsItem {
	bot := a.client.api()
	if bot == nil {
		warn(a.log, src, "getUpdates", ErrNotConnected)
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	updates, err := bot.GetUpdates(tgbotapi.UpdateConfig{
		Offset:         botUpdatesOffset,
		Limit:          botUpdatesLimit,
		AllowedUpdates: []string{"channel_post"},
	})
	if err != nil {
		warn(a.log, src, "getUpdates", err)
		return nil
	}

	username := channelName(src)
	now := a.now()
	lim := limitsFor(src)
	var items []models.NewsItem

	for _, u := range updates {
		post := u.ChannelPost
		if post == nil || post.Chat == nil || !strings.EqualFold(post.Chat.UserName, username) {
			continue
		}
		if item, ok := a.parsePost(bot, post, src, username, lim, now); ok {
			items = append(items, item)
		}
	}

	a.log.Info().
		Str("source", src.ID).
		Int("updates", len(updates)).
		Int("items", len(items)).
		Msg("Fetched Telegram channel via Bot API")

	return items
}

func (a *TelegramBotAdapter) parsePost(bot *tgbotapi.BotAPI, post *tgbotapi.Message, src models.SourceConfig, username string, lim limits, now time.Time) (models.NewsItem, bool) {
	text := post.Text
	if text == "" {
		text = post.Caption
	}
	text = feed.CleanText(text, 0)
	if utf8.RuneCountInString(text) < TelegramMinTextLength || !feed.IsTargetLanguage(text) {
		return models.NewsItem{}, false
	}

	var image string
	if photo := largestPhoto(post.Photo); photo != nil {
		link, err := bot.GetFileDirectURL(photo.FileID)
		if err != nil {
			a.log.Debug().Err(err).Str("source", src.ID).Int("message_id", post.MessageID).Msg("getFile failed")
		} else {
			image = link
		}
	}

	return newItem(src, models.PlatformTelegram, entry{
		title:       feed.ExtractTitle(text),
		description: feed.CleanText(text, lim.description),
		link:        fmt.Sprintf("https://t.me/%s/%d", username, post.MessageID),
		image:       image,
		at:          time.Unix(int64(post.Date), 0).UTC(),
	}, now), true
}

func largestPhoto(sizes []tgbotapi.PhotoSize) *tgbotapi.PhotoSize {
	var best *tgbotapi.PhotoSize
	for i := range sizes {
		if best == nil || sizes[i].Width*sizes[i].Height >= best.Width*best.Height {
			best = &sizes[i]
		}
	}
	return best
}
