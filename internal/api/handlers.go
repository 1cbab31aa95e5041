package api

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/bilgisen/nnews/internal/config"
	"github.com/bilgisen/nnews/internal/logger"
	"github.com/bilgisen/nnews/internal/middleware"
	"github.com/bilgisen/nnews/internal/models"
	"github.com/bilgisen/nnews/internal/news"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/feeds"
)

// DefaultPageSize applies when a list request carries no limit.
const DefaultPageSize = 20

// MsgCityUnavailable is returned for a city slug that is not served.
const MsgCityUnavailable = "Новости для этого города пока не доступны"

type Handlers struct {
	config  *config.Config
	service *news.Service
	started time.Time
	now     func() time.Time
}

func NewHandlers(cfg *config.Config, svc *news.Service) *Handlers {
	return &Handlers{
		config:  cfg,
		service: svc,
		started: time.Now(),
		now:     time.Now,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	families := fiber.Map{}
	for _, family := range h.service.Families() {
		stats, err := h.service.GetStats(family)
		if err != nil {
			continue
		}
		families[family] = fiber.Map{
			"cachedNews":     stats.Total,
			"lastUpdated":    stats.LastUpdated,
			"sources":        len(h.service.Sources(family)),
			"workingSources": stats.WorkingSources,
			"perSource":      stats.PerSource,
		}
	}

	return c.JSON(fiber.Map{
		"status":        "OK",
		"timestamp":     h.now().Format(time.RFC3339),
		"uptime":        h.now().Sub(h.started).Round(time.Second).String(),
		"environment":   h.config.Env,
		"telegram_mode": h.service.TelegramMode(),
		"families":      families,
	})
}

// GetAllStats handles GET /api/news/stats
func (h *Handlers) GetAllStats(c *fiber.Ctx) error {
	out := fiber.Map{}
	for _, family := range h.service.Families() {
		stats, err := h.service.GetStats(family)
		if err != nil {
			return err
		}
		out[family] = fiber.Map{
			"total":          stats.Total,
			"sources":        stats.PerSource,
			"categories":     stats.PerCategory,
			"lastUpdated":    stats.LastUpdated,
			"withImages":     stats.WithImages,
			"workingSources": stats.WorkingSources,
		}
	}
	out["city"] = h.config.CityName
	return c.JSON(out)
}

// GetCityNews handles GET /api/news/:city
func (h *Handlers) GetCityNews(c *fiber.Ctx) error {
	if !h.servesCity(c.Params("city")) {
		return h.cityUnavailable(c)
	}
	return h.familyPage(c, config.FamilyRSS, fiber.Map{"city": h.config.CityName})
}

// GetCombinedNews handles GET /api/news/combined/:city
func (h *Handlers) GetCombinedNews(c *fiber.Ctx) error {
	if !h.servesCity(c.Params("city")) {
		return h.cityUnavailable(c)
	}

	q := middleware.Query[middleware.NewsQuery](c)
	items := h.service.GetCombined(q.Limit)

	return c.JSON(fiber.Map{
		"success":       true,
		"data":          items,
		"total":         len(items),
		"sources":       h.service.CombinedCounts(),
		"telegram_mode": h.service.TelegramMode(),
		"city":          h.config.CityName,
		"timestamp":     h.now().Format(time.RFC3339),
	})
}

// GetCombinedRSS handles GET /api/news/combined/:city/rss
func (h *Handlers) GetCombinedRSS(c *fiber.Ctx) error {
	if !h.servesCity(c.Params("city")) {
		return fiber.ErrNotFound
	}

	items := h.service.GetCombined(0)
	feed := &feeds.Feed{
		Title:       "Новости: " + h.config.CityName,
		Link:        &feeds.Link{Href: c.BaseURL() + strings.TrimSuffix(c.Path(), "/rss")},
		Description: "Региональные новости из RSS и Telegram",
		Created:     h.now(),
		Items:       make([]*feeds.Item, 0, len(items)),
	}
	if len(items) > 0 {
		feed.Updated = items[0].RawDate
	}

	for _, it := range items {
		fi := &feeds.Item{
			Id:          it.ID,
			Title:       it.Title,
			Link:        &feeds.Link{Href: it.SourceURL},
			Description: it.Description,
			Author:      &feeds.Author{Name: it.Source.Name},
			Created:     it.RawDate,
		}
		if it.HasImage() {
			fi.Enclosure = &feeds.Enclosure{Url: *it.ImageURL, Type: "image/jpeg", Length: "0"}
		}
		feed.Items = append(feed.Items, fi)
	}

	rss, err := feed.ToRss()
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error rendering RSS")
		return fiber.ErrInternalServerError
	}

	c.Set(fiber.HeaderContentType, "application/rss+xml; charset=utf-8")
	return c.SendString(rss)
}

// GetNationalNews handles GET /api/national/news
func (h *Handlers) GetNationalNews(c *fiber.Ctx) error {
	return h.familyPage(c, config.FamilyNational, nil)
}

// GetNationalStats handles GET /api/national/stats
func (h *Handlers) GetNationalStats(c *fiber.Ctx) error {
	return h.familyStats(c, config.FamilyNational, nil)
}

// GetTelegramNews handles GET /api/telegram/news
func (h *Handlers) GetTelegramNews(c *fiber.Ctx) error {
	return h.familyPage(c, config.FamilyTelegram, fiber.Map{"mode": h.service.TelegramMode()})
}

// GetTelegramStats handles GET /api/telegram/stats
func (h *Handlers) GetTelegramStats(c *fiber.Ctx) error {
	return h.familyStats(c, config.FamilyTelegram, fiber.Map{"mode": h.service.TelegramMode()})
}

// SwitchTelegramMode handles POST /api/telegram/switch-mode
func (h *Handlers) SwitchTelegramMode(c *fiber.Ctx) error {
	log := logger.Get()

	mode, err := h.service.SwitchTelegramMode(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("Error switching telegram mode")
		return fiber.ErrInternalServerError
	}

	log.Info().Str("mode", mode).Str("ip", c.IP()).Msg("Telegram mode switched")
	return c.JSON(fiber.Map{
		"success":  true,
		"new_mode": mode,
		"message":  "Переключено на " + mode,
	})
}

// TriggerRefresh handles POST /api/admin/refresh/:family
func (h *Handlers) TriggerRefresh(c *fiber.Ctx) error {
	family := c.Params("family")

	if err := h.service.TriggerRefresh(family); err != nil {
		if errors.Is(err, news.ErrUnknownFamily) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Unknown source family",
			})
		}
		logger.Get().Error().Err(err).Str("family", family).Msg("Error triggering refresh")
		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"family":  family,
		"message": "Refresh started",
	})
}

func (h *Handlers) familyPage(c *fiber.Ctx, family string, extra fiber.Map) error {
	q := middleware.Query[middleware.NewsQuery](c)
	limit := q.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}

	page, err := h.service.Query(family, q.Category, limit, q.Offset)
	if err != nil {
		return err
	}
	cached, err := h.service.GetCachedNews(family)
	if err != nil {
		return err
	}

	out := fiber.Map{
		"success":     true,
		"data":        page.Items,
		"total":       page.Total,
		"source":      family,
		"lastUpdated": cached.LastUpdated,
		"timestamp":   h.now().Format(time.RFC3339),
	}
	for k, v := range extra {
		out[k] = v
	}
	return c.JSON(out)
}

func (h *Handlers) familyStats(c *fiber.Ctx, family string, extra fiber.Map) error {
	stats, err := h.service.GetStats(family)
	if err != nil {
		return err
	}

	out := fiber.Map{
		"total":          stats.Total,
		"sources":        stats.PerSource,
		"categories":     stats.PerCategory,
		"withImages":     stats.WithImages,
		"workingSources": stats.WorkingSources,
		"lastUpdated":    stats.LastUpdated,
	}
	for k, v := range extra {
		out[k] = v
	}
	return c.JSON(out)
}

func (h *Handlers) cityUnavailable(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    []models.NewsItem{},
		"total":   0,
		"message": MsgCityUnavailable,
	})
}

// servesCity accepts the configured slug and the slugified city name.
func (h *Handlers) servesCity(param string) bool {
	if decoded, err := url.PathUnescape(param); err == nil {
		param = decoded
	}
	param = strings.ToLower(strings.TrimSpace(param))
	if param == "" {
		return false
	}
	return param == strings.ToLower(h.config.CitySlug) || param == slugify(h.config.CityName)
}

func slugify(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}
