package api

import (
	"github.com/bilgisen/nnews/internal/config"
	"github.com/bilgisen/nnews/internal/middleware"
	"github.com/bilgisen/nnews/internal/news"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, svc *news.Service, cfg *config.Config) {
	h := NewHandlers(cfg, svc)

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.NewLogger(middleware.LoggerConfig{SkipPaths: []string{"/health"}}))

	app.Get("/health", h.HealthCheck)

	list := middleware.ValidateQuery[middleware.NewsQuery]()
	admin := middleware.AdminOnly(cfg.AdminAPIKey)

	api := app.Group("/api")

	newsGroup := api.Group("/news")
	{
		newsGroup.Get("/stats", h.GetAllStats)
		newsGroup.Get("/combined/:city/rss", h.GetCombinedRSS)
		newsGroup.Get("/combined/:city", list, h.GetCombinedNews)
		newsGroup.Get("/:city", list, h.GetCityNews)
	}

	national := api.Group("/national")
	{
		national.Get("/news", list, h.GetNationalNews)
		national.Get("/stats", h.GetNationalStats)
	}

	telegram := api.Group("/telegram")
	{
		telegram.Get("/news", list, h.GetTelegramNews)
		telegram.Get("/stats", h.GetTelegramStats)
		telegram.Post("/switch-mode", admin, h.SwitchTelegramMode)
	}

	api.Post("/admin/refresh/:family", admin, h.TriggerRefresh)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
