package middleware

import (
	"crypto/subtle"

	"github.com/bilgisen/nnews/internal/logger"
	"github.com/gofiber/fiber/v2"
)

// APIKeyHeader carries the admin key.
const APIKeyHeader = "X-API-Key"

// AdminOnly guards operator routes (refresh, mode switch) with a shared key.
// An empty adminKey leaves the routes open.
func AdminOnly(adminKey string) fiber.Handler {
	if adminKey == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	want := []byte(adminKey)

	return func(c *fiber.Ctx) error {
		got := c.Get(APIKeyHeader)
		switch {
		case got == "":
			return deny(c, fiber.StatusUnauthorized, "API key is required")
		case subtle.ConstantTimeCompare([]byte(got), want) != 1:
			return deny(c, fiber.StatusForbidden, "Admin access required")
		}
		return c.Next()
	}
}

func deny(c *fiber.Ctx, status int, reason string) error {
	logger.Get().Warn().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("ip", c.IP()).
		Int("status", status).
		Msg("Admin route rejected")

	return c.Status(status).JSON(fiber.Map{"error": reason})
}
