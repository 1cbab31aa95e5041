package middleware

import (
	"time"

	"github.com/bilgisen/nnews/internal/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	// Logger defaults to the process logger at request time.
	Logger *zerolog.Logger
	// SkipPaths are not logged, e.g. a polled health endpoint.
	SkipPaths []string
	// UserAgent adds the User-Agent header to every entry.
	UserAgent bool
}

// NewLogger logs one entry per request. 5xx and handler errors log at error
// level, 4xx at warn, the rest at info.
func NewLogger(cfg LoggerConfig) fiber.Handler {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := skip[c.Path()]; ok {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		log := cfg.Logger
		if log == nil {
			log = logger.Get()
		}

		status := c.Response().StatusCode()
		var event *zerolog.Event
		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			event = log.Error().Err(err)
		case status >= fiber.StatusBadRequest:
			event = log.Warn()
		default:
			event = log.Info()
		}

		event = event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Str("ip", c.IP()).
			Int("bytes", len(c.Response().Body())).
			Dur("latency", time.Since(start))
		if cfg.UserAgent {
			event = event.Str("user_agent", c.Get(fiber.HeaderUserAgent))
		}

		event.Msg("request")
		return err
	}
}
