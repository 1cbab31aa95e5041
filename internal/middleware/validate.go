package middleware

import (
	"errors"
	"net/http"

	"github.com/bilgisen/nnews/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// QueryKey is the c.Locals key holding the validated query struct.
const QueryKey = "queryParams"

var validate = validator.New()

// NewsQuery are the list parameters accepted by news endpoints.
type NewsQuery struct {
	Category string `query:"category" validate:"omitempty,max=100"`
	Limit    int    `query:"limit" validate:"min=0,max=100"`
	Offset   int    `query:"offset" validate:"min=0"`
}

// ValidateQuery parses the query string into a fresh T per request, validates
// it and stores it under QueryKey.
func ValidateQuery[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		params := new(T)
		if err := c.QueryParser(params); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid query parameters",
				"msg":   err.Error(),
			})
		}

		if err := validate.Struct(params); err != nil {
			fields := make(map[string]string)
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					fields[fe.Field()] = fe.Tag()
				}
			}

			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "Invalid query parameters",
				"fields": fields,
			})
		}

		c.Locals(QueryKey, params)
		return c.Next()
	}
}

// Query returns the struct stored by ValidateQuery, or a zero T.
func Query[T any](c *fiber.Ctx) *T {
	if params, ok := c.Locals(QueryKey).(*T); ok {
		return params
	}
	return new(T)
}

// ErrorHandler renders errors as {"error": "<status text>"}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	logger.Get().Error().
		Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", code).
		Msg("HTTP error")

	return c.Status(code).JSON(fiber.Map{
		"error": http.StatusText(code),
	})
}
