package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/lousydropout/vocab-recommendation-sub000/pkg/logger"
)

// CorrelationHeader is echoed on every response and accepted on requests.
const CorrelationHeader = "X-Correlation-ID"

// CorrelationID tags each request with an id that follows the essay through storage, the
// work queue and the worker logs. Incoming ids that are unsafe to persist are replaced.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := logger.NormalizeCorrelationID(c.Get(CorrelationHeader))
		if !ok {
			id, ok = logger.NormalizeCorrelationID(c.Get("X-Request-ID"))
		}
		if !ok {
			id = uuid.NewString()
		}

		c.Locals(logger.CorrelationField, id)
		c.Set(CorrelationHeader, id)
		c.SetUserContext(logger.WithCorrelationID(c.UserContext(), id))

		return c.Next()
	}
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(logger.CorrelationField).(string); ok {
		return id
	}
	return logger.CorrelationID(c.UserContext())
}
