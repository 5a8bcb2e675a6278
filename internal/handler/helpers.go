package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/middleware"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/utils"
)

func teacherIDFromContext(c *fiber.Ctx) string {
	return middleware.TeacherID(c)
}

func localString(c *fiber.Ctx, key string) string {
	if value, ok := c.Locals(key).(string); ok {
		return value
	}
	return ""
}

func optionalFormValue(c *fiber.Ctx, key string) *string {
	value := strings.TrimSpace(c.FormValue(key))
	if value == "" {
		return nil
	}
	return &value
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// validationFailure reports field-level validation errors in the details section.
func validationFailure(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return utils.Fail(c, fiber.StatusBadRequest, "validation failed", details)
}

func internalError(base zerolog.Logger, c *fiber.Ctx, err error) error {
	requestLogger(base, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
