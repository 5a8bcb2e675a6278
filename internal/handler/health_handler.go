package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/dto"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/middleware"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/service"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/utils"
)

// HealthCheck reports liveness without touching any dependency.
func HealthCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.OK(c, dto.HealthResponse{Status: "healthy"})
	}
}

// AuthHandler confirms bearer tokens and provisions the teacher record.
type AuthHandler struct {
	service service.TeacherService
	logger  zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service service.TeacherService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register attaches auth endpoints to an authenticated router group.
func (h *AuthHandler) Register(router fiber.Router) {
	router.Get("/health", h.health)
}

func (h *AuthHandler) health(c *fiber.Ctx) error {
	response, err := h.service.Ensure(
		c.UserContext(),
		teacherIDFromContext(c),
		localString(c, middleware.LocalTeacherEmail),
		localString(c, middleware.LocalTeacherName),
	)
	if err != nil {
		if errors.Is(err, service.ErrTeacherIdentityRequired) {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		return internalError(h.logger, c, err)
	}

	return utils.OK(c, response)
}
