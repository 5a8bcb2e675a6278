package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/service"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/utils"
)

// MetricsHandler serves class and student vocabulary aggregates.
type MetricsHandler struct {
	service service.MetricsService
	logger  zerolog.Logger
}

// NewMetricsHandler constructs the handler.
func NewMetricsHandler(service service.MetricsService, logger zerolog.Logger) *MetricsHandler {
	return &MetricsHandler{
		service: service,
		logger:  logger.With().Str("component", "metrics_handler").Logger(),
	}
}

// Register attaches aggregate endpoints to the router group.
func (h *MetricsHandler) Register(router fiber.Router) {
	router.Get("/class/:assignment_id", h.class)
	router.Get("/student/:student_id", h.student)
}

func (h *MetricsHandler) class(c *fiber.Ctx) error {
	metrics, err := h.service.ClassMetrics(c.UserContext(), teacherIDFromContext(c), c.Params("assignment_id"))
	if err != nil {
		if errors.Is(err, service.ErrAssignmentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
		}
		return internalError(h.logger, c, err)
	}

	return utils.OK(c, metrics)
}

func (h *MetricsHandler) student(c *fiber.Ctx) error {
	metrics, err := h.service.StudentMetrics(c.UserContext(), teacherIDFromContext(c), c.Params("student_id"))
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		return internalError(h.logger, c, err)
	}

	return utils.OK(c, metrics)
}
