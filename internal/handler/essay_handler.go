package handler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/dto"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/models"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/service"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/utils"
)

const (
	defaultMaxUploadBytes     = 256 * 1024
	defaultStreamPollInterval = 3 * time.Second
	localStreamStatus         = "essay_stream_status"
)

// EssayEventSource delivers essay update notifications to in-process listeners.
type EssayEventSource interface {
	Subscribe(listener func(service.EssayUpdatedEvent)) func()
}

// EssayHandlerConfig tunes upload limits and the status stream.
type EssayHandlerConfig struct {
	MaxUploadBytes     int64
	StreamPollInterval time.Duration
	SubmitLimiter      fiber.Handler
}

// EssayHandler serves essay submission, status and feedback override endpoints.
type EssayHandler struct {
	service        service.EssayService
	events         EssayEventSource
	maxUploadBytes int64
	pollInterval   time.Duration
	submitLimiter  fiber.Handler
	logger         zerolog.Logger
}

// NewEssayHandler constructs the handler. events may be nil, in which case the stream only polls.
func NewEssayHandler(service service.EssayService, events EssayEventSource, cfg EssayHandlerConfig, logger zerolog.Logger) *EssayHandler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.StreamPollInterval <= 0 {
		cfg.StreamPollInterval = defaultStreamPollInterval
	}

	return &EssayHandler{
		service:        service,
		events:         events,
		maxUploadBytes: cfg.MaxUploadBytes,
		pollInterval:   cfg.StreamPollInterval,
		submitLimiter:  cfg.SubmitLimiter,
		logger:         logger.With().Str("component", "essay_handler").Logger(),
	}
}

// Register attaches the submission and status endpoints under /essay.
func (h *EssayHandler) Register(router fiber.Router) {
	submit := []fiber.Handler{h.create}
	upload := []fiber.Handler{h.upload}
	if h.submitLimiter != nil {
		submit = append([]fiber.Handler{h.submitLimiter}, submit...)
		upload = append([]fiber.Handler{h.submitLimiter}, upload...)
	}

	router.Post("", submit...)
	router.Post("/upload", upload...)
	router.Get("/:essay_id", h.get)
	router.Get("/:essay_id/stream", h.streamUpgrade, websocket.New(h.stream))
}

// RegisterOverride attaches the authenticated feedback override endpoint under /essays.
func (h *EssayHandler) RegisterOverride(router fiber.Router) {
	router.Patch("/:essay_id/override", h.override)
}

// RegisterAssignmentUpload attaches the presigned upload endpoint under /assignments.
func (h *EssayHandler) RegisterAssignmentUpload(router fiber.Router) {
	router.Post("/:id/upload-url", h.uploadURL)
}

func (h *EssayHandler) uploadURL(c *fiber.Ctx) error {
	var payload dto.UploadURLRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.CreateUploadURL(c.UserContext(), teacherIDFromContext(c), c.Params("id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, response)
}

func (h *EssayHandler) create(c *fiber.Ctx) error {
	var payload dto.EssayCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Create(c.UserContext(), teacherIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, response)
}

func (h *EssayHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}
	if file.Size > h.maxUploadBytes {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "essay file is too large")
	}

	reader, err := file.Open()
	if err != nil {
		return h.internalError(c, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(io.LimitReader(reader, h.maxUploadBytes+1))
	if err != nil {
		return h.internalError(c, err)
	}
	if int64(len(content)) > h.maxUploadBytes {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "essay file is too large")
	}

	payload := dto.EssayCreateRequest{
		AssignmentID: optionalFormValue(c, "assignment_id"),
		StudentID:    optionalFormValue(c, "student_id"),
	}

	response, err := h.service.Upload(c.UserContext(), teacherIDFromContext(c), payload, content)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, response)
}

func (h *EssayHandler) get(c *fiber.Ctx) error {
	essay, err := h.service.Get(c.UserContext(), c.Params("essay_id"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, essay)
}

func (h *EssayHandler) override(c *fiber.Ctx) error {
	var payload dto.EssayOverrideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Override(c.UserContext(), teacherIDFromContext(c), c.Params("essay_id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, response)
}

func (h *EssayHandler) streamUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return utils.SendError(c, fiber.StatusUpgradeRequired, "websocket upgrade required")
	}

	essay, err := h.service.Get(c.UserContext(), c.Params("essay_id"))
	if err != nil {
		return h.handleError(c, err)
	}

	c.Locals(localStreamStatus, essay.Status)
	return c.Next()
}

// stream pushes a frame each time the essay moves forward and closes once it is processed.
func (h *EssayHandler) stream(conn *websocket.Conn) {
	essayID := conn.Params("essay_id")
	logger := h.logger.With().Str("essay_id", essayID).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	defer func() {
		_ = conn.Close()
		<-readerDone
	}()

	wake := make(chan struct{}, 1)
	if h.events != nil {
		unsubscribe := h.events.Subscribe(func(event service.EssayUpdatedEvent) {
			if event.EssayID != essayID {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()
	}

	status, _ := conn.Locals(localStreamStatus).(string)
	if err := conn.WriteJSON(dto.EssayStatusFrame{EssayID: essayID, Status: status}); err != nil {
		logger.Debug().Err(err).Msg("status stream closed by client")
		return
	}
	if status == models.EssayStatusProcessed {
		closeStream(conn)
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wake:
		}

		essay, err := h.service.Get(ctx, essayID)
		if err != nil {
			logger.Warn().Err(err).Msg("status stream lookup failed")
			return
		}
		if models.StatusRank(essay.Status) <= models.StatusRank(status) {
			continue
		}

		status = essay.Status
		if err := conn.WriteJSON(dto.EssayStatusFrame{EssayID: essayID, Status: status}); err != nil {
			logger.Debug().Err(err).Msg("status stream closed by client")
			return
		}
		if status == models.EssayStatusProcessed {
			closeStream(conn)
			return
		}
	}
}

func closeStream(conn *websocket.Conn) {
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, models.EssayStatusProcessed)
	_ = conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
}

func (h *EssayHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrEssayTextRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return validationFailure(c, err)
	case errors.Is(err, service.ErrEssayNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "essay not found")
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrUnsupportedEssayType):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, service.ErrEssayForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "essay belongs to another teacher")
	case errors.Is(err, service.ErrEssayNotProcessed), errors.Is(err, service.ErrEssayConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *EssayHandler) internalError(c *fiber.Ctx, err error) error {
	return internalError(h.logger, c, err)
}
