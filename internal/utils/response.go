package utils

import "github.com/gofiber/fiber/v2"

// ErrorResponse is the body of every failed request. Successful requests return the resource itself.
type ErrorResponse struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message"`
	Details       interface{} `json:"details,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// JSON writes body unwrapped with the given status code.
func JSON(c *fiber.Ctx, status int, body interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(body)
}

// OK writes body with 200.
func OK(c *fiber.Ctx, body interface{}) error {
	return JSON(c, fiber.StatusOK, body)
}

// Created writes a newly created resource with 201.
func Created(c *fiber.Ctx, body interface{}) error {
	return JSON(c, fiber.StatusCreated, body)
}

// NoContent answers 204 with an empty body.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

// Fail sends an error payload with optional details, e.g. validation failures.
// The request's correlation id is echoed so clients can quote it.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	if message == "" {
		message = "error"
	}

	correlationID, _ := c.Locals("correlation_id").(string)
	return c.Status(status).JSON(ErrorResponse{
		Success:       false,
		Message:       message,
		Details:       details,
		CorrelationID: correlationID,
	})
}
