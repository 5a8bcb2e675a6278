package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/middleware"
)

// errorBody mirrors utils.ErrorResponse with field-level details decoded as strings.
type errorBody struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	Details       map[string]string `json:"details"`
	CorrelationID string            `json:"correlation_id"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func asTeacher(teacherID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalTeacherID, teacherID)
		c.Locals(middleware.LocalTeacherEmail, teacherID+"@school.test")
		c.Locals(middleware.LocalTeacherName, "Ms. "+teacherID)
		return c.Next()
	}
}
