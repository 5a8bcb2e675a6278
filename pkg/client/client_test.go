package client_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/lousydropout/vocab-recommendation-sub000/pkg/client"
)

type fiberDoer struct {
	app *fiber.App
}

func (f fiberDoer) Do(req *http.Request) (*http.Response, error) {
	return f.app.Test(req, -1)
}

// statusServer answers GET /essay/:id with the next status from a script, repeating the last one.
type statusServer struct {
	mu       sync.Mutex
	statuses []string
	calls    int
	auth     []string
}

func (s *statusServer) app() *fiber.App {
	app := fiber.New()
	app.Get("/essay/:id", func(c *fiber.Ctx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.auth = append(s.auth, c.Get("Authorization"))

		idx := s.calls
		if idx >= len(s.statuses) {
			idx = len(s.statuses) - 1
		}
		s.calls++

		status := s.statuses[idx]
		switch status {
		case "404":
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "essay not found"})
		case "401":
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "unauthorized"})
		case "500":
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "internal server error"})
		}

		data := fiber.Map{"essay_id": c.Params("id"), "status": status, "feedback": []fiber.Map{}, "metrics": nil}
		if status == client.StatusProcessed {
			data["metrics"] = fiber.Map{"word_count": 4, "unique_words": 4, "type_token_ratio": 1.0}
			data["feedback"] = []fiber.Map{{"word": "ubiquitous", "correct": true, "comment": "Good"}}
		}
		return c.JSON(data)
	})
	app.Post("/essay", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"essay_id": "essay-1", "status": client.StatusAwaitingProcessing, "file_key": "essays/essay-1.txt",
		})
	})
	return app
}

func newClient(t *testing.T, server *statusServer, tokens client.TokenProvider) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{
		BaseURL: "http://vocab.test/",
		Tokens:  tokens,
		HTTP:    fiberDoer{app: server.app()},
	})
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := client.New(client.Config{})
	require.Error(t, err)
}

func TestSubmitEssay(t *testing.T) {
	server := &statusServer{statuses: []string{client.StatusAwaitingProcessing}}
	c := newClient(t, server, nil)

	submission, err := c.SubmitEssay(context.Background(), client.SubmitRequest{EssayText: "Words."})
	require.NoError(t, err)
	require.Equal(t, "essay-1", submission.EssayID)
	require.Equal(t, client.StatusAwaitingProcessing, submission.Status)
}

func TestWaitForProcessedReturnsProcessedEssay(t *testing.T) {
	server := &statusServer{statuses: []string{
		client.StatusAwaitingProcessing,
		client.StatusProcessing,
		client.StatusProcessing,
		client.StatusProcessed,
	}}
	c := newClient(t, server, client.StaticToken("token-1"))

	essay, err := c.WaitForProcessed(context.Background(), "essay-1", time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, client.StatusProcessed, essay.Status)
	require.NotNil(t, essay.Metrics)
	require.Equal(t, 4, essay.Metrics.WordCount)
	require.Len(t, essay.Feedback, 1)
	require.Equal(t, 4, server.calls)
	require.Equal(t, "Bearer token-1", server.auth[0])
}

func TestWaitForProcessedAnonymousSendsNoAuthorization(t *testing.T) {
	server := &statusServer{statuses: []string{client.StatusProcessed}}
	c := newClient(t, server, nil)

	_, err := c.WaitForProcessed(context.Background(), "essay-1", time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "", server.auth[0])
}

func TestWaitForProcessedNotFound(t *testing.T) {
	server := &statusServer{statuses: []string{"404"}}
	c := newClient(t, server, nil)

	_, err := c.WaitForProcessed(context.Background(), "missing", time.Millisecond)
	require.ErrorIs(t, err, client.ErrNotFound)
}

func TestWaitForProcessedUnauthorizedClearsToken(t *testing.T) {
	server := &statusServer{statuses: []string{client.StatusProcessing, "401"}}
	tokens := client.NewMemoryTokenStore("expired")
	c := newClient(t, server, tokens)

	_, err := c.WaitForProcessed(context.Background(), "essay-1", time.Millisecond)
	require.ErrorIs(t, err, client.ErrUnauthorized)

	token, err := tokens.Token(context.Background())
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestWaitForProcessedDetectsRegression(t *testing.T) {
	server := &statusServer{statuses: []string{client.StatusProcessing, client.StatusAwaitingProcessing}}
	c := newClient(t, server, nil)

	_, err := c.WaitForProcessed(context.Background(), "essay-1", time.Millisecond)
	require.ErrorIs(t, err, client.ErrStatusRegressed)
}

func TestWaitForProcessedServerError(t *testing.T) {
	server := &statusServer{statuses: []string{"500"}}
	c := newClient(t, server, nil)

	_, err := c.WaitForProcessed(context.Background(), "essay-1", time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "internal server error")
	require.False(t, errors.Is(err, client.ErrNotFound))
}

func TestWaitForProcessedHonoursDeadline(t *testing.T) {
	server := &statusServer{statuses: []string{client.StatusAwaitingProcessing}}
	c := newClient(t, server, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.WaitForProcessed(ctx, "essay-1", 10*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, server.calls, 1)
}

func TestWaitForProcessedWaitsOneIntervalBeforeFirstPoll(t *testing.T) {
	server := &statusServer{statuses: []string{client.StatusProcessed}}
	c := newClient(t, server, nil)

	started := time.Now()
	essay, err := c.WaitForProcessed(context.Background(), "essay-1", 40*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, client.StatusProcessed, essay.Status)
	require.GreaterOrEqual(t, time.Since(started), 40*time.Millisecond)
	require.Equal(t, 1, server.calls)
}

func TestWaitForProcessedDeadlineBeforeFirstInterval(t *testing.T) {
	server := &statusServer{statuses: []string{client.StatusProcessed}}
	c := newClient(t, server, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.WaitForProcessed(ctx, "essay-1", time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, server.calls)
}

func TestWaitForProcessedCancelledBeforeFirstPoll(t *testing.T) {
	server := &statusServer{statuses: []string{client.StatusProcessed}}
	c := newClient(t, server, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.WaitForProcessed(ctx, "essay-1", time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStaticTokenClearIsNoop(t *testing.T) {
	token := client.StaticToken("fixed")
	token.Clear()
	value, err := token.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fixed", value)
}
