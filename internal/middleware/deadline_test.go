package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestDeadlineReachesHandlers(t *testing.T) {
	app := fiber.New()
	app.Use(RequestDeadline(2 * time.Second))

	var (
		hasDeadline bool
		left        time.Duration
	)
	app.Get("/orders", func(c *fiber.Ctx) error {
		var deadline time.Time
		deadline, hasDeadline = c.UserContext().Deadline()
		left = time.Until(deadline)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/orders", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, hasDeadline)
	assert.True(t, left > 0 && left <= 2*time.Second, left.String())
}

func TestRequestDeadlineCancelsSlowWork(t *testing.T) {
	app := fiber.New()
	app.Use(RequestDeadline(20 * time.Millisecond))

	var ctxErr error
	app.Get("/slow", func(c *fiber.Ctx) error {
		select {
		case <-c.UserContext().Done():
			ctxErr = c.UserContext().Err()
			return c.SendStatus(fiber.StatusServiceUnavailable)
		case <-time.After(time.Second):
			return c.SendStatus(fiber.StatusOK)
		}
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/slow", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
	assert.True(t, errors.Is(ctxErr, context.DeadlineExceeded))
}

func TestRequestDeadlineDisabled(t *testing.T) {
	app := fiber.New()
	app.Use(RequestDeadline(0))

	hasDeadline := true
	app.Get("/", func(c *fiber.Ctx) error {
		_, hasDeadline = c.UserContext().Deadline()
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.False(t, hasDeadline)
}
