package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestDeadline bounds the request's user context by timeout, so service
// and gateway calls made through c.UserContext() stop with the request.
// A non-positive timeout leaves the context untouched.
func RequestDeadline(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if timeout <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
