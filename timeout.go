package auth

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestTimeout bounds the user context of every request. A handler that
// runs past the deadline surfaces as ErrRequestTimeout.
func RequestTimeout(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if timeout <= 0 {
			return c.Next()
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()

		c.SetUserContext(ctx)

		err := c.Next()
		if err != nil && stderrors.Is(err, context.DeadlineExceeded) {
			return ErrRequestTimeout
		}
		if err == nil && stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrRequestTimeout
		}
		return err
	}
}
