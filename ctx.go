package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// PrincipalLocalsKey is the fiber Locals key holding the admitted principal id.
const PrincipalLocalsKey = "principal_id"

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipalID sets the principal id in the given context
func WithPrincipalID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, principalCtxKey, id)
}

// PrincipalIDFromContext finds the principal id from the context.
func PrincipalIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(principalCtxKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// PrincipalIDFromFiber extracts the principal id stored by the mediator.
func PrincipalIDFromFiber(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(PrincipalLocalsKey).(uuid.UUID)
	if ok && id != uuid.Nil {
		return id, true
	}
	return PrincipalIDFromContext(c.UserContext())
}
