package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalIDFromContext(t *testing.T) {
	id := uuid.New()

	got, ok := PrincipalIDFromContext(WithPrincipalID(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = PrincipalIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = PrincipalIDFromContext(WithPrincipalID(context.Background(), uuid.Nil))
	assert.False(t, ok, "nil id is not a principal")

	_, ok = PrincipalIDFromContext(nil)
	assert.False(t, ok)
}

func TestPrincipalIDFromFiber(t *testing.T) {
	id := uuid.New()
	app := fiber.New()

	var fromLocals, fromContext, missing bool
	app.Get("/locals", func(c *fiber.Ctx) error {
		c.Locals(PrincipalLocalsKey, id)
		got, ok := PrincipalIDFromFiber(c)
		fromLocals = ok && got == id
		return nil
	})
	app.Get("/context", func(c *fiber.Ctx) error {
		c.SetUserContext(WithPrincipalID(c.UserContext(), id))
		got, ok := PrincipalIDFromFiber(c)
		fromContext = ok && got == id
		return nil
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		_, ok := PrincipalIDFromFiber(c)
		missing = !ok
		return nil
	})

	for _, path := range []string{"/locals", "/context", "/missing"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.True(t, fromLocals)
	assert.True(t, fromContext)
	assert.True(t, missing)
}
