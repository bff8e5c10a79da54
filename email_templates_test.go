package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	auth "github.com/netowork/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailTemplates(t *testing.T) {
	templates, err := auth.NewEmailTemplates("https://app.example.com/")
	require.NoError(t, err)

	principal := &auth.Principal{
		ID:        uuid.New(),
		Email:     "jane+test@example.com",
		FirstName: "Jane",
	}
	token := auth.EphemeralToken{
		Token:       "abc123",
		PrincipalID: principal.ID,
		ExpiresAt:   time.Now().Add(time.Hour),
	}

	t.Run("verification", func(t *testing.T) {
		html, err := templates.Verification(principal, token, "1 day")
		require.NoError(t, err)
		assert.Contains(t, html, "Hello Jane,")
		assert.Contains(t, html, `href="https://app.example.com/verify-account?token=abc123"`)
		assert.Contains(t, html, "expires in 1 day")
	})

	t.Run("password reset", func(t *testing.T) {
		html, err := templates.PasswordReset(principal, token, "10 minutes")
		require.NoError(t, err)
		assert.Contains(t, html, "/reset-password?token=abc123")
		assert.Contains(t, html, "email=jane%2Btest%40example.com")
		assert.Contains(t, html, "expires in 10 minutes")
	})

	t.Run("names are escaped", func(t *testing.T) {
		html, err := templates.Verification(&auth.Principal{FirstName: "<b>Eve</b>"}, token, "1 day")
		require.NoError(t, err)
		assert.NotContains(t, html, "<b>Eve</b>")
	})
}
