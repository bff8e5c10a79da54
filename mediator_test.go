package auth_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	auth "github.com/netowork/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediator_Admit(t *testing.T) {
	t.Run("no credentials", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.mediator().Admit(context.Background(), auth.Credentials{})
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})

	t.Run("valid access", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair := env.startSession(t, p)

		admission, err := env.mediator().Admit(context.Background(), auth.Credentials{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
		require.NoError(t, err)
		assert.Equal(t, p.ID, admission.PrincipalID)
		assert.Nil(t, admission.Renewed)

		sid, _ := env.pointer(t, p.ID)
		assert.Equal(t, pair.SessionID, sid, "no rotation for a valid access credential")
	})

	t.Run("forged access is not rescued by refresh", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair := env.startSession(t, p)

		_, err := env.mediator().Admit(context.Background(), auth.Credentials{
			AccessToken:  "garbage",
			RefreshToken: pair.RefreshToken,
		})
		assert.ErrorIs(t, err, auth.ErrJwtError)

		sid, _ := env.pointer(t, p.ID)
		assert.Equal(t, pair.SessionID, sid)
	})

	t.Run("expired access rotates", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair := env.startSession(t, p)
		env.clock.Advance(env.tokens.AccessTTL())

		admission, err := env.mediator().Admit(context.Background(), auth.Credentials{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
		require.NoError(t, err)
		require.NotNil(t, admission.Renewed)
		assert.Equal(t, p.ID, admission.PrincipalID)

		sid, _ := env.pointer(t, p.ID)
		assert.Equal(t, admission.Renewed.SessionID, sid)
	})

	t.Run("missing access rotates", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair := env.startSession(t, p)

		admission, err := env.mediator().Admit(context.Background(), auth.Credentials{
			RefreshToken: pair.RefreshToken,
		})
		require.NoError(t, err)
		assert.NotNil(t, admission.Renewed)
	})

	t.Run("expired access without refresh", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair := env.startSession(t, p)
		env.clock.Advance(env.tokens.AccessTTL())

		_, err := env.mediator().Admit(context.Background(), auth.Credentials{
			AccessToken: pair.AccessToken,
		})
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})

	t.Run("deleted principal", func(t *testing.T) {
		env := newTestEnv(t)
		pair, err := env.tokens.IssuePair(uuid.New())
		require.NoError(t, err)

		_, err = env.mediator().Admit(context.Background(), auth.Credentials{
			AccessToken: pair.AccessToken,
		})
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}

func TestMediatorMiddleware(t *testing.T) {
	t.Run("no cookies", func(t *testing.T) {
		env := newTestEnv(t)

		resp, body := doJSON(t, env.app(), http.MethodGet, "/users/me", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "error", body.Status)
		assert.Equal(t, auth.TextCodeUnauthorized, body.Code)
		assert.Equal(t, "Unauthorized", body.Message)
	})

	t.Run("valid access sets no cookies", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair := env.startSession(t, p)

		resp, body := doJSON(t, env.app(), http.MethodGet, "/users/me", nil, credentialCookies(pair)...)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Cookies())
		assert.Contains(t, string(body.Data), p.ID.String())
	})

	t.Run("garbage access", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair := env.startSession(t, p)

		resp, body := doJSON(t, env.app(), http.MethodGet, "/users/me", nil,
			&http.Cookie{Name: auth.AccessTokenCookie, Value: "garbage"},
			&http.Cookie{Name: auth.RefreshTokenCookie, Value: pair.RefreshToken},
		)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, auth.TextCodeUnauthorized, body.Code)
		assert.Empty(t, resp.Cookies())
	})

	t.Run("expired access renews cookies", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair := env.startSession(t, p)
		env.clock.Advance(env.tokens.AccessTTL() + time.Minute)

		resp, _ := doJSON(t, env.app(), http.MethodGet, "/users/me", nil, credentialCookies(pair)...)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		access := cookieByName(resp, auth.AccessTokenCookie)
		refresh := cookieByName(resp, auth.RefreshTokenCookie)
		require.NotNil(t, access)
		require.NotNil(t, refresh)
		assert.NotEqual(t, pair.RefreshToken, refresh.Value)
		assert.True(t, access.HttpOnly)

		claims, err := env.tokens.VerifyRefresh(refresh.Value)
		require.NoError(t, err)
		sid, _ := env.pointer(t, p.ID)
		assert.Equal(t, claims.SessionID, sid, "pointer follows the renewed refresh cookie")

		_, err = env.tokens.VerifyAccess(access.Value)
		assert.NoError(t, err)
	})

	t.Run("stale refresh revokes", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		stale := env.startSession(t, p)
		env.startSession(t, p)

		resp, body := doJSON(t, env.app(), http.MethodGet, "/users/me", nil,
			&http.Cookie{Name: auth.RefreshTokenCookie, Value: stale.RefreshToken},
		)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, auth.TextCodeUnauthorized, body.Code)

		_, found := env.pointer(t, p.ID)
		assert.False(t, found)
	})

	t.Run("deleted principal", func(t *testing.T) {
		env := newTestEnv(t)
		pair, err := env.tokens.IssuePair(uuid.New())
		require.NoError(t, err)

		resp, body := doJSON(t, env.app(), http.MethodGet, "/users/me", nil, credentialCookies(pair)...)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, auth.TextCodeUserNotFound, body.Code)
	})

	t.Run("expired refresh", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair := env.startSession(t, p)
		env.clock.Advance(env.tokens.RefreshTTL())

		resp, body := doJSON(t, env.app(), http.MethodGet, "/users/me", nil, credentialCookies(pair)...)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, auth.TextCodeUnauthorized, body.Code)
	})
}

func TestAccessState_String(t *testing.T) {
	assert.Equal(t, "missing", auth.AccessMissing.String())
	assert.Equal(t, "valid", auth.AccessValid.String())
	assert.Equal(t, "expired", auth.AccessExpired.String())
	assert.Equal(t, "invalid", auth.AccessInvalid.String())
}

func TestMediator_RejectsTokenWithoutSubject(t *testing.T) {
	env := newTestEnv(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(env.clock.Now().Add(time.Minute)),
	}).SignedString([]byte(env.cfg.AccessSecret))
	require.NoError(t, err)

	_, err = env.mediator().Admit(context.Background(), auth.Credentials{AccessToken: token})
	assert.ErrorIs(t, err, auth.ErrJwtError)
}

func TestMiddleware_RejectionsAreIndistinguishable(t *testing.T) {
	rawBody := func(t *testing.T, env *testEnv, cookies ...*http.Cookie) (int, string) {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		for _, cookie := range cookies {
			req.AddCookie(cookie)
		}
		resp, err := env.app().Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(raw)
	}

	cases := []struct {
		name    string
		cookies func(t *testing.T, env *testEnv) []*http.Cookie
	}{
		{
			name: "no credentials",
			cookies: func(t *testing.T, env *testEnv) []*http.Cookie {
				return nil
			},
		},
		{
			name: "malformed access",
			cookies: func(t *testing.T, env *testEnv) []*http.Cookie {
				return []*http.Cookie{{Name: auth.AccessTokenCookie, Value: "garbage"}}
			},
		},
		{
			name: "access signed with another secret",
			cookies: func(t *testing.T, env *testEnv) []*http.Cookie {
				p := env.createPrincipal(t, "user@example.com", "password123", true)
				cfg := newMockConfig()
				cfg.AccessSecret = "not-the-server-secret"
				token, _, err := auth.NewTokenService(cfg, auth.WithClock(env.clock.Now)).IssueAccess(p.ID)
				require.NoError(t, err)
				return []*http.Cookie{{Name: auth.AccessTokenCookie, Value: token}}
			},
		},
		{
			name: "expired refresh",
			cookies: func(t *testing.T, env *testEnv) []*http.Cookie {
				p := env.createPrincipal(t, "user@example.com", "password123", true)
				pair := env.startSession(t, p)
				env.clock.Advance(env.tokens.RefreshTTL())
				return []*http.Cookie{{Name: auth.RefreshTokenCookie, Value: pair.RefreshToken}}
			},
		},
		{
			name: "replayed refresh",
			cookies: func(t *testing.T, env *testEnv) []*http.Cookie {
				p := env.createPrincipal(t, "user@example.com", "password123", true)
				stale := env.startSession(t, p)
				env.startSession(t, p)
				return []*http.Cookie{{Name: auth.RefreshTokenCookie, Value: stale.RefreshToken}}
			},
		},
	}

	var want string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			status, body := rawBody(t, env, tc.cookies(t, env)...)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.JSONEq(t, `{"status":"error","message":"Unauthorized","code":"UNAUTHORIZED"}`, body)
			if want == "" {
				want = body
			}
			assert.Equal(t, want, body)
		})
	}
}
