package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	auth "github.com/netowork/go-auth"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// newTestDB returns a private in-memory sqlite database with every
// migration applied.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := auth.OpenDB(auth.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, auth.Migrate(context.Background(), db, auth.DriverSQLite))

	return db
}

type testEnv struct {
	db           *bun.DB
	cfg          *MockConfig
	clock        *testClock
	repo         auth.RepositoryManager
	sessions     auth.SessionStore
	tokens       *auth.TokenService
	hashes       *auth.HashPool
	verification *auth.TokenRegistry
	resets       *auth.TokenRegistry
	templates    *auth.EmailTemplates
	mailer       *recordingMailer
	sink         *capturingSink
	cookies      *auth.CookieWriter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	cfg := newMockConfig()
	clock := newTestClock()
	repo := auth.NewRepositoryManager(db)

	templates, err := auth.NewEmailTemplates(cfg.ClientBaseURL)
	require.NoError(t, err)

	return &testEnv{
		db:       db,
		cfg:      cfg,
		clock:    clock,
		repo:     repo,
		sessions: auth.NewBunSessionStore(db, cfg.StoreTimeout),
		tokens:   auth.NewTokenService(cfg, auth.WithClock(clock.Now)),
		hashes:   auth.NewHashPool(auth.NewBcryptHasher(bcrypt.MinCost), 2),
		verification: auth.NewTokenRegistry(
			auth.TokenKindVerification,
			repo.VerificationTokens(),
			cfg.VerificationTokenTTL,
			auth.WithRegistryClock(clock.Now),
		),
		resets: auth.NewTokenRegistry(
			auth.TokenKindPasswordReset,
			repo.PasswordResetTokens(),
			cfg.PasswordResetTTL,
			auth.WithRegistryClock(clock.Now),
		),
		templates: templates,
		mailer:    &recordingMailer{},
		sink:      &capturingSink{},
		cookies:   auth.NewCookieWriter(cfg),
	}
}

// createPrincipal inserts a principal directly, bypassing sign-up.
func (e *testEnv) createPrincipal(t *testing.T, email, password string, verified bool) *auth.Principal {
	t.Helper()

	digest, err := e.hashes.Hash(context.Background(), password)
	require.NoError(t, err)

	p, err := e.repo.Principals().Create(context.Background(), &auth.Principal{
		Email:          email,
		PasswordDigest: digest,
		FirstName:      "John",
		LastName:       "Doe",
		Role:           auth.RoleFreelancer,
		Verified:       verified,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) signUp() *auth.SignUpHandler {
	return auth.NewSignUpHandler(e.repo, e.hashes, e.verification, e.mailer, e.templates).WithActivitySink(e.sink)
}

func (e *testEnv) signIn() *auth.SignInHandler {
	return auth.NewSignInHandler(e.repo, e.hashes, e.tokens, e.sessions).WithActivitySink(e.sink)
}

func (e *testEnv) verifyAccount() *auth.VerifyAccountHandler {
	return auth.NewVerifyAccountHandler(e.repo, e.verification).WithActivitySink(e.sink)
}

func (e *testEnv) forgotPassword() *auth.ForgotPasswordHandler {
	return auth.NewForgotPasswordHandler(e.repo, e.resets, e.mailer, e.templates).WithActivitySink(e.sink)
}

func (e *testEnv) resetPassword() *auth.ResetPasswordHandler {
	return auth.NewResetPasswordHandler(e.repo, e.resets, e.hashes).WithActivitySink(e.sink)
}

func (e *testEnv) resendVerification() *auth.ResendVerificationHandler {
	return auth.NewResendVerificationHandler(e.repo, e.verification, e.mailer, e.templates).WithActivitySink(e.sink)
}

func (e *testEnv) signOut() *auth.SignOutHandler {
	return auth.NewSignOutHandler(e.sessions).WithActivitySink(e.sink).WithClock(e.clock.Now)
}

func (e *testEnv) rotator() *auth.Rotator {
	return auth.NewRotator(e.tokens, e.sessions, e.repo.Principals()).WithActivitySink(e.sink)
}

func (e *testEnv) mediator() *auth.Mediator {
	return auth.NewMediator(e.tokens, e.rotator(), e.repo.Principals(), e.cookies)
}

func (e *testEnv) controller() *auth.AuthController {
	return auth.NewAuthController(e.repo, auth.AuthHandlers{
		SignUp:             e.signUp(),
		SignIn:             e.signIn(),
		VerifyAccount:      e.verifyAccount(),
		ForgotPassword:     e.forgotPassword(),
		ResetPassword:      e.resetPassword(),
		ResendVerification: e.resendVerification(),
		SignOut:            e.signOut(),
	}, e.cookies)
}

func (e *testEnv) app(opts ...func(*auth.AppOptions)) *fiber.App {
	options := auth.AppOptions{
		Controller: e.controller(),
		Mediator:   e.mediator(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return auth.NewHTTPApp(options)
}

type apiResponse struct {
	Status   string            `json:"status"`
	Message  string            `json:"message"`
	Code     string            `json:"code"`
	Messages map[string]string `json:"messages"`
	Data     json.RawMessage   `json:"data"`
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, cookies ...*http.Cookie) (*http.Response, apiResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var out apiResponse
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}

	return resp, out
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func credentialCookies(pair *auth.TokenPair) []*http.Cookie {
	return []*http.Cookie{
		{Name: auth.AccessTokenCookie, Value: pair.AccessToken},
		{Name: auth.RefreshTokenCookie, Value: pair.RefreshToken},
	}
}
