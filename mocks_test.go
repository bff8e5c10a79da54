package auth_test

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	auth "github.com/netowork/go-auth"
	"github.com/stretchr/testify/mock"
)

// MockConfig implements auth.Config
type MockConfig struct {
	AccessSecret         string
	RefreshSecret        string
	AccessTTLMinutes     int
	RefreshTTLMinutes    int
	SecureCookies        bool
	ClientBaseURL        string
	VerificationTokenTTL time.Duration
	PasswordResetTTL     time.Duration
	ResetTokenSingleUse  bool
	StoreTimeout         time.Duration
}

func newMockConfig() *MockConfig {
	return &MockConfig{
		AccessSecret:         "access-secret-for-tests",
		RefreshSecret:        "refresh-secret-for-tests",
		AccessTTLMinutes:     15,
		RefreshTTLMinutes:    60 * 24 * 7,
		SecureCookies:        false,
		ClientBaseURL:        "http://localhost:3000",
		VerificationTokenTTL: 24 * time.Hour,
		PasswordResetTTL:     10 * time.Minute,
		ResetTokenSingleUse:  true,
		StoreTimeout:         time.Second,
	}
}

func (m *MockConfig) GetAccessSecret() string                 { return m.AccessSecret }
func (m *MockConfig) GetRefreshSecret() string                { return m.RefreshSecret }
func (m *MockConfig) GetAccessTokenTTLMinutes() int           { return m.AccessTTLMinutes }
func (m *MockConfig) GetRefreshTokenTTLMinutes() int          { return m.RefreshTTLMinutes }
func (m *MockConfig) GetSecureCookies() bool                  { return m.SecureCookies }
func (m *MockConfig) GetClientBaseURL() string                { return m.ClientBaseURL }
func (m *MockConfig) GetVerificationTokenTTL() time.Duration  { return m.VerificationTokenTTL }
func (m *MockConfig) GetPasswordResetTokenTTL() time.Duration { return m.PasswordResetTTL }
func (m *MockConfig) GetResetTokenSingleUse() bool            { return m.ResetTokenSingleUse }
func (m *MockConfig) GetStoreTimeout() time.Duration          { return m.StoreTimeout }

// MockMailer implements auth.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, html string) error {
	args := m.Called(ctx, to, subject, html)
	return args.Error(0)
}

// MockPrincipalLookup implements auth.PrincipalLookup
type MockPrincipalLookup struct {
	mock.Mock
}

func (m *MockPrincipalLookup) GetByID(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*auth.Principal); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type sentEmail struct {
	To      string
	Subject string
	HTML    string
}

var tokenInLink = regexp.MustCompile(`token=([A-Za-z0-9]+)`)

// Token extracts the ephemeral token from the email link.
func (e sentEmail) Token() string {
	m := tokenInLink.FindStringSubmatch(e.HTML)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// recordingMailer keeps every message and fails when err is set.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, HTML: html})
	return nil
}

func (m *recordingMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *recordingMailer) Last() sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentEmail{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Types() []auth.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType)
	}
	return out
}

// testClock is a settable time source shared by the token service and the
// ephemeral token registries.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
