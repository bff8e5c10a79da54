package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Logger takes a constant message followed by slog style key/value pairs.
type Logger = glog.Logger

// LoggerProvider hands out named loggers.
type LoggerProvider = glog.LoggerProvider

// Config holds auth options
type Config interface {
	GetAccessSecret() string
	GetRefreshSecret() string
	GetAccessTokenTTLMinutes() int
	GetRefreshTokenTTLMinutes() int
	GetSecureCookies() bool
	GetClientBaseURL() string
	GetVerificationTokenTTL() time.Duration
	GetPasswordResetTokenTTL() time.Duration
	GetResetTokenSingleUse() bool
	GetStoreTimeout() time.Duration
}

// Principals is the storage capability the flows need for principal records.
type Principals interface {
	GetByEmail(ctx context.Context, email string) (*Principal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Principal, error)
	Create(ctx context.Context, principal *Principal) (*Principal, error)
	CreateTx(ctx context.Context, tx bun.IDB, principal *Principal) (*Principal, error)
	UpdateIsVerified(ctx context.Context, id uuid.UUID, verified bool) error
	UpdateIsVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, verified bool) error
	UpdatePassword(ctx context.Context, id uuid.UUID, digest string) error
}

// PrincipalLookup is the read side used by the mediator and rotation.
type PrincipalLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Principal, error)
}

// Mailer sends a rendered HTML email to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// PasswordHasher hashes and verifies password digests.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

