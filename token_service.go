package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenPair is the result of a sign-in or a rotation
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	SessionID        uuid.UUID
}

// TokenService issues and verifies access and refresh credentials. Access
// and refresh tokens are signed with distinct secrets.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
	logger        Logger
}

type TokenServiceOption func(*TokenService)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

func WithTokenServiceLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a TokenService from the auth config. TTLs are
// expressed in minutes.
func NewTokenService(cfg Config, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		accessSecret:  []byte(cfg.GetAccessSecret()),
		refreshSecret: []byte(cfg.GetRefreshSecret()),
		accessTTL:     time.Duration(cfg.GetAccessTokenTTLMinutes()) * time.Minute,
		refreshTTL:    time.Duration(cfg.GetRefreshTokenTTLMinutes()) * time.Minute,
		now:           time.Now,
		logger:        defaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// AccessTTL is the lifetime of access credentials.
func (ts *TokenService) AccessTTL() time.Duration { return ts.accessTTL }

// Now is the clock credentials are issued and verified against.
func (ts *TokenService) Now() time.Time { return ts.now() }

// RefreshTTL is the lifetime of refresh credentials.
func (ts *TokenService) RefreshTTL() time.Duration { return ts.refreshTTL }

// IssueAccess signs an access credential for principalID.
func (ts *TokenService) IssueAccess(principalID uuid.UUID) (string, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(ts.accessTTL)

	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	ensureTokenID(&claims.RegisteredClaims)

	token, err := ts.sign(claims, ts.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// IssueRefresh signs a refresh credential bound to a fresh session id.
func (ts *TokenService) IssueRefresh(principalID uuid.UUID) (string, uuid.UUID, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(ts.refreshTTL)
	sessionID := uuid.New()

	claims := &RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
	}
	ensureTokenID(&claims.RegisteredClaims)

	token, err := ts.sign(claims, ts.refreshSecret)
	if err != nil {
		return "", uuid.Nil, time.Time{}, err
	}
	return token, sessionID, expiresAt, nil
}

// IssuePair issues both credentials. The session id is always new.
func (ts *TokenService) IssuePair(principalID uuid.UUID) (*TokenPair, error) {
	access, accessExp, err := ts.IssueAccess(principalID)
	if err != nil {
		return nil, err
	}

	refresh, sessionID, refreshExp, err := ts.IssueRefresh(principalID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		SessionID:        sessionID,
	}, nil
}

// VerifyAccess validates an access credential and returns its claims.
func (ts *TokenService) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := ts.parse(token, claims, ts.accessSecret); err != nil {
		return nil, err
	}
	if _, err := claims.PrincipalID(); err != nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// VerifyRefresh validates a refresh credential and returns its claims.
func (ts *TokenService) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := ts.parse(token, claims, ts.refreshSecret); err != nil {
		return nil, err
	}
	if _, err := claims.PrincipalID(); err != nil || claims.SessionID == uuid.Nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (ts *TokenService) sign(claims jwt.Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

func (ts *TokenService) parse(token string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Debug("token service rejected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenBadSignature
	default:
		return ErrTokenMalformed
	}
}
