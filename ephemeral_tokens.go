package auth

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenLength is the number of characters of an ephemeral token.
const TokenLength = 30

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// TokenKind distinguishes verification tokens from password reset tokens.
type TokenKind string

const (
	TokenKindVerification  TokenKind = "verification"
	TokenKindPasswordReset TokenKind = "password_reset"
)

// NotFound is the kind specific error for an unknown token.
func (k TokenKind) NotFound() *errors.Error {
	if k == TokenKindPasswordReset {
		return ErrPasswordResetTokenNotFound
	}
	return ErrVerificationTokenNotFound
}

// Expired is the kind specific error for an expired token.
func (k TokenKind) Expired() *errors.Error {
	if k == TokenKindPasswordReset {
		return ErrPasswordResetTokenExpired
	}
	return ErrVerificationTokenExpired
}

// TokenStore persists ephemeral tokens of one kind.
type TokenStore interface {
	Create(ctx context.Context, token EphemeralToken) error
	CreateTx(ctx context.Context, tx bun.IDB, token EphemeralToken) error
	// Replace stores token as the only one its principal holds.
	Replace(ctx context.Context, token EphemeralToken) error
	Get(ctx context.Context, token string) (EphemeralToken, bool, error)
	Delete(ctx context.Context, token string) error
	DeleteTx(ctx context.Context, tx bun.IDB, token string) error
	DeleteByPrincipalTx(ctx context.Context, tx bun.IDB, principalID uuid.UUID) error
}

type tokenRecord[T any] interface {
	*T
	ephemeral() *EphemeralToken
}

func (t *VerificationToken) ephemeral() *EphemeralToken  { return &t.EphemeralToken }
func (t *PasswordResetToken) ephemeral() *EphemeralToken { return &t.EphemeralToken }

// BunTokenStore stores tokens in the table mapped by T.
type BunTokenStore[T any, PT tokenRecord[T]] struct {
	db *bun.DB
}

func NewVerificationTokenStore(db *bun.DB) TokenStore {
	return &BunTokenStore[VerificationToken, *VerificationToken]{db: db}
}

func NewPasswordResetTokenStore(db *bun.DB) TokenStore {
	return &BunTokenStore[PasswordResetToken, *PasswordResetToken]{db: db}
}

func (s *BunTokenStore[T, PT]) record(token EphemeralToken) PT {
	rec := PT(new(T))
	*rec.ephemeral() = token
	return rec
}

func (s *BunTokenStore[T, PT]) Create(ctx context.Context, token EphemeralToken) error {
	return s.CreateTx(ctx, s.db, token)
}

func (s *BunTokenStore[T, PT]) CreateTx(ctx context.Context, tx bun.IDB, token EphemeralToken) error {
	_, err := tx.NewInsert().Model(s.record(token)).Exec(ctx)
	return err
}

func (s *BunTokenStore[T, PT]) Replace(ctx context.Context, token EphemeralToken) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.DeleteByPrincipalTx(ctx, tx, token.PrincipalID); err != nil {
			return err
		}
		return s.CreateTx(ctx, tx, token)
	})
}

func (s *BunTokenStore[T, PT]) Get(ctx context.Context, token string) (EphemeralToken, bool, error) {
	rec := PT(new(T))
	err := s.db.NewSelect().
		Model(rec).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return EphemeralToken{}, false, nil
		}
		return EphemeralToken{}, false, err
	}
	return *rec.ephemeral(), true, nil
}

func (s *BunTokenStore[T, PT]) Delete(ctx context.Context, token string) error {
	return s.DeleteTx(ctx, s.db, token)
}

func (s *BunTokenStore[T, PT]) DeleteTx(ctx context.Context, tx bun.IDB, token string) error {
	_, err := tx.NewDelete().
		Model((PT)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	return err
}

func (s *BunTokenStore[T, PT]) DeleteByPrincipalTx(ctx context.Context, tx bun.IDB, principalID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((PT)(nil)).
		Where("principal_id = ?", principalID).
		Exec(ctx)
	return err
}

// TokenRegistry issues, looks up and invalidates one-shot tokens of a
// single kind. Expiry is evaluated by the caller at use time.
type TokenRegistry struct {
	kind    TokenKind
	store   TokenStore
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

type TokenRegistryOption func(*TokenRegistry)

func WithRegistryClock(now func() time.Time) TokenRegistryOption {
	return func(r *TokenRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithRegistryTimeout(timeout time.Duration) TokenRegistryOption {
	return func(r *TokenRegistry) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

func NewTokenRegistry(kind TokenKind, store TokenStore, ttl time.Duration, opts ...TokenRegistryOption) *TokenRegistry {
	r := &TokenRegistry{
		kind:    kind,
		store:   store,
		ttl:     ttl,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *TokenRegistry) Kind() TokenKind { return r.kind }

// Now is the registry clock, used by callers to check expiry.
func (r *TokenRegistry) Now() time.Time { return r.now() }

// Mint builds a token for principalID without persisting it.
func (r *TokenRegistry) Mint(principalID uuid.UUID) (EphemeralToken, error) {
	value, err := RandomToken(TokenLength)
	if err != nil {
		return EphemeralToken{}, err
	}
	return EphemeralToken{
		Token:       value,
		PrincipalID: principalID,
		ExpiresAt:   r.now().Add(r.ttl).UTC(),
	}, nil
}

// Issue mints and persists a token for principalID. Tokens of this kind the
// principal held before are deleted in the same transaction.
func (r *TokenRegistry) Issue(ctx context.Context, principalID uuid.UUID) (EphemeralToken, error) {
	token, err := r.Mint(principalID)
	if err != nil {
		return EphemeralToken{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.Replace(ctx, token); err != nil {
		return EphemeralToken{}, wrapStorage(err, string(r.kind)+".replace")
	}
	return token, nil
}

// Consume fetches a token without deleting it.
func (r *TokenRegistry) Consume(ctx context.Context, value string) (EphemeralToken, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	token, found, err := r.store.Get(ctx, value)
	if err != nil {
		return EphemeralToken{}, wrapStorage(err, string(r.kind)+".get")
	}
	if !found {
		return EphemeralToken{}, r.kind.NotFound()
	}
	return token, nil
}

// Invalidate deletes the token. Deleting an absent token is not an error.
func (r *TokenRegistry) Invalidate(ctx context.Context, value string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return wrapStorage(r.store.Delete(ctx, value), string(r.kind)+".delete")
}

// RandomToken returns n characters drawn uniformly from [A-Za-z0-9].
func RandomToken(n int) (string, error) {
	const maxByte = 256 - (256 % len(tokenAlphabet))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, errors.CategoryInternal, "failed to read random bytes")
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
