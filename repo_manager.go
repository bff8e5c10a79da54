package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all stores plus the atomic identity mutations
// that span more than one table.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Principals() Principals
	VerificationTokens() TokenStore
	PasswordResetTokens() TokenStore

	// CreatePrincipalWithVerificationToken inserts the principal and its
	// verification token. Both rows are written or neither is.
	CreatePrincipalWithVerificationToken(ctx context.Context, principal *Principal, token EphemeralToken) (*Principal, error)
	// MarkVerifiedAndDeleteToken flips the principal to verified and removes
	// the token in one transaction.
	MarkVerifiedAndDeleteToken(ctx context.Context, token EphemeralToken) error
}

type mngr struct {
	db                  *bun.DB
	principals          Principals
	verificationTokens  TokenStore
	passwordResetTokens TokenStore
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:                  db,
		principals:          NewPrincipalsRepository(db),
		verificationTokens:  NewVerificationTokenStore(db),
		passwordResetTokens: NewPasswordResetTokenStore(db),
	}
}

func (m mngr) Validate() error {
	if m.principals == nil {
		return errors.New("repository principals should be initialized")
	}

	if m.verificationTokens == nil {
		return errors.New("repository verificationTokens should be initialized")
	}

	if m.passwordResetTokens == nil {
		return errors.New("repository passwordResetTokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Principals() Principals {
	return m.principals
}

func (m mngr) VerificationTokens() TokenStore {
	return m.verificationTokens
}

func (m mngr) PasswordResetTokens() TokenStore {
	return m.passwordResetTokens
}

func (m mngr) CreatePrincipalWithVerificationToken(ctx context.Context, principal *Principal, token EphemeralToken) (*Principal, error) {
	var created *Principal

	err := m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if created, err = m.principals.CreateTx(ctx, tx, principal); err != nil {
			return err
		}

		token.PrincipalID = created.ID
		return m.verificationTokens.CreateTx(ctx, tx, token)
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (m mngr) MarkVerifiedAndDeleteToken(ctx context.Context, token EphemeralToken) error {
	return m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := m.principals.UpdateIsVerifiedTx(ctx, tx, token.PrincipalID, true); err != nil {
			return err
		}
		return m.verificationTokens.DeleteTx(ctx, tx, token.Token)
	})
}
