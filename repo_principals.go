package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetPrincipalPasswordSQL = `UPDATE "principals" AS "prn"
SET
	"password_digest" = ?,
	"updated_at" = ?
WHERE
	"prn"."id" = ?
RETURNING *;`

var MarkPrincipalVerifiedSQL = `UPDATE "principals" AS "prn"
SET
	"verified" = ?,
	"updated_at" = ?
WHERE
	"prn"."id" = ?
RETURNING *;`

type principals struct {
	repo repository.Repository[*Principal]
	db   *bun.DB
}

var _ Principals = (*principals)(nil)

// NewPrincipalsRepository returns the bun backed Principals store.
func NewPrincipalsRepository(db *bun.DB) Principals {
	repo := repository.NewRepository[*Principal](db, repository.ModelHandlers[*Principal]{
		NewRecord: func() *Principal { return &Principal{} },
		GetID: func(p *Principal) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Principal, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &principals{
		repo: repo,
		db:   db,
	}
}

func (p *principals) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	record := &Principal{}
	err := p.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}
	return record, nil
}

func (p *principals) GetByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	return p.repo.GetByID(ctx, id.String())
}

func (p *principals) Create(ctx context.Context, principal *Principal) (*Principal, error) {
	return p.CreateTx(ctx, p.db, principal)
}

func (p *principals) CreateTx(ctx context.Context, tx bun.IDB, principal *Principal) (*Principal, error) {
	preparePrincipalDefaults(principal)
	return p.repo.CreateTx(ctx, tx, principal)
}

func (p *principals) UpdateIsVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	return p.UpdateIsVerifiedTx(ctx, p.db, id, verified)
}

func (p *principals) UpdateIsVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, verified bool) error {
	res, err := p.repo.RawTx(ctx, tx, MarkPrincipalVerifiedSQL, verified, time.Now().UTC(), id.String())
	if err != nil {
		return err
	}
	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}
	return nil
}

func (p *principals) UpdatePassword(ctx context.Context, id uuid.UUID, digest string) error {
	res, err := p.repo.RawTx(ctx, p.db, ResetPrincipalPasswordSQL, digest, time.Now().UTC(), id.String())
	if err != nil {
		return err
	}
	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}
	return nil
}

func preparePrincipalDefaults(p *Principal) {
	if p == nil {
		return
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Email = normalizeEmail(p.Email)
	if p.Role == "" {
		p.Role = RoleClient
	}
	now := time.Now().UTC()
	if p.CreatedAt == nil {
		p.CreatedAt = &now
	}
	if p.UpdatedAt == nil {
		p.UpdatedAt = &now
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
