package auth

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type ResetPasswordMessage struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (e ResetPasswordMessage) Type() string { return "principal.reset_password" }

// ResetPasswordHandler replaces the principal's password digest using a
// password reset token issued for that same principal.
type ResetPasswordHandler struct {
	repo      RepositoryManager
	resets    *TokenRegistry
	hashes    *HashPool
	singleUse bool
	activityRecorder
}

func NewResetPasswordHandler(repo RepositoryManager, resets *TokenRegistry, hashes *HashPool) *ResetPasswordHandler {
	return &ResetPasswordHandler{
		repo:             repo,
		resets:           resets,
		hashes:           hashes,
		singleUse:        true,
		activityRecorder: newActivityRecorder(registryClock(resets)),
	}
}

// WithSingleUse controls whether the token is deleted after a successful
// reset. Enabled by default.
func (h *ResetPasswordHandler) WithSingleUse(singleUse bool) *ResetPasswordHandler {
	h.singleUse = singleUse
	return h
}

func (h *ResetPasswordHandler) WithActivitySink(sink ActivitySink) *ResetPasswordHandler {
	h.setSink(sink)
	return h
}

func (h *ResetPasswordHandler) WithLogger(logger Logger) *ResetPasswordHandler {
	h.setLogger(logger)
	return h
}

func (h *ResetPasswordHandler) Execute(ctx context.Context, event ResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "password reset")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResetPasswordHandler) execute(ctx context.Context, event ResetPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	var (
		principal *Principal
		token     EphemeralToken
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		principal, err = h.repo.Principals().GetByEmail(gctx, event.Email)
		if err != nil {
			if isNotFound(err) {
				return ErrUserNotFound
			}
			return wrapStorage(err, "principal.get_by_email")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		token, err = h.resets.Consume(gctx, event.Token)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if token.PrincipalID != principal.ID {
		h.getLogger().Warn("password reset token presented for another principal", "principal_id", principal.ID.String())
		return ErrPasswordResetTokenNotFound
	}

	if token.Expired(h.resets.Now()) {
		if err := h.resets.Invalidate(ctx, token.Token); err != nil {
			return err
		}
		return ErrPasswordResetTokenExpired
	}

	digest, err := h.hashes.Hash(ctx, event.Password)
	if err != nil {
		return richOrInternal(err, "failed to hash password")
	}

	if err := h.repo.Principals().UpdatePassword(ctx, principal.ID, digest); err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return wrapStorage(err, "principal.update_password")
	}

	if h.singleUse {
		if err := h.resets.Invalidate(ctx, token.Token); err != nil {
			h.getLogger().Error("failed to invalidate password reset token", "error", err)
			return err
		}
	}

	h.record(ctx, ActivityEventPasswordResetSuccess, principal.ID.String(), nil)

	return nil
}
