package auth

import (
	"context"
)

type VerifyAccountMessage struct {
	Token string `json:"token"`
}

func (e VerifyAccountMessage) Type() string { return "principal.verify_account" }

// VerifyAccountHandler consumes a verification token and marks its
// principal as verified.
type VerifyAccountHandler struct {
	repo         RepositoryManager
	verification *TokenRegistry
	activityRecorder
}

func NewVerifyAccountHandler(repo RepositoryManager, verification *TokenRegistry) *VerifyAccountHandler {
	return &VerifyAccountHandler{
		repo:             repo,
		verification:     verification,
		activityRecorder: newActivityRecorder(registryClock(verification)),
	}
}

func (h *VerifyAccountHandler) WithActivitySink(sink ActivitySink) *VerifyAccountHandler {
	h.setSink(sink)
	return h
}

func (h *VerifyAccountHandler) WithLogger(logger Logger) *VerifyAccountHandler {
	h.setLogger(logger)
	return h
}

func (h *VerifyAccountHandler) Execute(ctx context.Context, event VerifyAccountMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyAccountHandler) execute(ctx context.Context, event VerifyAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	token, err := h.verification.Consume(ctx, event.Token)
	if err != nil {
		return err
	}

	if token.Expired(h.verification.Now()) {
		if err := h.verification.Invalidate(ctx, token.Token); err != nil {
			return err
		}
		return ErrVerificationTokenExpired
	}

	if _, err := h.repo.Principals().GetByID(ctx, token.PrincipalID); err != nil {
		if !isNotFound(err) {
			return wrapStorage(err, "principal.get")
		}
		if err := h.verification.Invalidate(ctx, token.Token); err != nil {
			return err
		}
		return ErrUserNotFound
	}

	if err := h.repo.MarkVerifiedAndDeleteToken(ctx, token); err != nil {
		return wrapStorage(err, "principal.mark_verified")
	}

	h.record(ctx, ActivityEventAccountVerified, token.PrincipalID.String(), nil)

	return nil
}
