package auth

import (
	"context"
)

type ResendVerificationMessage struct {
	Email string `json:"email"`
}

func (e ResendVerificationMessage) Type() string { return "principal.resend_verification" }

// ResendVerificationHandler issues a new verification token for a principal
// that is still unverified, for instance after the first email failed.
type ResendVerificationHandler struct {
	repo         RepositoryManager
	verification *TokenRegistry
	mailer       Mailer
	templates    *EmailTemplates
	activityRecorder
}

func NewResendVerificationHandler(repo RepositoryManager, verification *TokenRegistry, mailer Mailer, templates *EmailTemplates) *ResendVerificationHandler {
	return &ResendVerificationHandler{
		repo:             repo,
		verification:     verification,
		mailer:           mailer,
		templates:        templates,
		activityRecorder: newActivityRecorder(registryClock(verification)),
	}
}

func (h *ResendVerificationHandler) WithActivitySink(sink ActivitySink) *ResendVerificationHandler {
	h.setSink(sink)
	return h
}

func (h *ResendVerificationHandler) WithLogger(logger Logger) *ResendVerificationHandler {
	h.setLogger(logger)
	return h
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "verification resend")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	principal, err := h.repo.Principals().GetByEmail(ctx, event.Email)
	if err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return wrapStorage(err, "principal.get_by_email")
	}

	if principal.Verified {
		return ErrAlreadyVerified
	}

	token, err := h.verification.Issue(ctx, principal.ID)
	if err != nil {
		return err
	}

	h.record(ctx, ActivityEventVerificationResent, principal.ID.String(), nil)

	html, err := h.templates.Verification(principal, token, humanDuration(h.verification.ttl))
	if err != nil {
		h.getLogger().Error("failed to render verification email", "error", err)
		return ErrSendingEmail
	}

	return h.sendEmail(ctx, h.mailer, principal, VerificationEmailSubject, html)
}
