package auth

import (
	"context"
)

type ForgotPasswordMessage struct {
	Email string `json:"email"`
}

func (e ForgotPasswordMessage) Type() string { return "principal.forgot_password" }

// ForgotPasswordHandler issues a password reset token and emails the link.
type ForgotPasswordHandler struct {
	repo      RepositoryManager
	resets    *TokenRegistry
	mailer    Mailer
	templates *EmailTemplates
	activityRecorder
}

func NewForgotPasswordHandler(repo RepositoryManager, resets *TokenRegistry, mailer Mailer, templates *EmailTemplates) *ForgotPasswordHandler {
	return &ForgotPasswordHandler{
		repo:             repo,
		resets:           resets,
		mailer:           mailer,
		templates:        templates,
		activityRecorder: newActivityRecorder(registryClock(resets)),
	}
}

func (h *ForgotPasswordHandler) WithActivitySink(sink ActivitySink) *ForgotPasswordHandler {
	h.setSink(sink)
	return h
}

func (h *ForgotPasswordHandler) WithLogger(logger Logger) *ForgotPasswordHandler {
	h.setLogger(logger)
	return h
}

func (h *ForgotPasswordHandler) Execute(ctx context.Context, event ForgotPasswordMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "password reset request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ForgotPasswordHandler) execute(ctx context.Context, event ForgotPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	principal, err := h.repo.Principals().GetByEmail(ctx, event.Email)
	if err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return wrapStorage(err, "principal.get_by_email")
	}

	token, err := h.resets.Issue(ctx, principal.ID)
	if err != nil {
		return err
	}

	h.record(ctx, ActivityEventPasswordResetRequest, principal.ID.String(), nil)

	html, err := h.templates.PasswordReset(principal, token, humanDuration(h.resets.ttl))
	if err != nil {
		h.getLogger().Error("failed to render password reset email", "error", err)
		return ErrSendingEmail
	}

	return h.sendEmail(ctx, h.mailer, principal, PasswordResetEmailSubject, html)
}
