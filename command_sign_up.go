package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type SignUpMessage struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       Role   `json:"role"`
	OnResponse func(principal *Principal)
}

func (e SignUpMessage) Type() string { return "principal.sign_up" }

// SignUpHandler registers an unverified principal together with its
// verification token and emails the verification link.
type SignUpHandler struct {
	repo         RepositoryManager
	hashes       *HashPool
	verification *TokenRegistry
	mailer       Mailer
	templates    *EmailTemplates
	activityRecorder
}

func NewSignUpHandler(repo RepositoryManager, hashes *HashPool, verification *TokenRegistry, mailer Mailer, templates *EmailTemplates) *SignUpHandler {
	return &SignUpHandler{
		repo:             repo,
		hashes:           hashes,
		verification:     verification,
		mailer:           mailer,
		templates:        templates,
		activityRecorder: newActivityRecorder(registryClock(verification)),
	}
}

func (h *SignUpHandler) WithActivitySink(sink ActivitySink) *SignUpHandler {
	h.setSink(sink)
	return h
}

func (h *SignUpHandler) WithLogger(logger Logger) *SignUpHandler {
	h.setLogger(logger)
	return h
}

func (h *SignUpHandler) Execute(ctx context.Context, event SignUpMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "sign up")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignUpHandler) execute(ctx context.Context, event SignUpMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	email := normalizeEmail(event.Email)

	if _, err := h.repo.Principals().GetByEmail(ctx, email); err == nil {
		return ErrUserAlreadyExists
	} else if !isNotFound(err) {
		return wrapStorage(err, "principal.get_by_email")
	}

	digest, err := h.hashes.Hash(ctx, event.Password)
	if err != nil {
		return richOrInternal(err, "failed to hash password")
	}

	token, err := h.verification.Mint(uuid.Nil)
	if err != nil {
		return err
	}

	principal := &Principal{
		Email:          email,
		PasswordDigest: digest,
		FirstName:      strings.TrimSpace(event.FirstName),
		LastName:       strings.TrimSpace(event.LastName),
		Role:           event.Role,
		Verified:       false,
	}

	created, err := h.repo.CreatePrincipalWithVerificationToken(ctx, principal, token)
	if err != nil {
		// a concurrent sign-up with the same email loses on the unique index
		if _, lookupErr := h.repo.Principals().GetByEmail(ctx, email); lookupErr == nil {
			return ErrUserAlreadyExists
		}
		return wrapStorage(err, "principal.create_with_verification_token")
	}

	h.record(ctx, ActivityEventSignUp, created.ID.String(), map[string]any{"role": created.Role})

	if event.OnResponse != nil {
		event.OnResponse(created)
	}

	html, err := h.templates.Verification(created, token, humanDuration(h.verification.ttl))
	if err != nil {
		h.getLogger().Error("failed to render verification email", "error", err)
		return ErrSendingEmail
	}

	return h.sendEmail(ctx, h.mailer, created, VerificationEmailSubject, html)
}
