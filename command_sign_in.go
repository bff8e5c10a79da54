package auth

import (
	"context"
)

type SignInMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	OnResponse func(resp *SignInResponse)
}

func (e SignInMessage) Type() string { return "principal.sign_in" }

type SignInResponse struct {
	Principal *Principal
	Tokens    *TokenPair
}

// SignInHandler checks the password, issues a fresh pair and replaces the
// principal's session pointer, revoking any earlier session.
type SignInHandler struct {
	repo     RepositoryManager
	hashes   *HashPool
	tokens   *TokenService
	sessions SessionStore
	activityRecorder
}

func NewSignInHandler(repo RepositoryManager, hashes *HashPool, tokens *TokenService, sessions SessionStore) *SignInHandler {
	return &SignInHandler{
		repo:             repo,
		hashes:           hashes,
		tokens:           tokens,
		sessions:         sessions,
		activityRecorder: newActivityRecorder(tokenClock(tokens)),
	}
}

func (h *SignInHandler) WithActivitySink(sink ActivitySink) *SignInHandler {
	h.setSink(sink)
	return h
}

func (h *SignInHandler) WithLogger(logger Logger) *SignInHandler {
	h.setLogger(logger)
	return h
}

func (h *SignInHandler) Execute(ctx context.Context, event SignInMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "sign in")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignInHandler) execute(ctx context.Context, event SignInMessage) error {
	ctx, cancel := context.WithTimeout(ctx, flowTimeout)
	defer cancel()

	principal, err := h.repo.Principals().GetByEmail(ctx, event.Email)
	if err != nil {
		if isNotFound(err) {
			h.record(ctx, ActivityEventLoginFailure, "", map[string]any{"reason": "unknown_email"})
			return ErrInvalidCredentials
		}
		return wrapStorage(err, "principal.get_by_email")
	}

	if err := h.hashes.Compare(ctx, event.Password, principal.PasswordDigest); err != nil {
		if err == ErrMismatchedHashAndPassword {
			h.record(ctx, ActivityEventLoginFailure, principal.ID.String(), map[string]any{"reason": "password_mismatch"})
			return ErrInvalidCredentials
		}
		return richOrInternal(err, "failed to verify password")
	}

	if !principal.Verified {
		h.record(ctx, ActivityEventLoginFailure, principal.ID.String(), map[string]any{"reason": "not_verified"})
		return ErrNotVerified
	}

	pair, err := h.tokens.IssuePair(principal.ID)
	if err != nil {
		return err
	}

	if err := h.sessions.Put(ctx, principal.ID, pair.SessionID); err != nil {
		return wrapStorage(err, "session.put")
	}

	h.record(ctx, ActivityEventLoginSuccess, principal.ID.String(), nil)

	if event.OnResponse != nil {
		event.OnResponse(&SignInResponse{Principal: principal, Tokens: pair})
	}

	return nil
}
