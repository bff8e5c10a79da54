package auth

import (
	"context"

	"github.com/google/uuid"
)

// Rotator exchanges a refresh credential for a brand new pair, moving the
// principal's session pointer. Presenting a refresh credential whose
// session id is no longer current is treated as replay: the pointer is
// cleared, which revokes the legitimate holder as well.
type Rotator struct {
	tokens     *TokenService
	sessions   SessionStore
	principals PrincipalLookup
	activity   ActivitySink
	logger     Logger
}

func NewRotator(tokens *TokenService, sessions SessionStore, principals PrincipalLookup) *Rotator {
	return &Rotator{
		tokens:     tokens,
		sessions:   sessions,
		principals: principals,
		activity:   noopActivitySink{},
		logger:     defaultLogger(),
	}
}

func (r *Rotator) WithActivitySink(sink ActivitySink) *Rotator {
	r.activity = normalizeActivitySink(sink)
	return r
}

func (r *Rotator) WithLogger(logger Logger) *Rotator {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Rotate verifies refreshToken and issues a new pair for its subject.
func (r *Rotator) Rotate(ctx context.Context, refreshToken string) (uuid.UUID, *TokenPair, error) {
	claims, err := r.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return uuid.Nil, nil, err
	}

	principalID, err := claims.PrincipalID()
	if err != nil {
		return uuid.Nil, nil, ErrTokenMalformed
	}

	if _, err := r.principals.GetByID(ctx, principalID); err != nil {
		if isNotFound(err) {
			return uuid.Nil, nil, ErrUserNotFound
		}
		return uuid.Nil, nil, wrapStorage(err, "principal.get")
	}

	current, found, err := r.sessions.Get(ctx, principalID)
	if err != nil {
		return uuid.Nil, nil, wrapStorage(err, "session.get")
	}
	if !found {
		return uuid.Nil, nil, ErrInvalidCredentials
	}

	if current != claims.SessionID {
		return uuid.Nil, nil, r.revoke(ctx, principalID, "session id mismatch")
	}

	pair, err := r.tokens.IssuePair(principalID)
	if err != nil {
		return uuid.Nil, nil, err
	}

	swapped, err := r.sessions.Swap(ctx, principalID, claims.SessionID, pair.SessionID)
	if err != nil {
		return uuid.Nil, nil, wrapStorage(err, "session.swap")
	}
	if !swapped {
		return uuid.Nil, nil, r.revoke(ctx, principalID, "concurrent rotation")
	}

	r.record(ctx, ActivityEventTokenRotated, principalID, nil)

	return principalID, pair, nil
}

func (r *Rotator) revoke(ctx context.Context, principalID uuid.UUID, reason string) error {
	r.logger.Warn("refresh token replay detected", "principal_id", principalID.String(), "reason", reason)

	if err := r.sessions.Clear(ctx, principalID); err != nil {
		r.logger.Error("failed to clear session pointer", "principal_id", principalID.String(), "error", err)
		return wrapStorage(err, "session.clear")
	}

	r.record(ctx, ActivityEventRefreshReplay, principalID, map[string]any{"reason": reason})

	return ErrInvalidCredentials
}

func (r *Rotator) record(ctx context.Context, eventType ActivityEventType, principalID uuid.UUID, metadata map[string]any) {
	event := ActivityEvent{
		EventType:   eventType,
		PrincipalID: principalID.String(),
		Metadata:    metadata,
		OccurredAt:  r.tokens.Now(),
	}
	if err := normalizeActivitySink(r.activity).Record(ctx, event); err != nil {
		r.logger.Warn("activity sink error during rotation", "error", err)
	}
}
