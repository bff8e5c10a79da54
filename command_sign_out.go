package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SignOutMessage struct {
	PrincipalID uuid.UUID
}

func (e SignOutMessage) Type() string { return "principal.sign_out" }

// SignOutHandler clears the session pointer so the outstanding refresh
// credential can no longer be rotated.
type SignOutHandler struct {
	sessions SessionStore
	activityRecorder
}

func NewSignOutHandler(sessions SessionStore) *SignOutHandler {
	return &SignOutHandler{
		sessions:         sessions,
		activityRecorder: newActivityRecorder(time.Now),
	}
}

// WithClock sets the clock stamped on logout events.
func (h *SignOutHandler) WithClock(now func() time.Time) *SignOutHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *SignOutHandler) WithActivitySink(sink ActivitySink) *SignOutHandler {
	h.setSink(sink)
	return h
}

func (h *SignOutHandler) WithLogger(logger Logger) *SignOutHandler {
	h.setLogger(logger)
	return h
}

func (h *SignOutHandler) Execute(ctx context.Context, event SignOutMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "sign out")
	default:
	}

	if event.PrincipalID == uuid.Nil {
		return ErrUnauthorized
	}

	if err := h.sessions.Clear(ctx, event.PrincipalID); err != nil {
		return wrapStorage(err, "session.clear")
	}

	h.record(ctx, ActivityEventLogout, event.PrincipalID.String(), nil)
	return nil
}
