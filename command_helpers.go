package auth

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// flowTimeout bounds a whole flow, storage and email included.
const flowTimeout = 10 * time.Second

// activityRecorder is shared by the flow handlers.
type activityRecorder struct {
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func newActivityRecorder(now func() time.Time) activityRecorder {
	if now == nil {
		now = time.Now
	}
	return activityRecorder{
		activity: noopActivitySink{},
		logger:   defaultLogger(),
		now:      now,
	}
}

func registryClock(r *TokenRegistry) func() time.Time {
	if r == nil {
		return time.Now
	}
	return r.Now
}

func tokenClock(ts *TokenService) func() time.Time {
	if ts == nil {
		return time.Now
	}
	return ts.Now
}

func (r *activityRecorder) setSink(sink ActivitySink) {
	r.activity = normalizeActivitySink(sink)
}

func (r *activityRecorder) setLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

func (r *activityRecorder) getLogger() Logger {
	if r.logger != nil {
		return r.logger
	}
	return defaultLogger()
}

func (r *activityRecorder) record(ctx context.Context, eventType ActivityEventType, principalID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:   eventType,
		PrincipalID: principalID,
		Metadata:    metadata,
		OccurredAt:  r.now(),
	}
	if err := normalizeActivitySink(r.activity).Record(ctx, event); err != nil {
		r.getLogger().Warn("activity sink error", "error", err)
	}
}

// sendEmail delivers html and maps any failure to ErrSendingEmail.
func (r *activityRecorder) sendEmail(ctx context.Context, mailer Mailer, principal *Principal, subject, html string) error {
	if err := mailer.Send(ctx, principal.Email, subject, html); err != nil {
		r.getLogger().Error("failed to send email", "subject", subject, "principal_id", principal.ID.String(), "error", err)
		r.record(ctx, ActivityEventEmailFailure, principal.ID.String(), map[string]any{"subject": subject})
		return ErrSendingEmail
	}
	return nil
}

func cancelled(ctx context.Context, operation string) error {
	return goerrors.Wrap(
		ctx.Err(),
		goerrors.CategoryOperation,
		fmt.Sprintf("context cancelled during %s", operation),
	)
}

// richOrInternal keeps rich errors and wraps everything else.
func richOrInternal(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}
