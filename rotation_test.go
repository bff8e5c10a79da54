package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	auth "github.com/netowork/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSession issues a pair for p and stores its session pointer, the way
// sign-in does.
func (e *testEnv) startSession(t *testing.T, p *auth.Principal) *auth.TokenPair {
	t.Helper()

	pair, err := e.tokens.IssuePair(p.ID)
	require.NoError(t, err)
	require.NoError(t, e.sessions.Put(context.Background(), p.ID, pair.SessionID))
	return pair
}

func (e *testEnv) pointer(t *testing.T, id uuid.UUID) (uuid.UUID, bool) {
	t.Helper()

	sid, found, err := e.sessions.Get(context.Background(), id)
	require.NoError(t, err)
	return sid, found
}

func TestRotator_Rotate(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPrincipal(t, "user@example.com", "password123", true)
	pair := env.startSession(t, p)

	principalID, next, err := env.rotator().Rotate(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, principalID)
	assert.NotEqual(t, pair.SessionID, next.SessionID)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	sid, found := env.pointer(t, p.ID)
	assert.True(t, found)
	assert.Equal(t, next.SessionID, sid)

	assert.Contains(t, env.sink.Types(), auth.ActivityEventTokenRotated)
}

func TestRotator_EventsUseTokenClock(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPrincipal(t, "user@example.com", "password123", true)
	pair := env.startSession(t, p)
	env.clock.Advance(3 * time.Hour)

	_, _, err := env.rotator().Rotate(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	_, _, err = env.rotator().Rotate(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	require.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventTokenRotated,
		auth.ActivityEventRefreshReplay,
	}, env.sink.Types())
	for _, evt := range env.sink.events {
		assert.True(t, evt.OccurredAt.Equal(env.clock.Now()), evt.EventType)
	}
}

func TestRotator_OnlyLatestRefreshIsHonored(t *testing.T) {
	const rounds = 5

	for stale := 0; stale < rounds; stale++ {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		rotator := env.rotator()

		issued := []*auth.TokenPair{env.startSession(t, p)}
		for i := 0; i < rounds; i++ {
			_, next, err := rotator.Rotate(context.Background(), issued[len(issued)-1].RefreshToken)
			require.NoError(t, err)
			issued = append(issued, next)
		}

		_, _, err := rotator.Rotate(context.Background(), issued[stale].RefreshToken)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "refresh #%d is stale", stale)

		_, found := env.pointer(t, p.ID)
		assert.False(t, found, "replay clears the session pointer")

		_, _, err = rotator.Rotate(context.Background(), issued[rounds].RefreshToken)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "latest refresh is revoked after replay")

		assert.Contains(t, env.sink.Types(), auth.ActivityEventRefreshReplay)
	}
}

func TestRotator_ConcurrentRotationHasOneWinner(t *testing.T) {
	env := newTestEnv(t)
	env.sessions = auth.NewMemorySessionStore()

	p := env.createPrincipal(t, "user@example.com", "password123", true)
	pair := env.startSession(t, p)
	rotator := env.rotator()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := rotator.Rotate(context.Background(), pair.RefreshToken); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	_, found := env.pointer(t, p.ID)
	assert.False(t, found, "losing rotations are treated as replay")
}

func TestRotator_Rejections(t *testing.T) {
	t.Run("expired refresh", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair := env.startSession(t, p)

		env.clock.Advance(env.tokens.RefreshTTL() + time.Second)

		_, _, err := env.rotator().Rotate(context.Background(), pair.RefreshToken)
		assert.ErrorIs(t, err, auth.ErrTokenExpired)

		sid, found := env.pointer(t, p.ID)
		assert.True(t, found, "an expired credential does not revoke the session")
		assert.Equal(t, pair.SessionID, sid)
	})

	t.Run("access token presented as refresh", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair := env.startSession(t, p)

		_, _, err := env.rotator().Rotate(context.Background(), pair.AccessToken)
		assert.ErrorIs(t, err, auth.ErrTokenBadSignature)
	})

	t.Run("no session pointer", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createPrincipal(t, "user@example.com", "password123", true)
		pair, err := env.tokens.IssuePair(p.ID)
		require.NoError(t, err)

		_, _, err = env.rotator().Rotate(context.Background(), pair.RefreshToken)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown principal", func(t *testing.T) {
		env := newTestEnv(t)
		ghost := uuid.New()
		pair, err := env.tokens.IssuePair(ghost)
		require.NoError(t, err)
		require.NoError(t, env.sessions.Put(context.Background(), ghost, pair.SessionID))

		_, _, err = env.rotator().Rotate(context.Background(), pair.RefreshToken)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}

func TestRotator_LookupFailureIsInternal(t *testing.T) {
	env := newTestEnv(t)
	lookup := &MockPrincipalLookup{}
	principalID := uuid.New()
	lookup.On("GetByID", context.Background(), principalID).Return(nil, assert.AnError)

	pair, err := env.tokens.IssuePair(principalID)
	require.NoError(t, err)

	rotator := auth.NewRotator(env.tokens, auth.NewMemorySessionStore(), lookup)
	_, _, err = rotator.Rotate(context.Background(), pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeStorage))

	lookup.AssertExpectations(t)
}
