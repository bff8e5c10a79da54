package auth_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	auth "github.com/netowork/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessClaims_PrincipalID(t *testing.T) {
	id := uuid.New()

	claims := &auth.AccessClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: id.String()}}
	got, err := claims.PrincipalID()
	require.NoError(t, err)
	assert.Equal(t, id, got)

	claims.Subject = "user-123"
	_, err = claims.PrincipalID()
	assert.Error(t, err)
}

func TestClaims_Expires(t *testing.T) {
	exp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	access := &auth.AccessClaims{}
	assert.True(t, access.Expires().IsZero())
	access.ExpiresAt = jwt.NewNumericDate(exp)
	assert.True(t, access.Expires().Equal(exp))

	refresh := &auth.RefreshClaims{}
	assert.True(t, refresh.Expires().IsZero())
	refresh.ExpiresAt = jwt.NewNumericDate(exp)
	assert.True(t, refresh.Expires().Equal(exp))
}

func TestRefreshClaims_SessionIDIsSerializedAsSid(t *testing.T) {
	sid := uuid.New()
	claims := &auth.RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
		SessionID:        sid,
	}

	raw, err := json.Marshal(claims)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, sid.String(), decoded["sid"])

	var back auth.RefreshClaims
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, sid, back.SessionID)

	got, err := back.PrincipalID()
	require.NoError(t, err)
	assert.Equal(t, claims.Subject, got.String())
}
