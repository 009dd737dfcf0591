package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", ExtractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", ExtractBearerToken("bearer abc"))
	assert.Equal(t, "", ExtractBearerToken("Basic abc"))
	assert.Equal(t, "", ExtractBearerToken("Bearer "))
	assert.Equal(t, "", ExtractBearerToken(""))
}

func TestActorAuthenticator_RoundTrip(t *testing.T) {
	auth := NewActorAuthenticator([]byte("test-secret"))

	token, err := auth.IssueToken("player-1", false, time.Hour)
	require.NoError(t, err)

	actor, err := auth.Authenticate("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "player-1", actor.PlayerID)
	assert.False(t, actor.Admin)

	_, err = auth.RequireAdmin("Bearer " + token)
	var humaErr *huma.ErrorModel
	require.True(t, errors.As(err, &humaErr))
	assert.Equal(t, 403, humaErr.Status)

	adminToken, err := auth.IssueToken("ops", true, time.Hour)
	require.NoError(t, err)
	admin, err := auth.RequireAdmin("Bearer " + adminToken)
	require.NoError(t, err)
	assert.True(t, admin.Admin)
}

func TestActorAuthenticator_Rejects(t *testing.T) {
	auth := NewActorAuthenticator([]byte("test-secret"))
	other := NewActorAuthenticator([]byte("other-secret"))

	foreign, err := other.IssueToken("player-1", false, time.Hour)
	require.NoError(t, err)
	expired, err := auth.IssueToken("player-1", false, -time.Minute)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, ActorClaims{}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong secret", header: "Bearer " + foreign},
		{name: "expired", header: "Bearer " + expired},
		{name: "no subject", header: "Bearer " + noSubject},
		{name: "garbage", header: "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, err := auth.Authenticate(tt.header)
			assert.Nil(t, actor)

			var humaErr *huma.ErrorModel
			require.True(t, errors.As(err, &humaErr))
			assert.Equal(t, 401, humaErr.Status)
		})
	}
}
