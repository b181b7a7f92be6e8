package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/arnavshah/covers-scheduler-api/pkg/database"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T) *Authenticator {
	t.Helper()
	a, err := New("jwt-secret", "master-secret")
	require.NoError(t, err)
	return a
}

func TestNewRequiresSecrets(t *testing.T) {
	_, err := New("", "m")
	assert.Error(t, err)
	_, err = New("j", "")
	assert.Error(t, err)
}

func TestAPIKeyRoundTrip(t *testing.T) {
	a := newTestAuth(t)

	key := a.GenerateAPIKey("bistro.north")
	userID, err := a.VerifyAPIKey(key)
	require.NoError(t, err)
	assert.Equal(t, "bistro.north", userID)

	_, err = a.VerifyAPIKey("bistro.north.deadbeef")
	assert.Error(t, err)
	_, err = a.VerifyAPIKey("nodot")
	assert.Error(t, err)
	_, err = a.VerifyAPIKey("trailing.")
	assert.Error(t, err)

	other, err := New("jwt-secret", "another-master")
	require.NoError(t, err)
	_, err = other.VerifyAPIKey(key)
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	a := newTestAuth(t)

	token, err := a.CreateToken("admin")
	require.NoError(t, err)
	claims, err := a.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	other, err := New("different", "master-secret")
	require.NoError(t, err)
	_, err = other.VerifyToken(token)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwtAlgorithm, &Claims{
		Username:         "admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	signed, err := expired.SignedString([]byte("jwt-secret"))
	require.NoError(t, err)
	_, err = a.VerifyToken(signed)
	assert.Error(t, err)
}

func TestEnsureAdminAndAuthenticate(t *testing.T) {
	db, err := database.Open("", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	a := newTestAuth(t)

	created, err := EnsureAdminExists(db, "manager", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureAdminExists(db, "someone-else", "x")
	require.NoError(t, err)
	assert.False(t, created)

	token, err := a.Authenticate(db, "manager", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = a.Authenticate(db, "manager", "wrong")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = a.Authenticate(db, "ghost", "s3cret")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}
