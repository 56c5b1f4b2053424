package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-admin-template/go-admin-template/internal/db/models"
)

func TestTokenIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 10*time.Minute)

	user := &models.User{
		ID:         42,
		Username:   "alice",
		AuthSource: models.AuthSourceLocal,
	}

	token, err := issuer.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "local", claims.AuthSource)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestTokenVerifyWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 10*time.Minute)
	other := NewTokenIssuer("other-secret", 10*time.Minute)

	token, err := issuer.Issue(&models.User{ID: 1, Username: "alice"})
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenVerifyExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)

	token, err := issuer.Issue(&models.User{ID: 1, Username: "alice"})
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenVerifyGarbage(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 10*time.Minute)

	_, err := issuer.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
