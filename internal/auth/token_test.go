package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestIssueAndValidate(t *testing.T) {
	tok, err := IssueToken("alice", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(tok, secret)
	require.NoError(t, err)

	sub, err := Subject(claims)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestValidate_WrongSecret(t *testing.T) {
	tok, err := IssueToken("alice", secret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(tok, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Expired(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = ValidateToken(tok, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(tok, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Missing(t *testing.T) {
	_, err := ValidateToken("", secret)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestSubject_Empty(t *testing.T) {
	_, err := Subject(jwt.MapClaims{})
	assert.ErrorIs(t, err, ErrInvalidToken)
}
