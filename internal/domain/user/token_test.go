package user

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti := NewTokenIssuer([]byte("secret"), time.Hour)

	tok, err := ti.Issue("u1")
	require.NoError(t, err)

	sub, err := ti.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", sub)
}

func TestTokenIssuer_Expired(t *testing.T) {
	ti := NewTokenIssuer([]byte("secret"), time.Minute)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ti.now = func() time.Time { return issued }

	tok, err := ti.Issue("u1")
	require.NoError(t, err)

	ti.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = ti.Verify(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	tok, err := NewTokenIssuer([]byte("a"), time.Hour).Issue("u1")
	require.NoError(t, err)

	_, err = NewTokenIssuer([]byte("b"), time.Hour).Verify(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenIssuer([]byte("secret"), time.Hour).Verify(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_Garbage(t *testing.T) {
	_, err := NewTokenIssuer([]byte("secret"), time.Hour).Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
