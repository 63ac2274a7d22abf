package jwtauth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-clinic-backend/internal/ports/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T, now func() time.Time) *Service {
	t.Helper()
	s, err := NewService(Config{Secret: testSecret, Issuer: "pet-clinic", TTL: time.Hour, Now: now})
	require.NoError(t, err)
	return s
}

func TestSignVerify(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	tok, err := s.Sign(ctx, auth.Claims{UserID: "u1", Email: "a@b.c", Role: "USER"})
	require.NoError(t, err)

	c, err := s.Verify(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "a@b.c", c.Email)
	assert.Equal(t, "USER", c.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), c.ExpiresAt, 5*time.Second)
}

func TestVerify_Expired(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := newTestService(t, past).Sign(context.Background(), auth.Claims{UserID: "u1", Role: "USER"})
	require.NoError(t, err)

	_, err = newTestService(t, nil).Verify(context.Background(), tok)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
	assert.Equal(t, "EXPIRED", auth.ReasonOf(err))
}

func TestVerify_WrongSecret(t *testing.T) {
	other, err := NewService(Config{Secret: strings.Repeat("x", 40), Issuer: "pet-clinic"})
	require.NoError(t, err)
	tok, err := other.Sign(context.Background(), auth.Claims{UserID: "u1", Role: "ADMIN"})
	require.NoError(t, err)

	_, err = newTestService(t, nil).Verify(context.Background(), tok)
	assert.ErrorIs(t, err, auth.ErrSignatureInvalid)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "pet-clinic",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "ADMIN",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestService(t, nil).Verify(context.Background(), tok)
	assert.ErrorIs(t, err, auth.ErrSignatureInvalid)
}

func TestVerify_Malformed(t *testing.T) {
	s := newTestService(t, nil)

	for _, raw := range []string{"", "abc", "a.b.c"} {
		_, err := s.Verify(context.Background(), raw)
		assert.ErrorIs(t, err, auth.ErrTokenMalformed, raw)
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	other, err := NewService(Config{Secret: testSecret, Issuer: "someone-else"})
	require.NoError(t, err)
	tok, err := other.Sign(context.Background(), auth.Claims{UserID: "u1", Role: "USER"})
	require.NoError(t, err)

	_, err = newTestService(t, nil).Verify(context.Background(), tok)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestVerify_RequiresExpiration(t *testing.T) {
	claims := tokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "pet-clinic"}, Role: "USER"}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestService(t, nil).Verify(context.Background(), tok)
	assert.Error(t, err)
}

func TestNewService_WeakSecret(t *testing.T) {
	_, err := NewService(Config{Secret: "short"})
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestSign_RequiresSubject(t *testing.T) {
	_, err := newTestService(t, nil).Sign(context.Background(), auth.Claims{Role: "USER"})
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}
