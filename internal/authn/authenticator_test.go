package authn

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-clinic-backend/internal/domain/identity"
	"pet-clinic-backend/internal/platform/logger"
	"pet-clinic-backend/internal/ports/auth"
)

type testVerifier struct {
	claims map[string]auth.Claims
}

func (v *testVerifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	switch token {
	case "expired":
		return auth.Claims{}, auth.ErrTokenExpired
	case "forged":
		return auth.Claims{}, auth.ErrSignatureInvalid
	case "down":
		return auth.Claims{}, errors.New("iam down")
	}
	c, ok := v.claims[token]
	if !ok {
		return auth.Claims{}, auth.ErrTokenMalformed
	}
	return c, nil
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func newVerifier() *testVerifier {
	return &testVerifier{claims: map[string]auth.Claims{
		"t-user":  {UserID: "u1", Role: "USER"},
		"t-admin": {UserID: "a1", Role: "admin"},
		"t-root":  {UserID: "r1", Role: "ROOT"},
	}}
}

func TestAuthenticate_Bearer(t *testing.T) {
	a := New(Options{Verifier: newVerifier(), Log: logger.Nop()})
	ctx := context.Background()

	id, err := a.Authenticate(ctx, headers("Authorization", "Bearer t-user"))
	require.NoError(t, err)
	assert.Equal(t, identity.New("u1", identity.RoleUser), id)

	id, err = a.Authenticate(ctx, headers("Authorization", "bearer t-admin"))
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, id.Role())
}

func TestAuthenticate_AbsentHeaderIsAnonymous(t *testing.T) {
	a := New(Options{Verifier: newVerifier(), RejectInvalid: true})

	id, err := a.Authenticate(context.Background(), http.Header{})
	require.NoError(t, err)
	assert.True(t, id.IsAnonymous())
}

func TestAuthenticate_InvalidDegradesToAnonymous(t *testing.T) {
	a := New(Options{Verifier: newVerifier(), Log: logger.Nop()})

	for _, h := range []string{"Bearer expired", "Bearer forged", "Bearer garbage", "Bearer t-root", "Basic abc"} {
		id, err := a.Authenticate(context.Background(), headers("Authorization", h))
		require.NoError(t, err, h)
		assert.True(t, id.IsAnonymous(), h)
	}
}

func TestAuthenticate_RejectInvalid(t *testing.T) {
	a := New(Options{Verifier: newVerifier(), RejectInvalid: true, Log: logger.Nop()})

	id, err := a.Authenticate(context.Background(), headers("Authorization", "Bearer expired"))
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Contains(t, err.Error(), "EXPIRED")
	assert.True(t, id.IsAnonymous())
}

func TestAuthenticate_VerifierDownIsAnError(t *testing.T) {
	for _, reject := range []bool{false, true} {
		a := New(Options{Verifier: newVerifier(), RejectInvalid: reject, Log: logger.Nop()})

		id, err := a.Authenticate(context.Background(), headers("Authorization", "Bearer down"))
		assert.ErrorIs(t, err, ErrVerifierUnavailable)
		assert.NotErrorIs(t, err, ErrInvalidToken)
		assert.True(t, id.IsAnonymous())
	}
}

func TestAuthenticate_NoVerifierWithoutDevHeaders(t *testing.T) {
	a := New(Options{Log: logger.Nop()})
	require.False(t, a.DevMode())

	id, err := a.Authenticate(context.Background(), headers(HeaderDebugUserID, "attacker", HeaderDebugRole, "ADMIN"))
	require.NoError(t, err)
	assert.True(t, id.IsAnonymous())

	// con verifier los headers de debug no se habilitan
	a = New(Options{Verifier: newVerifier(), DevHeaders: true})
	assert.False(t, a.DevMode())
}

func TestAuthenticate_DevMode(t *testing.T) {
	a := New(Options{DevHeaders: true, Log: logger.Nop()})
	require.True(t, a.DevMode())
	ctx := context.Background()

	id, _ := a.Authenticate(ctx, headers(HeaderDebugUserID, "u7"))
	assert.Equal(t, identity.New("u7", identity.RoleUser), id)

	id, _ = a.Authenticate(ctx, headers(HeaderDebugUserID, "d1", HeaderDebugRole, "doctor"))
	assert.Equal(t, identity.RoleDoctor, id.Role())

	id, _ = a.Authenticate(ctx, headers(HeaderDebugUserID, "x", HeaderDebugRole, "ANONYMOUS"))
	assert.True(t, id.IsAnonymous())

	// en dev el bearer se ignora
	id, _ = a.Authenticate(ctx, headers("Authorization", "Bearer t-user"))
	assert.True(t, id.IsAnonymous())
}
