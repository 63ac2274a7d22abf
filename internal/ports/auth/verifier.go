package auth

import (
	"context"
	"errors"
)

var (
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenMalformed   = errors.New("token malformed")
	ErrSignatureInvalid = errors.New("token signature invalid")

	ErrSignUnsupported = errors.New("token signing not supported")
)

// AuthVerifier verifica un token y devuelve claims o error.
// Los errores envuelven ErrTokenExpired, ErrTokenMalformed o ErrSignatureInvalid.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

type TokenSigner interface {
	Sign(ctx context.Context, claims Claims) (string, error)
}

type TokenService interface {
	AuthVerifier
	TokenSigner
}

// ReasonUnavailable: el error no es de token sino del verificador.
const ReasonUnavailable = "UNAVAILABLE"

// ReasonOf clasifica un error de verificación para logs y métricas.
func ReasonOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTokenExpired):
		return "EXPIRED"
	case errors.Is(err, ErrSignatureInvalid):
		return "SIGNATURE_INVALID"
	case errors.Is(err, ErrTokenMalformed):
		return "MALFORMED"
	default:
		return ReasonUnavailable
	}
}
