// Package authn convierte los headers de un request en una identity.Identity.
package authn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pet-clinic-backend/internal/domain/identity"
	"pet-clinic-backend/internal/platform/logger"
	"pet-clinic-backend/internal/platform/metrics"
	"pet-clinic-backend/internal/ports/auth"
)

const (
	HeaderDebugUserID = "X-Debug-User-ID"
	HeaderDebugRole   = "X-Debug-Role"
)

var (
	// ErrInvalidToken solo se devuelve con RejectInvalid activo.
	ErrInvalidToken = errors.New("invalid bearer token")

	// ErrVerifierUnavailable: el verificador no pudo responder. No degrada a ANONYMOUS.
	ErrVerifierUnavailable = errors.New("token verifier unavailable")
)

type Options struct {
	Verifier auth.AuthVerifier

	// DevHeaders habilita X-Debug-User-ID / X-Debug-Role cuando Verifier es nil.
	// Sin Verifier ni DevHeaders todo request es ANONYMOUS.
	DevHeaders bool

	// RejectInvalid: un token presente pero inválido es error en vez de ANONYMOUS.
	RejectInvalid bool

	Log logger.Logger
}

type Authenticator struct {
	verifier      auth.AuthVerifier
	devHeaders    bool
	rejectInvalid bool
	log           logger.Logger
}

func New(opts Options) *Authenticator {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Authenticator{
		verifier:      opts.Verifier,
		devHeaders:    opts.Verifier == nil && opts.DevHeaders,
		rejectInvalid: opts.RejectInvalid,
		log:           log,
	}
}

// DevMode indica si se aceptan los headers de debug.
func (a *Authenticator) DevMode() bool { return a.devHeaders }

// Authenticate: sin header, o con un token inválido, la identidad es
// ANONYMOUS; con RejectInvalid el token inválido es ErrInvalidToken. Un
// verificador caído siempre es ErrVerifierUnavailable.
func (a *Authenticator) Authenticate(ctx context.Context, h http.Header) (identity.Identity, error) {
	if a.verifier == nil {
		if a.devHeaders {
			return a.debugIdentity(h), nil
		}
		return identity.Anonymous(), nil
	}

	raw := strings.TrimSpace(h.Get("Authorization"))
	if raw == "" {
		metrics.RecordTokenVerification("absent")
		return identity.Anonymous(), nil
	}

	token := bearerToken(raw)
	if token == "" {
		return a.invalid(fmt.Errorf("%w: authorization header is not a bearer token", auth.ErrTokenMalformed))
	}

	claims, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return a.invalid(err)
	}

	role, ok := identity.ParseRole(claims.Role)
	if !ok {
		return a.invalid(fmt.Errorf("%w: unknown role %q", auth.ErrTokenMalformed, claims.Role))
	}

	metrics.RecordTokenVerification("ok")
	return identity.New(claims.UserID, role), nil
}

func (a *Authenticator) invalid(err error) (identity.Identity, error) {
	reason := auth.ReasonOf(err)
	metrics.RecordTokenVerification(reason)

	fields := map[string]any{"reason": reason, "error": err}
	if reason == auth.ReasonUnavailable {
		a.log.Error("token_verifier_unavailable", fields)
		return identity.Anonymous(), fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	a.log.Warn("token_invalid", fields)

	if a.rejectInvalid {
		return identity.Anonymous(), fmt.Errorf("%w: %s", ErrInvalidToken, reason)
	}
	return identity.Anonymous(), nil
}

func (a *Authenticator) debugIdentity(h http.Header) identity.Identity {
	uid := strings.TrimSpace(h.Get(HeaderDebugUserID))
	if uid == "" {
		return identity.Anonymous()
	}
	role := identity.RoleUser
	if r := strings.TrimSpace(h.Get(HeaderDebugRole)); r != "" {
		parsed, ok := identity.ParseRole(r)
		if !ok {
			a.log.Warn("debug_role_unknown", map[string]any{"role": r})
			return identity.Anonymous()
		}
		role = parsed
	}
	return identity.New(uid, role)
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
