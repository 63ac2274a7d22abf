// Package remote verifica tokens contra un IAM externo por HTTP.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pet-clinic-backend/internal/platform/httpclient"
	"pet-clinic-backend/internal/ports/auth"
)

var (
	ErrNotConfigured = errors.New("remote verifier not configured")
	ErrUpstream      = errors.New("remote verifier upstream error")
)

const verifyPath = "/v1/tokens/verify"

type Config struct {
	BaseURL string
	APIKey  string

	// Si está vacío se usa "X-Api-Key".
	APIKeyHeader string

	Timeout   time.Duration
	Transport http.RoundTripper
}

// Verifier implementa auth.TokenService; Sign no está soportado porque los
// tokens los emite el IAM.
type Verifier struct {
	client *httpclient.Client
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	header := strings.TrimSpace(cfg.APIKeyHeader)
	if header == "" {
		header = "X-Api-Key"
	}
	c, err := httpclient.New(httpclient.Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		Headers:   map[string]string{header: strings.TrimSpace(cfg.APIKey)},
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, err
	}
	return &Verifier{client: c}, nil
}

type verifyResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Error  string `json:"error"`
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, fmt.Errorf("%w: empty token", auth.ErrTokenMalformed)
	}

	var out verifyResponse
	err := v.client.DoJSON(ctx, http.MethodPost, verifyPath,
		map[string]string{"Authorization": "Bearer " + token},
		map[string]string{"token": token},
		&out,
	)
	if err != nil {
		return auth.Claims{}, classify(err)
	}

	out.UserID = strings.TrimSpace(out.UserID)
	if out.UserID == "" {
		return auth.Claims{}, fmt.Errorf("%w: response missing user_id", auth.ErrTokenMalformed)
	}
	return auth.Claims{
		UserID: out.UserID,
		Email:  strings.TrimSpace(out.Email),
		Role:   strings.TrimSpace(out.Role),
	}, nil
}

func (v *Verifier) Sign(context.Context, auth.Claims) (string, error) {
	return "", auth.ErrSignUnsupported
}

func classify(err error) error {
	var he *httpclient.HTTPError
	if !errors.As(err, &he) {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	switch he.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		body := strings.ToLower(he.Body)
		switch {
		case strings.Contains(body, "expired"):
			return fmt.Errorf("%w: %s", auth.ErrTokenExpired, he.Body)
		case strings.Contains(body, "malformed"):
			return fmt.Errorf("%w: %s", auth.ErrTokenMalformed, he.Body)
		default:
			return fmt.Errorf("%w: %s", auth.ErrSignatureInvalid, he.Body)
		}
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", auth.ErrTokenMalformed, he.Body)
	default:
		return fmt.Errorf("%w: status=%d", ErrUpstream, he.StatusCode)
	}
}
