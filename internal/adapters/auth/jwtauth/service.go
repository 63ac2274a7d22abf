// Package jwtauth implementa auth.TokenService con JWT HS256.
package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pet-clinic-backend/internal/ports/auth"
)

const MinSecretLength = 32

var ErrWeakSecret = fmt.Errorf("jwt secret must have at least %d characters", MinSecretLength)

type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Leeway time.Duration

	// Now solo se sobreescribe en tests.
	Now func() time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		secret: []byte(cfg.Secret),
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    ttl,
		leeway: cfg.Leeway,
		now:    now,
	}, nil
}

func (s *Service) Sign(_ context.Context, c auth.Claims) (string, error) {
	sub := strings.TrimSpace(c.UserID)
	if sub == "" {
		return "", fmt.Errorf("%w: missing subject", auth.ErrTokenMalformed)
	}
	now := s.now()
	exp := c.ExpiresAt
	if exp.IsZero() {
		exp = now.Add(s.ttl)
	}

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: strings.TrimSpace(c.Email),
		Role:  strings.TrimSpace(c.Role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt sign: %w", err)
	}
	return ss, nil
}

func (s *Service) Verify(_ context.Context, raw string) (auth.Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return auth.Claims{}, fmt.Errorf("%w: empty token", auth.ErrTokenMalformed)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return auth.Claims{}, classify(err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return auth.Claims{}, fmt.Errorf("%w: missing subject", auth.ErrTokenMalformed)
	}

	out := auth.Claims{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// classify traduce los errores de la librería a los del puerto.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", auth.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", auth.ErrSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", auth.ErrTokenMalformed, err)
	}
}
