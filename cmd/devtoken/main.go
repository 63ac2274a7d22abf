// devtoken emite un JWT firmado con la configuración del servicio, para
// probar la API en modo jwt sin un proveedor de identidad.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pet-clinic-backend/internal/adapters/auth/jwtauth"
	"pet-clinic-backend/internal/domain/identity"
	"pet-clinic-backend/internal/platform/config"
	"pet-clinic-backend/internal/ports/auth"
)

func main() {
	sub := flag.String("sub", "", "subject (id del usuario)")
	role := flag.String("role", string(identity.RoleUser), "USER, EMPLOYEE, DOCTOR o ADMIN")
	email := flag.String("email", "", "email opcional")
	ttl := flag.Duration("ttl", 0, "vigencia; 0 usa auth.token_ttl")
	flag.Parse()

	if err := run(*sub, *role, *email, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
}

func run(sub, role, email string, ttl time.Duration) error {
	if strings.TrimSpace(sub) == "" {
		return errors.New("-sub is required")
	}
	r, ok := identity.ParseRole(role)
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}

	svc, err := jwtauth.NewService(jwtauth.Config{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    ttl,
	})
	if err != nil {
		return fmt.Errorf("auth.jwt_secret: %w", err)
	}

	token, err := svc.Sign(context.Background(), auth.Claims{UserID: sub, Email: email, Role: string(r)})
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
