package auth

import "time"

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Email  string
	Role   string

	// Solo lo completa Sign/Verify del servicio JWT.
	ExpiresAt time.Time
}
