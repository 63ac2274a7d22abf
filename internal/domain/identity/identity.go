package identity

import (
	"context"
	"strings"
)

// Role es el rol declarado en el token.
type Role string

const (
	RoleUser      Role = "USER"
	RoleEmployee  Role = "EMPLOYEE"
	RoleDoctor    Role = "DOCTOR"
	RoleAdmin     Role = "ADMIN"
	RoleAnonymous Role = "ANONYMOUS"
)

// ParseRole normaliza el claim de rol. ANONYMOUS nunca viene de un token.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleUser, RoleEmployee, RoleDoctor, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

type Roles []Role

func (rs Roles) Has(r Role) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}

// Authenticated: cualquier rol con token válido.
var Authenticated = Roles{RoleUser, RoleEmployee, RoleDoctor, RoleAdmin}

// All incluye ANONYMOUS.
var All = Roles{RoleAnonymous, RoleUser, RoleEmployee, RoleDoctor, RoleAdmin}

// Identity es inmutable: los campos no se exportan y no hay setters.
type Identity struct {
	subjectID string
	role      Role
}

func Anonymous() Identity {
	return Identity{role: RoleAnonymous}
}

// New devuelve ANONYMOUS si falta el subject o el rol no es de usuario.
func New(subjectID string, role Role) Identity {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return Anonymous()
	}
	if _, ok := ParseRole(string(role)); !ok {
		return Anonymous()
	}
	return Identity{subjectID: subjectID, role: role}
}

func (i Identity) SubjectID() string { return i.subjectID }

func (i Identity) Role() Role {
	if i.role == "" {
		return RoleAnonymous
	}
	return i.role
}

func (i Identity) IsAnonymous() bool { return i.Role() == RoleAnonymous }

func (i Identity) String() string {
	if i.IsAnonymous() {
		return "anonymous"
	}
	return string(i.role) + ":" + i.subjectID
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext devuelve ANONYMOUS si el request no pasó por autenticación.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}
