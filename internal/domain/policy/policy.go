package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"pet-clinic-backend/internal/domain/identity"
)

var (
	ErrPolicyNotFound      = errors.New("policy not found")
	ErrPolicyMisconfigured = errors.New("policy misconfigured")
)

type Action string

const (
	ActionCreate   Action = "CREATE"
	ActionReadOne  Action = "READ_ONE"
	ActionReadMany Action = "READ_MANY"
	ActionUpdate   Action = "UPDATE"
	ActionDelete   Action = "DELETE"
	ActionCancel   Action = "CANCEL"
)

// CRUD son las acciones que todo recurso debe declarar.
var CRUD = []Action{ActionCreate, ActionReadOne, ActionReadMany, ActionUpdate, ActionDelete}

type OwnershipKind int

const (
	OwnershipNone OwnershipKind = iota
	// OwnershipDirect: el dueño es un campo del propio registro.
	OwnershipDirect
	// OwnershipVia: el dueño se alcanza por una cadena de relaciones.
	OwnershipVia
)

// OwnershipPath describe cómo llegar al subject que controla el registro.
type OwnershipPath struct {
	Kind      OwnershipKind
	Relations []string
	Field     string
}

func Direct(field string) OwnershipPath {
	return OwnershipPath{Kind: OwnershipDirect, Field: field}
}

func Via(field string, relations ...string) OwnershipPath {
	return OwnershipPath{Kind: OwnershipVia, Relations: relations, Field: field}
}

// Projection es el path que se pide al data engine ("pet.ownerId").
func (p OwnershipPath) Projection() string {
	if len(p.Relations) == 0 {
		return p.Field
	}
	return strings.Join(p.Relations, ".") + "." + p.Field
}

func (p OwnershipPath) String() string {
	switch p.Kind {
	case OwnershipDirect:
		return "direct " + p.Field
	case OwnershipVia:
		return "via " + p.Projection()
	default:
		return "none"
	}
}

func (p OwnershipPath) valid() bool {
	switch p.Kind {
	case OwnershipDirect:
		return p.Field != "" && len(p.Relations) == 0
	case OwnershipVia:
		return p.Field != "" && len(p.Relations) > 0
	default:
		return false
	}
}

// Rule es la especificación estática de acceso para (resource, action).
//
// AllowedRoles pasan sin consultar ownership. OwnerRoles (default: cualquier
// autenticado) solo pasan con un ownership fact fresco del target.
type Rule struct {
	Resource          string
	Action            Action
	Public            bool
	AllowedRoles      identity.Roles
	RequiresOwnership bool
	OwnerRoles        identity.Roles
	Ownership         OwnershipPath
}

// Unconditional indica si el rol pasa sin ownership.
func (r Rule) Unconditional(role identity.Role) bool {
	if r.Public {
		return true
	}
	return r.AllowedRoles.Has(role)
}

// OwnerEligible indica si el rol puede pasar vía ownership.
func (r Rule) OwnerEligible(role identity.Role) bool {
	if !r.RequiresOwnership || role == identity.RoleAnonymous {
		return false
	}
	if len(r.OwnerRoles) == 0 {
		return identity.Authenticated.Has(role)
	}
	return r.OwnerRoles.Has(role)
}

type key struct {
	resource string
	action   Action
}

// Table es de solo lectura tras construirse; seguro para lecturas concurrentes.
type Table struct {
	rules map[key]Rule
}

func NewTable(rules []Rule) (*Table, error) {
	t := &Table{rules: make(map[key]Rule, len(rules))}
	var errs []error
	for _, r := range rules {
		k := key{r.Resource, r.Action}
		if _, dup := t.rules[k]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate rule %s %s", ErrPolicyMisconfigured, r.Resource, r.Action))
			continue
		}
		if err := checkRule(r); err != nil {
			errs = append(errs, err)
			continue
		}
		t.rules[k] = r
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

func checkRule(r Rule) error {
	switch {
	case strings.TrimSpace(r.Resource) == "" || r.Action == "":
		return fmt.Errorf("%w: rule without resource/action", ErrPolicyMisconfigured)
	case r.RequiresOwnership && !r.Ownership.valid():
		return fmt.Errorf("%w: %s %s requires ownership without a valid path", ErrPolicyMisconfigured, r.Resource, r.Action)
	case !r.RequiresOwnership && r.Ownership.Kind != OwnershipNone:
		return fmt.Errorf("%w: %s %s declares an ownership path it never uses", ErrPolicyMisconfigured, r.Resource, r.Action)
	case r.AllowedRoles.Has(identity.RoleAnonymous) && !r.Public:
		return fmt.Errorf("%w: %s %s: use Public instead of ANONYMOUS in allowed roles", ErrPolicyMisconfigured, r.Resource, r.Action)
	case r.OwnerRoles.Has(identity.RoleAnonymous):
		return fmt.Errorf("%w: %s %s: anonymous cannot own records", ErrPolicyMisconfigured, r.Resource, r.Action)
	case !r.Public && len(r.AllowedRoles) == 0 && !r.RequiresOwnership:
		return fmt.Errorf("%w: %s %s admits nobody", ErrPolicyMisconfigured, r.Resource, r.Action)
	}
	return nil
}

func (t *Table) Lookup(resource string, action Action) (Rule, error) {
	r, ok := t.rules[key{resource, action}]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s %s", ErrPolicyNotFound, resource, action)
	}
	return r, nil
}

// Rules devuelve las reglas ordenadas por recurso y acción.
func (t *Table) Rules() []Rule {
	out := make([]Rule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Validate es el chequeo de completitud de arranque: cada (resource, action)
// requerido tiene regla y no sobran reglas para recursos no declarados.
func (t *Table) Validate(required map[string][]Action) error {
	var errs []error

	resources := make([]string, 0, len(required))
	for res := range required {
		resources = append(resources, res)
	}
	sort.Strings(resources)

	for _, res := range resources {
		for _, a := range required[res] {
			if _, err := t.Lookup(res, a); err != nil {
				errs = append(errs, fmt.Errorf("%w: missing rule %s %s", ErrPolicyMisconfigured, res, a))
			}
		}
	}
	for _, r := range t.Rules() {
		if _, ok := required[r.Resource]; !ok {
			errs = append(errs, fmt.Errorf("%w: rule for undeclared resource %s", ErrPolicyMisconfigured, r.Resource))
		}
	}
	return errors.Join(errs...)
}
