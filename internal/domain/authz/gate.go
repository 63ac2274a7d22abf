// Package authz decide si una identidad puede ejecutar (resource, action) sobre un target.
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pet-clinic-backend/internal/domain/identity"
	"pet-clinic-backend/internal/domain/ownership"
	"pet-clinic-backend/internal/domain/policy"
	"pet-clinic-backend/internal/platform/logger"
	"pet-clinic-backend/internal/platform/metrics"
)

type Reason string

const (
	ReasonOK                Reason = "OK"
	ReasonUnauthenticated   Reason = "UNAUTHENTICATED"
	ReasonRoleForbidden     Reason = "ROLE_FORBIDDEN"
	ReasonOwnershipMismatch Reason = "OWNERSHIP_MISMATCH"
	ReasonResourceNotFound  Reason = "RESOURCE_NOT_FOUND"
)

// Decision se crea por request y no se guarda.
type Decision struct {
	Allowed bool
	Reason  Reason
	Rule    policy.Rule
}

func allow(rule policy.Rule) Decision { return Decision{Allowed: true, Reason: ReasonOK, Rule: rule} }

func deny(rule policy.Rule, r Reason) Decision { return Decision{Reason: r, Rule: rule} }

// OwnerResolver devuelve el subject dueño del target o un error que envuelve
// ownership.ErrNotFound si el target no existe.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, rule policy.Rule, targetID string) (string, error)
}

type Policies interface {
	Lookup(resource string, action policy.Action) (policy.Rule, error)
}

type Gate struct {
	policies Policies
	owners   OwnerResolver
	log      logger.Logger
}

func NewGate(policies Policies, owners OwnerResolver, log logger.Logger) *Gate {
	if log == nil {
		log = logger.Nop()
	}
	return &Gate{policies: policies, owners: owners, log: log}
}

// Authorize evalúa la regla de (resource, action).
//
// El error solo es no-nil para fallas que no son una decisión: regla
// inexistente (bug de configuración) o falla del data engine durante el
// lookup de ownership. Un target inexistente es Deny(RESOURCE_NOT_FOUND).
func (g *Gate) Authorize(ctx context.Context, id identity.Identity, resource string, action policy.Action, targetID string) (Decision, error) {
	start := time.Now()

	rule, err := g.policies.Lookup(resource, action)
	if err != nil {
		return Decision{}, err
	}

	d, looked, err := g.evaluate(ctx, id, rule, targetID)
	if err != nil {
		g.log.Error("authz_resolver_failed", map[string]any{
			"identity": id.String(),
			"resource": resource,
			"action":   string(action),
			"target":   targetID,
			"error":    err,
		})
		return Decision{}, err
	}

	metrics.RecordAuthzDecision(string(id.Role()), resource, string(action), string(d.Reason), looked, time.Since(start))

	fields := map[string]any{
		"identity": id.String(),
		"resource": resource,
		"action":   string(action),
		"target":   targetID,
		"reason":   string(d.Reason),
	}
	if d.Allowed {
		g.log.Debug("authz_allow", fields)
	} else {
		g.log.Info("authz_deny", fields)
	}
	return d, nil
}

// evaluate aplica la regla; looked indica si se consultó ownership.
func (g *Gate) evaluate(ctx context.Context, id identity.Identity, rule policy.Rule, targetID string) (Decision, bool, error) {
	role := id.Role()

	if id.IsAnonymous() && !rule.Public {
		return deny(rule, ReasonUnauthenticated), false, nil
	}

	// la pertenencia incondicional gana sobre ownership
	if rule.Unconditional(role) {
		return allow(rule), false, nil
	}

	if !rule.OwnerEligible(role) {
		return deny(rule, ReasonRoleForbidden), false, nil
	}

	owner, err := g.owners.ResolveOwner(ctx, rule, targetID)
	if err != nil {
		if errors.Is(err, ownership.ErrNotFound) {
			return deny(rule, ReasonResourceNotFound), true, nil
		}
		return Decision{}, true, fmt.Errorf("authz: %s %s: %w", rule.Resource, rule.Action, err)
	}

	if owner != "" && owner == id.SubjectID() {
		return allow(rule), true, nil
	}
	return deny(rule, ReasonOwnershipMismatch), true, nil
}
