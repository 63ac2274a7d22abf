// Package ownership resuelve el subject que controla un registro concreto.
package ownership

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pet-clinic-backend/internal/domain/policy"
	"pet-clinic-backend/internal/platform/logger"
	"pet-clinic-backend/internal/platform/metrics"
	"pet-clinic-backend/internal/ports/dataengine"
)

var ErrNotFound = errors.New("ownership target not found")

// Resolver hace exactamente un FindOne por llamada y no guarda nada entre llamadas.
type Resolver struct {
	engine dataengine.Engine
	log    logger.Logger
}

func NewResolver(engine dataengine.Engine, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{engine: engine, log: log}
}

// ResolveOwner devuelve el subject id dueño del target según rule.Ownership.
// Un registro inexistente es ErrNotFound. Un registro cuya relación no existe
// devuelve owner vacío: nadie lo posee.
func (r *Resolver) ResolveOwner(ctx context.Context, rule policy.Rule, targetID string) (string, error) {
	if !rule.RequiresOwnership {
		return "", fmt.Errorf("ownership: %s %s has no ownership path", rule.Resource, rule.Action)
	}
	if strings.TrimSpace(targetID) == "" {
		metrics.RecordOwnershipLookup(rule.Resource, "not_found")
		return "", fmt.Errorf("%w: %s without target id", ErrNotFound, rule.Resource)
	}

	projection := rule.Ownership.Projection()
	rec, err := r.engine.FindOne(ctx, rule.Resource, targetID, projection)
	if err != nil {
		// un id mal formado no identifica ningún registro
		if errors.Is(err, dataengine.ErrNotFound) || errors.Is(err, dataengine.ErrInvalidInput) {
			metrics.RecordOwnershipLookup(rule.Resource, "not_found")
			return "", fmt.Errorf("%w: %s %s", ErrNotFound, rule.Resource, targetID)
		}
		metrics.RecordOwnershipLookup(rule.Resource, "error")
		return "", fmt.Errorf("ownership: resolve %s %s: %w", rule.Resource, targetID, err)
	}

	metrics.RecordOwnershipLookup(rule.Resource, "found")
	v, ok := rec.Lookup(projection)
	if !ok {
		r.log.Debug("ownership_orphan", map[string]any{
			"resource": rule.Resource,
			"target":   targetID,
			"path":     projection,
		})
		return "", nil
	}
	return dataengine.Text(v), nil
}
