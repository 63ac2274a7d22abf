package dataengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrUnknownResource = errors.New("unknown resource")
	ErrInvalidInput    = errors.New("invalid input")
)

// Engine es el ejecutor CRUD genérico que atiende los requests ya autorizados.
// fields en FindOne son paths de proyección; "pet.ownerId" atraviesa la relación pet.
type Engine interface {
	FindOne(ctx context.Context, resource, id string, fields ...string) (Record, error)
	FindMany(ctx context.Context, resource string, filter Filter) ([]Record, error)
	Create(ctx context.Context, resource string, payload Record) (Record, error)
	Update(ctx context.Context, resource, id string, payload Record) (Record, error)
	Delete(ctx context.Context, resource, id string) (Record, error)
}

type Filter struct {
	// Igualdad por campo (valor en texto, como viene del query string).
	Where  map[string]string
	Limit  int
	Offset int
}

// Record es una fila; las relaciones proyectadas quedan anidadas.
type Record map[string]any

// Lookup resuelve un path con puntos: "pet.ownerId".
func (r Record) Lookup(path string) (any, bool) {
	var cur any = r
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set escribe un path con puntos creando los niveles intermedios.
func (r Record) Set(path string, v any) {
	parts := strings.Split(path, ".")
	cur := r
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = Record{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func asMap(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	default:
		return nil, false
	}
}

// Clone hace copia superficial; suficiente para evitar aliasing entre requests.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Text convierte un valor escalar al texto usado para comparar ids y filtros.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
