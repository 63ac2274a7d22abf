package dataengine

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

type Field struct {
	Name   string
	Column string
}

// Relation: ForeignKey es un campo de este recurso que apunta al id de Target.
type Relation struct {
	Name       string
	ForeignKey string
	Target     string
}

type ResourceDef struct {
	Name      string
	Table     string
	Path      string
	Fields    []Field
	Relations []Relation

	// Validation: tags de go-playground/validator por campo del payload.
	Validation map[string]string
}

func (d ResourceDef) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (d ResourceDef) Relation(name string) (Relation, bool) {
	for _, r := range d.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// CheckPayload rechaza campos desconocidos y el id en updates.
func (d ResourceDef) CheckPayload(p Record, creating bool) error {
	var unknown []string
	for k := range p {
		if k == FieldID && !creating {
			unknown = append(unknown, k)
			continue
		}
		if k == FieldCreatedAt || k == FieldUpdatedAt {
			unknown = append(unknown, k)
			continue
		}
		if _, ok := d.Field(k); !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s: fields not writable: %s", ErrInvalidInput, d.Name, strings.Join(unknown, ", "))
	}
	return nil
}

// Stamp completa createdAt/updatedAt si el recurso los tiene.
func (d ResourceDef) Stamp(p Record, now time.Time, creating bool) {
	if creating {
		if _, ok := d.Field(FieldCreatedAt); ok {
			p[FieldCreatedAt] = now
		}
	}
	if _, ok := d.Field(FieldUpdatedAt); ok {
		p[FieldUpdatedAt] = now
	}
}

// Hop es un salto de relación al resolver un path de proyección.
type Hop struct {
	From     ResourceDef
	Relation Relation
	To       ResourceDef
}

type Schema struct {
	defs  map[string]ResourceDef
	order []string
}

func NewSchema(defs ...ResourceDef) (*Schema, error) {
	s := &Schema{defs: map[string]ResourceDef{}}
	for _, d := range defs {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("schema: resource without name")
		}
		if _, dup := s.defs[d.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate resource %q", d.Name)
		}
		if _, ok := d.Field(FieldID); !ok {
			return nil, fmt.Errorf("schema: %s: missing id field", d.Name)
		}
		s.defs[d.Name] = d
		s.order = append(s.order, d.Name)
	}

	for _, d := range defs {
		for _, r := range d.Relations {
			if _, ok := d.Field(r.ForeignKey); !ok {
				return nil, fmt.Errorf("schema: %s.%s: foreign key %q not a field", d.Name, r.Name, r.ForeignKey)
			}
			if _, ok := s.defs[r.Target]; !ok {
				return nil, fmt.Errorf("schema: %s.%s: unknown target %q", d.Name, r.Name, r.Target)
			}
		}
	}
	return s, nil
}

func (s *Schema) Resource(name string) (ResourceDef, error) {
	d, ok := s.defs[name]
	if !ok {
		return ResourceDef{}, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return d, nil
}

// Resources en orden de declaración.
func (s *Schema) Resources() []ResourceDef {
	out := make([]ResourceDef, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.defs[n])
	}
	return out
}

// ResolvePath recorre "rel.rel.field" y devuelve los saltos y el campo final.
func (s *Schema) ResolvePath(resource, path string) ([]Hop, Field, error) {
	cur, err := s.Resource(resource)
	if err != nil {
		return nil, Field{}, err
	}
	parts := strings.Split(path, ".")
	hops := make([]Hop, 0, len(parts)-1)
	for _, name := range parts[:len(parts)-1] {
		rel, ok := cur.Relation(name)
		if !ok {
			return nil, Field{}, fmt.Errorf("%w: %s has no relation %q", ErrInvalidInput, cur.Name, name)
		}
		next := s.defs[rel.Target]
		hops = append(hops, Hop{From: cur, Relation: rel, To: next})
		cur = next
	}
	f, ok := cur.Field(parts[len(parts)-1])
	if !ok {
		return nil, Field{}, fmt.Errorf("%w: %s has no field %q", ErrInvalidInput, cur.Name, parts[len(parts)-1])
	}
	return hops, f, nil
}
