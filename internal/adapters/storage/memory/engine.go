// Package memory implementa dataengine.Engine en memoria para dev y tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pet-clinic-backend/internal/ports/dataengine"
)

type table struct {
	byID  map[string]dataengine.Record
	order []string
}

// Engine guarda una tabla por recurso; el orden de inserción es el orden de FindMany.
type Engine struct {
	mu     sync.RWMutex
	schema *dataengine.Schema
	tables map[string]*table

	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

func NewEngine(schema *dataengine.Schema, opts ...Option) *Engine {
	e := &Engine{
		schema: schema,
		tables: make(map[string]*table),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, def := range schema.Resources() {
		e.tables[def.Name] = &table{byID: make(map[string]dataengine.Record)}
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) FindOne(ctx context.Context, resource, id string, fields ...string) (dataengine.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, err := e.table(resource)
	if err != nil {
		return nil, err
	}
	row, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", dataengine.ErrNotFound, resource, id)
	}
	if len(fields) == 0 {
		return row.Clone(), nil
	}

	out := dataengine.Record{dataengine.FieldID: row[dataengine.FieldID]}
	for _, path := range fields {
		v, ok, err := e.project(resource, row, path)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Set(path, v)
		}
	}
	return out, nil
}

// project sigue las FKs del path; ok=false si alguna relación no existe.
func (e *Engine) project(resource string, row dataengine.Record, path string) (any, bool, error) {
	hops, field, err := e.schema.ResolvePath(resource, path)
	if err != nil {
		return nil, false, err
	}
	cur := row
	for _, h := range hops {
		fk := dataengine.Text(cur[h.Relation.ForeignKey])
		if fk == "" {
			return nil, false, nil
		}
		next, ok := e.tables[h.To.Name].byID[fk]
		if !ok {
			return nil, false, nil
		}
		cur = next
	}
	v, ok := cur[field.Name]
	return v, ok, nil
}

func (e *Engine) FindMany(ctx context.Context, resource string, f dataengine.Filter) ([]dataengine.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, err := e.table(resource)
	if err != nil {
		return nil, err
	}
	def, _ := e.schema.Resource(resource)
	for k := range f.Where {
		if _, ok := def.Field(k); !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", dataengine.ErrInvalidInput, resource, k)
		}
	}

	out := make([]dataengine.Record, 0)
	skipped := 0
	for _, id := range t.order {
		row := t.byID[id]
		if !matches(row, f.Where) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, row.Clone())
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func matches(row dataengine.Record, where map[string]string) bool {
	for k, want := range where {
		if dataengine.Text(row[k]) != want {
			return false
		}
	}
	return true
}

func (e *Engine) Create(ctx context.Context, resource string, payload dataengine.Record) (dataengine.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := e.schema.Resource(resource)
	if err != nil {
		return nil, err
	}
	if err := def.CheckPayload(payload, true); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	row := payload.Clone()
	id := strings.TrimSpace(dataengine.Text(row[dataengine.FieldID]))
	if id == "" {
		id = e.newID()
	}
	row[dataengine.FieldID] = id
	def.Stamp(row, e.now(), true)

	if err := e.insert(resource, row); err != nil {
		return nil, err
	}
	return row.Clone(), nil
}

func (e *Engine) insert(resource string, row dataengine.Record) error {
	t := e.tables[resource]
	id := dataengine.Text(row[dataengine.FieldID])
	if _, dup := t.byID[id]; dup {
		return fmt.Errorf("%w: %s %s already exists", dataengine.ErrInvalidInput, resource, id)
	}
	t.byID[id] = row
	t.order = append(t.order, id)
	return nil
}

func (e *Engine) Update(ctx context.Context, resource, id string, payload dataengine.Record) (dataengine.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := e.schema.Resource(resource)
	if err != nil {
		return nil, err
	}
	if err := def.CheckPayload(payload, false); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.tables[resource]
	cur, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", dataengine.ErrNotFound, resource, id)
	}
	next := cur.Clone()
	for k, v := range payload {
		next[k] = v
	}
	def.Stamp(next, e.now(), false)
	t.byID[id] = next
	return next.Clone(), nil
}

func (e *Engine) Delete(ctx context.Context, resource, id string) (dataengine.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.table(resource)
	if err != nil {
		return nil, err
	}
	row, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", dataengine.ErrNotFound, resource, id)
	}
	delete(t.byID, id)
	for i, x := range t.order {
		if x == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return row, nil
}

// Seed inserta filas tal cual (con id obligatorio); para datos de dev y tests.
func (e *Engine) Seed(resource string, rows ...dataengine.Record) error {
	if _, err := e.schema.Resource(resource); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range rows {
		if dataengine.Text(r[dataengine.FieldID]) == "" {
			return fmt.Errorf("%w: seed %s without id", dataengine.ErrInvalidInput, resource)
		}
		if err := e.insert(resource, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) table(resource string) (*table, error) {
	t, ok := e.tables[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %q", dataengine.ErrUnknownResource, resource)
	}
	return t, nil
}
