// Package postgres implementa dataengine.Engine sobre Postgres.
// El SQL se genera desde el esquema; los identificadores nunca vienen del request.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"pet-clinic-backend/internal/ports/dataengine"
)

type Engine struct {
	db     *sql.DB
	schema *dataengine.Schema
	now    func() time.Time
	newID  func() string
}

func NewEngine(db *sql.DB, schema *dataengine.Schema) *Engine {
	return &Engine{
		db:     db,
		schema: schema,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func (e *Engine) FindOne(ctx context.Context, resource, id string, fields ...string) (dataengine.Record, error) {
	def, err := e.schema.Resource(resource)
	if err != nil {
		return nil, err
	}

	var q string
	var paths []string
	if len(fields) == 0 {
		q = fmt.Sprintf("SELECT %s FROM %s t0 WHERE t0.id = $1", columnList(def, "t0"), def.Table)
	} else {
		q, paths, err = e.projectionQuery(def, fields)
		if err != nil {
			return nil, err
		}
	}

	rows, err := e.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mapErr(err)
		}
		return nil, fmt.Errorf("%w: %s %s", dataengine.ErrNotFound, resource, id)
	}

	if len(fields) == 0 {
		return scanRecord(rows, def)
	}

	vals := make([]any, len(paths)+1)
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, mapErr(err)
	}
	out := dataengine.Record{dataengine.FieldID: normalize(vals[0])}
	for i, p := range paths {
		// LEFT JOIN sin fila: relación inexistente, se omite
		if vals[i+1] != nil {
			out.Set(p, normalize(vals[i+1]))
		}
	}
	return out, nil
}

// projectionQuery arma un SELECT con un LEFT JOIN por relación recorrida.
func (e *Engine) projectionQuery(def dataengine.ResourceDef, fields []string) (string, []string, error) {
	aliases := map[string]string{"": "t0"}
	var joins []string
	cols := []string{"t0.id"}

	for _, path := range fields {
		hops, field, err := e.schema.ResolvePath(def.Name, path)
		if err != nil {
			return "", nil, err
		}
		chain := ""
		alias := "t0"
		for _, h := range hops {
			next := chain + "." + h.Relation.Name
			a, ok := aliases[next]
			if !ok {
				a = fmt.Sprintf("t%d", len(aliases))
				aliases[next] = a
				fk, _ := h.From.Field(h.Relation.ForeignKey)
				joins = append(joins, fmt.Sprintf("LEFT JOIN %s %s ON %s.id = %s.%s", h.To.Table, a, a, alias, fk.Column))
			}
			chain, alias = next, a
		}
		cols = append(cols, alias+"."+field.Column)
	}

	q := fmt.Sprintf("SELECT %s FROM %s t0", strings.Join(cols, ", "), def.Table)
	if len(joins) > 0 {
		q += " " + strings.Join(joins, " ")
	}
	q += " WHERE t0.id = $1"
	return q, fields, nil
}

func (e *Engine) FindMany(ctx context.Context, resource string, f dataengine.Filter) ([]dataengine.Record, error) {
	def, err := e.schema.Resource(resource)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(f.Where))
	for k := range f.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []string
	var args []any
	for _, k := range keys {
		field, ok := def.Field(k)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", dataengine.ErrInvalidInput, resource, k)
		}
		args = append(args, f.Where[k])
		conds = append(conds, fmt.Sprintf("t0.%s::text = $%d", field.Column, len(args)))
	}

	q := fmt.Sprintf("SELECT %s FROM %s t0", columnList(def, "t0"), def.Table)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	order := "t0.id"
	if c, ok := def.Field(dataengine.FieldCreatedAt); ok {
		order = "t0." + c.Column + ", t0.id"
	}
	q += " ORDER BY " + order
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := e.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make([]dataengine.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows, def)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (e *Engine) Create(ctx context.Context, resource string, payload dataengine.Record) (dataengine.Record, error) {
	def, err := e.schema.Resource(resource)
	if err != nil {
		return nil, err
	}
	if err := def.CheckPayload(payload, true); err != nil {
		return nil, err
	}

	row := payload.Clone()
	if strings.TrimSpace(dataengine.Text(row[dataengine.FieldID])) == "" {
		row[dataengine.FieldID] = e.newID()
	}
	def.Stamp(row, e.now(), true)

	names := sortedKeys(row)
	cols := make([]string, 0, len(names))
	marks := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for i, n := range names {
		f, _ := def.Field(n)
		cols = append(cols, f.Column)
		marks = append(marks, fmt.Sprintf("$%d", i+1))
		args = append(args, row[n])
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		def.Table, strings.Join(cols, ", "), strings.Join(marks, ", "), columnList(def, ""))
	return e.queryRow(ctx, def, q, args...)
}

func (e *Engine) Update(ctx context.Context, resource, id string, payload dataengine.Record) (dataengine.Record, error) {
	def, err := e.schema.Resource(resource)
	if err != nil {
		return nil, err
	}
	if err := def.CheckPayload(payload, false); err != nil {
		return nil, err
	}

	row := payload.Clone()
	def.Stamp(row, e.now(), false)
	if len(row) == 0 {
		return e.FindOne(ctx, resource, id)
	}

	names := sortedKeys(row)
	sets := make([]string, 0, len(names))
	args := make([]any, 0, len(names)+1)
	for i, n := range names {
		f, _ := def.Field(n)
		sets = append(sets, fmt.Sprintf("%s = $%d", f.Column, i+1))
		args = append(args, row[n])
	}
	args = append(args, id)

	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING %s",
		def.Table, strings.Join(sets, ", "), len(args), columnList(def, ""))
	return e.queryRow(ctx, def, q, args...)
}

func (e *Engine) Delete(ctx context.Context, resource, id string) (dataengine.Record, error) {
	def, err := e.schema.Resource(resource)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE id = $1 RETURNING %s", def.Table, columnList(def, ""))
	return e.queryRow(ctx, def, q, id)
}

func (e *Engine) queryRow(ctx context.Context, def dataengine.ResourceDef, q string, args ...any) (dataengine.Record, error) {
	rows, err := e.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mapErr(err)
		}
		return nil, fmt.Errorf("%w: %s", dataengine.ErrNotFound, def.Name)
	}
	return scanRecord(rows, def)
}

func scanRecord(rows *sql.Rows, def dataengine.ResourceDef) (dataengine.Record, error) {
	vals := make([]any, len(def.Fields))
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, mapErr(err)
	}
	rec := make(dataengine.Record, len(def.Fields))
	for i, f := range def.Fields {
		rec[f.Name] = normalize(vals[i])
	}
	return rec, nil
}

func columnList(def dataengine.ResourceDef, alias string) string {
	cols := make([]string, 0, len(def.Fields))
	for _, f := range def.Fields {
		if alias != "" {
			cols = append(cols, alias+"."+f.Column)
		} else {
			cols = append(cols, f.Column)
		}
	}
	return strings.Join(cols, ", ")
}

// sortedKeys deja el id primero para que el SQL sea estable.
func sortedKeys(r dataengine.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if k != dataengine.FieldID {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := r[dataengine.FieldID]; ok {
		keys = append([]string{dataengine.FieldID}, keys...)
	}
	return keys
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

var pgInputErrors = map[string]string{
	"23505": "duplicate value",
	"23503": "referenced record does not exist",
	"23502": "missing required field",
	"22P02": "malformed value",
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", dataengine.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// el mensaje de postgres no sale del servicio; nombra tablas y constraints
		if msg, ok := pgInputErrors[pgErr.Code]; ok {
			return fmt.Errorf("%w: %s", dataengine.ErrInvalidInput, msg)
		}
	}
	return err
}
