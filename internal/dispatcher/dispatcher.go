// Package dispatcher es el punto de entrada de la API: resuelve la ruta,
// autentica, pasa por el gate y recién entonces ejecuta contra el data engine.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"pet-clinic-backend/internal/authn"
	"pet-clinic-backend/internal/domain/authz"
	"pet-clinic-backend/internal/domain/catalog"
	"pet-clinic-backend/internal/domain/identity"
	"pet-clinic-backend/internal/domain/policy"
	"pet-clinic-backend/internal/platform/logger"
	"pet-clinic-backend/internal/ports/dataengine"
)

const (
	StatusCancelled = "CANCELLED"

	defaultMaxBodyBytes = 1 << 20
	msgInternal         = "internal error"
	msgAuthUnavailable  = "authentication unavailable"
)

type Authenticator interface {
	Authenticate(ctx context.Context, h http.Header) (identity.Identity, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, id identity.Identity, resource string, action policy.Action, targetID string) (authz.Decision, error)
}

type Options struct {
	Routes *RouteTable
	Schema *dataengine.Schema
	Engine dataengine.Engine
	Authn  Authenticator
	Gate   Authorizer
	Log    logger.Logger

	DefaultPageSize int
	MaxPageSize     int
	MaxBodyBytes    int64
}

type Dispatcher struct {
	routes   *RouteTable
	schema   *dataengine.Schema
	engine   dataengine.Engine
	authn    Authenticator
	gate     Authorizer
	log      logger.Logger
	validate *validator.Validate

	defaultPage int
	maxPage     int
	maxBody     int64
}

func New(opts Options) (*Dispatcher, error) {
	if opts.Routes == nil || opts.Schema == nil || opts.Engine == nil || opts.Authn == nil || opts.Gate == nil {
		return nil, errors.New("dispatcher: routes, schema, engine, authn and gate are required")
	}
	d := &Dispatcher{
		routes:      opts.Routes,
		schema:      opts.Schema,
		engine:      opts.Engine,
		authn:       opts.Authn,
		gate:        opts.Gate,
		log:         opts.Log,
		validate:    validator.New(),
		defaultPage: opts.DefaultPageSize,
		maxPage:     opts.MaxPageSize,
		maxBody:     opts.MaxBodyBytes,
	}
	if d.log == nil {
		d.log = logger.Nop()
	}
	if d.maxPage <= 0 {
		d.maxPage = 200
	}
	if d.defaultPage <= 0 || d.defaultPage > d.maxPage {
		d.defaultPage = min(50, d.maxPage)
	}
	if d.maxBody <= 0 {
		d.maxBody = defaultMaxBodyBytes
	}
	return d, nil
}

// Request es la forma neutral de un request entrante. Path puede traer query
// string si Query es nil.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// StatusFor traduce el motivo de un Deny al status HTTP.
func StatusFor(r authz.Reason) int {
	switch r {
	case authz.ReasonOK:
		return http.StatusOK
	case authz.ReasonUnauthenticated:
		return http.StatusUnauthorized
	case authz.ReasonRoleForbidden, authz.ReasonOwnershipMismatch:
		return http.StatusForbidden
	case authz.ReasonResourceNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Handle corre un request completo. Ningún camino llega a EXECUTING sin un
// Allow del gate.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	f := newFlow()
	log := logger.FromContext(ctx, d.log)

	resp := d.run(ctx, log, f, req)
	f.to(StateResponded)
	resp.Trace = f.trace

	log.Debug("dispatch", map[string]any{
		"method": req.Method,
		"path":   req.Path,
		"status": resp.Status,
		"trace":  f.trace.String(),
	})
	return resp
}

func (d *Dispatcher) run(ctx context.Context, log logger.Logger, f *flow, req Request) Response {
	if i := strings.IndexByte(req.Path, '?'); i >= 0 {
		if req.Query == nil {
			q, err := url.ParseQuery(req.Path[i+1:])
			if err != nil {
				return fail(http.StatusBadRequest, "malformed query string")
			}
			req.Query = q
		}
		req.Path = req.Path[:i]
	}

	route, pathID, found := d.routes.Match(req.Method, req.Path)
	if !found {
		return fail(http.StatusNotFound, "route not found")
	}

	f.to(StateAuthenticating)
	id, err := d.authn.Authenticate(ctx, req.Header)
	if errors.Is(err, authn.ErrVerifierUnavailable) {
		log.Error("dispatch_authenticate_failed", map[string]any{
			"route": route.Pattern,
			"error": err,
		})
		return fail(http.StatusServiceUnavailable, msgAuthUnavailable)
	}
	if err != nil {
		f.to(StateRejected)
		return fail(http.StatusUnauthorized, string(authz.ReasonUnauthenticated))
	}

	f.to(StateAuthorizing)
	target := pathID
	if route.Target == TargetSelf {
		target = id.SubjectID()
	}

	dec, err := d.gate.Authorize(ctx, id, route.Resource, route.Action, target)
	if err != nil {
		log.Error("dispatch_authorize_failed", map[string]any{
			"route":    route.Pattern,
			"identity": id.String(),
			"error":    err,
		})
		return fail(http.StatusInternalServerError, msgInternal)
	}
	if !dec.Allowed {
		f.to(StateRejected)
		return fail(StatusFor(dec.Reason), string(dec.Reason))
	}

	var payload dataengine.Record
	if route.Action == policy.ActionCreate || route.Action == policy.ActionUpdate {
		payload, err = decodePayload(req.Body)
		if err != nil {
			return fail(http.StatusBadRequest, err.Error())
		}
		stampSubject(id, route.Action, route.Resource, payload)

		dec, err = d.authorizeWrite(ctx, id, route.Resource, payload)
		if err != nil {
			log.Error("dispatch_authorize_failed", map[string]any{
				"route":    route.Pattern,
				"identity": id.String(),
				"error":    err,
			})
			return fail(http.StatusInternalServerError, msgInternal)
		}
		if !dec.Allowed {
			f.to(StateRejected)
			return fail(StatusFor(dec.Reason), string(dec.Reason))
		}
	}

	f.to(StateExecuting)
	return d.execute(ctx, log, route, target, req.Query, payload)
}

func (d *Dispatcher) execute(ctx context.Context, log logger.Logger, route Route, target string, query url.Values, payload dataengine.Record) Response {
	def, err := d.schema.Resource(route.Resource)
	if err != nil {
		return d.engineFailure(log, route, err)
	}

	switch route.Action {
	case policy.ActionCreate:
		if err := d.checkPayload(def, payload, true); err != nil {
			return d.engineFailure(log, route, err)
		}
		rec, err := d.engine.Create(ctx, route.Resource, payload)
		if err != nil {
			return d.engineFailure(log, route, err)
		}
		return success(http.StatusCreated, rec)

	case policy.ActionReadOne:
		rec, err := d.engine.FindOne(ctx, route.Resource, target)
		if err != nil {
			return d.targetFailure(log, route, err)
		}
		return success(http.StatusOK, rec)

	case policy.ActionReadMany:
		filter, err := d.filter(query)
		if err != nil {
			return d.engineFailure(log, route, err)
		}
		recs, err := d.engine.FindMany(ctx, route.Resource, filter)
		if err != nil {
			return d.engineFailure(log, route, err)
		}
		if recs == nil {
			recs = []dataengine.Record{}
		}
		return success(http.StatusOK, recs)

	case policy.ActionUpdate:
		if err := d.checkPayload(def, payload, false); err != nil {
			return d.engineFailure(log, route, err)
		}
		rec, err := d.engine.Update(ctx, route.Resource, target, payload)
		if err != nil {
			return d.engineFailure(log, route, err)
		}
		return success(http.StatusOK, rec)

	case policy.ActionCancel:
		rec, err := d.engine.Update(ctx, route.Resource, target, dataengine.Record{"status": StatusCancelled})
		if err != nil {
			return d.targetFailure(log, route, err)
		}
		return success(http.StatusOK, rec)

	case policy.ActionDelete:
		rec, err := d.engine.Delete(ctx, route.Resource, target)
		if err != nil {
			return d.targetFailure(log, route, err)
		}
		return success(http.StatusOK, rec)
	}

	return d.engineFailure(log, route, fmt.Errorf("dispatcher: unhandled action %s", route.Action))
}

// targetFailure: sin payload del caller, un input inválido solo puede ser el
// id, que entonces no identifica ningún registro (igual que en el resolver).
func (d *Dispatcher) targetFailure(log logger.Logger, route Route, err error) Response {
	if errors.Is(err, dataengine.ErrInvalidInput) {
		return fail(http.StatusNotFound, string(authz.ReasonResourceNotFound))
	}
	return d.engineFailure(log, route, err)
}

func (d *Dispatcher) engineFailure(log logger.Logger, route Route, err error) Response {
	switch {
	case errors.Is(err, dataengine.ErrNotFound):
		return fail(http.StatusNotFound, string(authz.ReasonResourceNotFound))
	case errors.Is(err, dataengine.ErrInvalidInput):
		return fail(http.StatusBadRequest, err.Error())
	}
	log.Error("dispatch_execute_failed", map[string]any{
		"route":    route.Pattern,
		"resource": route.Resource,
		"action":   string(route.Action),
		"error":    err,
	})
	return fail(http.StatusInternalServerError, msgInternal)
}

// ownerFields: campo dueño de los recursos que un USER crea o edita a su nombre.
var ownerFields = map[string]string{
	catalog.Pet:          "ownerId",
	catalog.Payment:      "userId",
	catalog.Notification: "userId",
}

// stampSubject pisa el campo dueño con el subject de un USER. En CREATE
// siempre; en UPDATE solo si viene en el payload, así no se transfiere.
func stampSubject(id identity.Identity, action policy.Action, resource string, p dataengine.Record) {
	if id.Role() != identity.RoleUser {
		return
	}
	field, ok := ownerFields[resource]
	if !ok {
		return
	}
	if _, present := p[field]; action == policy.ActionUpdate && !present {
		return
	}
	p[field] = id.SubjectID()
}

// restrictedFields: campos que solo ciertos roles pueden escribir.
var restrictedFields = map[string]map[string]identity.Roles{
	catalog.User: {"role": {identity.RoleAdmin}},
}

// referenceChecks: relaciones cuyo target un USER debe poder leer para
// referenciarlo (no agenda turnos para la mascota de otro).
var referenceChecks = map[string][]string{
	catalog.Appointment:         {"pet"},
	catalog.BoardingReservation: {"pet"},
	catalog.ServiceBooking:      {"pet"},
}

// authorizeWrite revisa el payload ya autorizado: campos restringidos y
// referencias a registros ajenos.
func (d *Dispatcher) authorizeWrite(ctx context.Context, id identity.Identity, resource string, p dataengine.Record) (authz.Decision, error) {
	for field, roles := range restrictedFields[resource] {
		if _, present := p[field]; present && !roles.Has(id.Role()) {
			return authz.Decision{Reason: authz.ReasonRoleForbidden}, nil
		}
	}

	refs := referenceChecks[resource]
	if id.Role() != identity.RoleUser || len(refs) == 0 {
		return authz.Decision{Allowed: true, Reason: authz.ReasonOK}, nil
	}

	def, err := d.schema.Resource(resource)
	if err != nil {
		return authz.Decision{}, err
	}
	for _, name := range refs {
		rel, ok := def.Relation(name)
		if !ok {
			return authz.Decision{}, fmt.Errorf("dispatcher: %s has no relation %q", resource, name)
		}
		ref := dataengine.Text(p[rel.ForeignKey])
		if ref == "" {
			continue
		}
		dec, err := d.gate.Authorize(ctx, id, rel.Target, policy.ActionReadOne, ref)
		if err != nil || !dec.Allowed {
			return dec, err
		}
	}
	return authz.Decision{Allowed: true, Reason: authz.ReasonOK}, nil
}

// checkPayload: campos escribibles y reglas de validación. En updates solo
// se validan los campos presentes.
func (d *Dispatcher) checkPayload(def dataengine.ResourceDef, p dataengine.Record, creating bool) error {
	if err := def.CheckPayload(p, creating); err != nil {
		return err
	}

	rules := make(map[string]any, len(def.Validation))
	for field, tag := range def.Validation {
		if _, present := p[field]; creating || present {
			rules[field] = tag
		}
	}
	if len(rules) == 0 {
		return nil
	}

	errs := d.validate.ValidateMap(map[string]any(p), rules)
	if len(errs) == 0 {
		return nil
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: %s: invalid fields: %s", dataengine.ErrInvalidInput, def.Name, strings.Join(fields, ", "))
}

// filter: limit/offset paginan; el resto del query son igualdades.
func (d *Dispatcher) filter(q url.Values) (dataengine.Filter, error) {
	f := dataengine.Filter{Limit: d.defaultPage}
	for key, vals := range q {
		if len(vals) == 0 {
			continue
		}
		switch key {
		case "limit", "offset":
			n, err := strconv.Atoi(vals[0])
			if err != nil || n < 0 {
				return f, fmt.Errorf("%w: %s must be a non-negative integer", dataengine.ErrInvalidInput, key)
			}
			if key == "offset" {
				f.Offset = n
			} else if n > 0 {
				f.Limit = n
			}
		default:
			if f.Where == nil {
				f.Where = map[string]string{}
			}
			f.Where[key] = vals[0]
		}
	}
	if f.Limit > d.maxPage {
		f.Limit = d.maxPage
	}
	return f, nil
}

func decodePayload(body []byte) (dataengine.Record, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return dataengine.Record{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, errors.New("body must be a JSON object")
	}
	if m == nil {
		return dataengine.Record{}, nil
	}
	return dataengine.Record(m), nil
}

// ServeHTTP adapta Handle a net/http. Montado bajo chi usa el path relativo al mount.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath != "" {
		path = rctx.RoutePath
	}

	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				resp := fail(http.StatusRequestEntityTooLarge, "body too large")
				writeJSON(w, resp.Status, resp.Body)
				return
			}
			resp := fail(http.StatusBadRequest, "unreadable body")
			writeJSON(w, resp.Status, resp.Body)
			return
		}
		body = b
	}

	resp := d.Handle(r.Context(), Request{
		Method: r.Method,
		Path:   path,
		Query:  r.URL.Query(),
		Header: r.Header,
		Body:   body,
	})
	writeJSON(w, resp.Status, resp.Body)
}
