package dispatcher

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"pet-clinic-backend/internal/domain/catalog"
	"pet-clinic-backend/internal/domain/policy"
	"pet-clinic-backend/internal/ports/dataengine"
)

var ErrRouteMisconfigured = errors.New("route table misconfigured")

type TargetKind int

const (
	// TargetNone: la acción no apunta a un registro (CREATE, READ_MANY).
	TargetNone TargetKind = iota
	// TargetParam: el id sale del path ({id}).
	TargetParam
	// TargetSelf: el id es el subject del caller (/users/me).
	TargetSelf
)

type Route struct {
	Method   string
	Pattern  string
	Resource string
	Action   policy.Action
	Target   TargetKind
}

func (r Route) key() string { return r.Method + " " + r.Pattern }

// BuildRoutes genera la tabla de rutas desde el esquema.
func BuildRoutes(defs []dataengine.ResourceDef, cancellable []string) []Route {
	cancel := map[string]bool{}
	for _, c := range cancellable {
		cancel[c] = true
	}

	var out []Route
	for _, def := range defs {
		base := "/" + def.Path
		item := base + "/{id}"
		res := def.Name

		out = append(out,
			Route{http.MethodPost, base, res, policy.ActionCreate, TargetNone},
			Route{http.MethodGet, base, res, policy.ActionReadMany, TargetNone},
			Route{http.MethodGet, item, res, policy.ActionReadOne, TargetParam},
			Route{http.MethodDelete, item, res, policy.ActionDelete, TargetParam},
		)

		// users solo se actualizan a sí mismos
		if res == catalog.User {
			out = append(out,
				Route{http.MethodGet, base + "/me", res, policy.ActionReadOne, TargetSelf},
				Route{http.MethodPatch, base + "/me", res, policy.ActionUpdate, TargetSelf},
			)
		} else {
			out = append(out,
				Route{http.MethodPatch, item, res, policy.ActionUpdate, TargetParam},
				Route{http.MethodPut, item, res, policy.ActionUpdate, TargetParam},
			)
		}

		if cancel[res] {
			out = append(out, Route{http.MethodPatch, item + "/cancel", res, policy.ActionCancel, TargetParam})
		}
	}
	return out
}

type RuleSet interface {
	Lookup(resource string, action policy.Action) (policy.Rule, error)
	Rules() []policy.Rule
}

// RouteTable resuelve (method, path) con el árbol de chi. Solo lectura tras NewRouteTable.
type RouteTable struct {
	mux    *chi.Mux
	routes map[string]Route
}

// NewRouteTable valida que cada ruta tenga regla y que cada regla sea alcanzable.
func NewRouteTable(routes []Route, rules RuleSet) (*RouteTable, error) {
	t := &RouteTable{mux: chi.NewMux(), routes: make(map[string]Route, len(routes))}
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	var errs []error
	reachable := map[string]bool{}
	for _, r := range routes {
		if _, dup := t.routes[r.key()]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate route %s", ErrRouteMisconfigured, r.key()))
			continue
		}
		if _, err := rules.Lookup(r.Resource, r.Action); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrRouteMisconfigured, r.key(), err))
			continue
		}
		t.routes[r.key()] = r
		t.mux.Method(r.Method, r.Pattern, noop)
		reachable[r.Resource+" "+string(r.Action)] = true
	}
	for _, rule := range rules.Rules() {
		if !reachable[rule.Resource+" "+string(rule.Action)] {
			errs = append(errs, fmt.Errorf("%w: no route reaches %s %s", ErrRouteMisconfigured, rule.Resource, rule.Action))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

// Match devuelve la ruta y el {id} del path, si lo hay.
func (t *RouteTable) Match(method, path string) (Route, string, bool) {
	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, method, path) {
		return Route{}, "", false
	}
	r, ok := t.routes[method+" "+rctx.RoutePattern()]
	if !ok {
		return Route{}, "", false
	}
	return r, rctx.URLParam("id"), true
}

// Routes ordenadas por patrón y método; para docs y tests.
func (t *RouteTable) Routes() []Route {
	out := make([]Route, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// String para logs de arranque.
func (r Route) String() string {
	return fmt.Sprintf("%-6s %s -> %s %s", r.Method, r.Pattern, r.Resource, strings.ToLower(string(r.Action)))
}
