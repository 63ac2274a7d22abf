package router

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger"

	mem "pet-clinic-backend/internal/adapters/storage/memory"
	pg "pet-clinic-backend/internal/adapters/storage/postgres"
	"pet-clinic-backend/internal/authn"
	"pet-clinic-backend/internal/dispatcher"
	"pet-clinic-backend/internal/domain/authz"
	"pet-clinic-backend/internal/domain/catalog"
	"pet-clinic-backend/internal/domain/ownership"
	"pet-clinic-backend/internal/domain/policy"
	"pet-clinic-backend/internal/middleware"
	_ "pet-clinic-backend/internal/platform/docs"
	"pet-clinic-backend/internal/platform/logger"
	"pet-clinic-backend/internal/platform/metrics"
	"pet-clinic-backend/internal/ports/auth"
	"pet-clinic-backend/internal/ports/dataengine"
)

const APIPrefix = "/api"

var ErrNoAuth = errors.New("router: an auth verifier is required unless dev headers are enabled")

type Options struct {
	AuthVerifier        auth.AuthVerifier
	RejectInvalidTokens bool

	// DevHeaders acepta la identidad de los headers de debug. Solo sin
	// AuthVerifier; nunca se activa por omisión.
	DevHeaders bool

	// Engine gana sobre DB. Sin ninguno, in-memory.
	Engine dataengine.Engine
	DB     *sql.DB

	Log logger.Logger

	DefaultPageSize int
	MaxPageSize     int

	// RateLimit <= 0 desactiva el límite por IP.
	RateLimit   int
	RateWindow  time.Duration
	CORSOrigins []string
}

// NewRouter arma el servicio completo. Falla si la tabla de políticas o la
// de rutas no son consistentes con el catálogo.
func NewRouter(opts Options) (http.Handler, error) {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	if opts.AuthVerifier == nil && !opts.DevHeaders {
		return nil, ErrNoAuth
	}

	schema, err := catalog.Schema()
	if err != nil {
		return nil, err
	}
	policies, err := policy.Default()
	if err != nil {
		return nil, err
	}
	routes, err := dispatcher.NewRouteTable(dispatcher.BuildRoutes(schema.Resources(), policy.Cancellable()), policies)
	if err != nil {
		return nil, err
	}

	engine := opts.Engine
	switch {
	case engine != nil:
	case opts.DB != nil:
		engine = pg.NewEngine(opts.DB, schema)
	default:
		log.Warn("data_engine_in_memory", map[string]any{"reason": "no database configured"})
		engine = mem.NewEngine(schema)
	}

	authenticator := authn.New(authn.Options{
		Verifier:      opts.AuthVerifier,
		DevHeaders:    opts.DevHeaders,
		RejectInvalid: opts.RejectInvalidTokens,
		Log:           log,
	})
	if authenticator.DevMode() {
		log.Warn("auth_dev_mode", map[string]any{"headers": authn.HeaderDebugUserID + ", " + authn.HeaderDebugRole})
	}

	gate := authz.NewGate(policies, ownership.NewResolver(engine, log), log)

	d, err := dispatcher.New(dispatcher.Options{
		Routes:          routes,
		Schema:          schema,
		Engine:          engine,
		Authn:           authenticator,
		Gate:            gate,
		Log:             log,
		DefaultPageSize: opts.DefaultPageSize,
		MaxPageSize:     opts.MaxPageSize,
	})
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Recover(log))
	r.Use(corsHandler(opts.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	r.Route(APIPrefix, func(api chi.Router) {
		if opts.RateLimit > 0 {
			api.Use(httprate.Limit(opts.RateLimit, opts.RateWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(tooManyRequests),
			))
		}
		api.Mount("/", d)
	})

	log.Info("router_ready", map[string]any{"routes": len(routes.Routes()), "prefix": APIPrefix})
	return r, nil
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", authn.HeaderDebugUserID, authn.HeaderDebugRole},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}

func tooManyRequests(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(dispatcher.Envelope{
		Code:    http.StatusTooManyRequests,
		Message: http.StatusText(http.StatusTooManyRequests),
	})
}
