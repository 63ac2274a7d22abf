// Package metrics concentra los collectors Prometheus del servicio.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petclinic_http_requests_total",
			Help: "Total de requests HTTP por método, ruta y status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petclinic_http_request_duration_seconds",
			Help:    "Duración de requests HTTP",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petclinic_authz_decisions_total",
			Help: "Decisiones del gate de autorización",
		},
		[]string{"role", "resource", "action", "reason"},
	)

	AuthzDecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "petclinic_authz_decision_duration_seconds",
			Help: "Duración de una decisión, incluyendo el lookup de ownership",
			// de microsegundos (solo rol) a decenas de ms (lookup a la base)
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"resource", "ownership"},
	)

	OwnershipLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petclinic_ownership_lookups_total",
			Help: "Lookups de ownership contra el data engine",
		},
		[]string{"resource", "result"},
	)

	TokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petclinic_token_verifications_total",
			Help: "Verificaciones de bearer token por resultado",
		},
		[]string{"result"},
	)
)

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordAuthzDecision(role, resource, action, reason string, ownership bool, d time.Duration) {
	AuthzDecisionsTotal.WithLabelValues(role, resource, action, reason).Inc()
	AuthzDecisionDuration.WithLabelValues(resource, strconv.FormatBool(ownership)).Observe(d.Seconds())
}

// RecordOwnershipLookup: result es found, not_found o error.
func RecordOwnershipLookup(resource, result string) {
	OwnershipLookupsTotal.WithLabelValues(resource, result).Inc()
}

// RecordTokenVerification: result es ok, absent o el kind del AuthError.
func RecordTokenVerification(result string) {
	TokenVerificationsTotal.WithLabelValues(result).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
