package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pet-clinic-backend/internal/platform/logger"
	"pet-clinic-backend/internal/platform/metrics"
)

// AccessLog registra una línea por request y alimenta las métricas HTTP.
// Los headers no se loguean: pueden llevar el bearer token.
func AccessLog(base logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isNoisyPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			dur := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.RecordHTTPRequest(r.Method, routeOf(r), status, dur)

			fields := map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": status,
				"ms":     dur.Milliseconds(),
				"bytes":  ww.BytesWritten(),
			}
			l := logger.FromContext(r.Context(), base)
			switch {
			case status >= 500:
				l.Error("req", fields)
			case status >= 400:
				l.Info("req", fields)
			default:
				l.Debug("req", fields)
			}
		})
	}
}

// routeOf usa el patrón de chi para no explotar la cardinalidad con ids.
func routeOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func isNoisyPath(p string) bool {
	return p == "/health" || p == "/metrics" || strings.HasPrefix(p, "/swagger/")
}
