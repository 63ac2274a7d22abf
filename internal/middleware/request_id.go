package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"pet-clinic-backend/internal/platform/logger"
)

// RequestLogger deja en el contexto un logger con el request_id de chi.
// Debe ir después de chimw.RequestID.
func RequestLogger(base logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if id := chimw.GetReqID(r.Context()); id != "" {
				l = base.With(map[string]any{"request_id": id})
			}
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
		})
	}
}
