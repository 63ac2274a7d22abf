package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"pet-clinic-backend/internal/platform/logger"
)

// Recover convierte un panic en 500 con el envelope estándar y lo loguea.
func Recover(base logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.FromContext(r.Context(), base).Error("panic", map[string]any{
					"panic":  fmt.Sprint(rec),
					"path":   r.URL.Path,
					"method": r.Method,
					"stack":  string(debug.Stack()),
				})
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code":    http.StatusInternalServerError,
					"message": "internal error",
					"data":    nil,
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
