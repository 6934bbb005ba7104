// Package health serves the liveness check.
package health

import (
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/people-api/internal/storage"
	"github.com/aanand-mishra/people-api/internal/utils/response"
)

// Check handles GET /healthz: 200 {"status":"ok"} when the store answers a
// ping, 503 with the error otherwise.
func Check(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusServiceUnavailable, response.GeneralError(err))
			return
		}
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": response.StatusOK})
	}
}
