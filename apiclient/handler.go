package apiclient

import (
	"encoding/json"
	"net/http"
)

// BreakerStatsHandler serves the per-endpoint circuit breaker
// snapshot used for operational dashboards, mirroring the teacher's
// health.LivenessHandler shape (plain JSON, no framework dependency).
func BreakerStatsHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(reg.Stats()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
