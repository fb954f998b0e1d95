package transport

import (
	"encoding/json"
	"net/http"
	"time"
)

// Stats is the JSON snapshot served at GET /stats: uptime plus the
// session counts the Transport Manager itself can answer for. Other
// blocks (cache, dedup, tracing, memory) are merged in by the caller
// before marshaling, since those subsystems live outside this package.
type Stats struct {
	UptimeSeconds float64        `json:"uptime_seconds"`
	Sessions      map[Kind]int   `json:"sessions_by_transport"`
	TotalSessions int            `json:"total_sessions"`
}

// StatsHandler serves GET /stats as JSON.
func StatsHandler(manager *Manager, startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manager.mu.Lock()
		byKind := make(map[Kind]int)
		for _, s := range manager.sessions {
			byKind[s.Transport]++
		}
		total := len(manager.sessions)
		manager.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Stats{
			UptimeSeconds: time.Since(startedAt).Seconds(),
			Sessions:      byKind,
			TotalSessions: total,
		})
	}
}
