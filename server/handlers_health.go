package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
)

// isEmptyTable distinguishes "table exists but is empty" from a real failure.
func isEmptyTable(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"schema", func() error {
			var one int
			return h.db.QueryRowContext(r.Context(), "SELECT 1 FROM moments LIMIT 1").Scan(&one)
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil && !isEmptyTable(err) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports the detection session state.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status())
}
