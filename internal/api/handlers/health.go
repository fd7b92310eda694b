package handlers

import (
	"context"
	"net/http"
)

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler checks each named dependency on /readyz. Nil entries are
// skipped, so optional backends can be passed unconditionally.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	checks := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			checks[name] = p
		}
	}
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := http.StatusOK

	for name, p := range h.checks {
		if err := p.Ping(r.Context()); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}

	writeJSON(w, status, map[string]interface{}{"status": statusStr(status), "checks": checks})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
