// Package health reports whether the translator can serve a live session.
//
// Two probes are exposed:
//
//   - GET /healthz — liveness; a process that can answer HTTP is alive.
//   - GET /readyz  — readiness; passes only when every registered [Check]
//     passes (audio devices present, utterance store answering).
//
// The readiness response names each check so an operator can tell a missing
// headset apart from a dead database at a glance.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// probeBudget bounds a single readiness check. A check that cannot answer in
// this window is reported as failing rather than stalling the probe.
const probeBudget = 3 * time.Second

// Check probes one dependency of a live session. Probe returns nil when the
// dependency is usable and an error describing what is wrong otherwise.
type Check struct {
	// Name keys the check in the readiness response ("audio_devices",
	// "history").
	Name string

	// Probe must respect context cancellation.
	Probe func(ctx context.Context) error
}

// checkResult is the per-check entry in the readiness response.
type checkResult struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed"`
}

// report is the response body of both probes.
type report struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves the liveness and readiness probes. The check list is fixed
// at construction, so the handler is safe for concurrent use.
type Handler struct {
	checks []Check
}

// New creates a [Handler] that runs the given checks, in order, on every
// readiness request.
func New(checks ...Check) *Handler {
	h := &Handler{checks: make([]Check, len(checks))}
	copy(h.checks, checks)
	return h
}

// Register adds both probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleLive)
	mux.HandleFunc("GET /readyz", h.handleReady)
}

func (h *Handler) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, report{Status: "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	rep := report{Status: "ok", Checks: make(map[string]checkResult, len(h.checks))}
	status := http.StatusOK

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), probeBudget)
		start := time.Now()
		err := c.Probe(ctx)
		elapsed := time.Since(start)
		cancel()

		res := checkResult{Status: "ok", Elapsed: elapsed.Round(time.Millisecond).String()}
		if err != nil {
			res.Status = "fail"
			res.Error = err.Error()
			rep.Status = "fail"
			status = http.StatusServiceUnavailable
			slog.Warn("readiness check failed", "check", c.Name, "err", err)
		}
		rep.Checks[c.Name] = res
	}

	writeReport(w, status, rep)
}

func writeReport(w http.ResponseWriter, status int, rep report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		slog.Error("encode health report", "err", err)
	}
}
