package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// LivenessHandler returns an HTTP handler for liveness probes.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReportResponse is the JSON response for the detailed health endpoint.
type ReportResponse struct {
	Level        string                       `json:"level"`
	Timestamp    string                       `json:"timestamp"`
	Dependencies map[string]DependencyDetails `json:"dependencies,omitempty"`
}

// DependencyDetails is the JSON view of one dependency's condition.
type DependencyDetails struct {
	Level       string  `json:"level"`
	Circuit     string  `json:"circuit"`
	Active      int     `json:"active"`
	Queued      int     `json:"queued"`
	Max         int     `json:"max"`
	Utilization float64 `json:"utilization"`
}

// ReportHandler returns an HTTP handler serving a point-in-time health
// report over all registered executors.
func ReportHandler(m *Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := m.Snapshot(r.Context())

		response := ReportResponse{
			Level:        report.Level.String(),
			Timestamp:    report.Timestamp.UTC().Format(time.RFC3339),
			Dependencies: make(map[string]DependencyDetails, len(report.Dependencies)),
		}
		for _, dep := range report.Dependencies {
			response.Dependencies[dep.Name] = DependencyDetails{
				Level:       dep.Level.String(),
				Circuit:     dep.Circuit.State.String(),
				Active:      dep.Pool.Active,
				Queued:      dep.Pool.Queued,
				Max:         dep.Pool.Max,
				Utilization: dep.Pool.Utilization,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if report.Level == LevelCritical {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}

// RegisterHandlers registers the health handlers on the given mux.
func RegisterHandlers(mux *http.ServeMux, m *Monitor) {
	mux.HandleFunc("/healthz", LivenessHandler())
	mux.HandleFunc("/health", ReportHandler(m))
}
