package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// AdminServer serves health, stats and the latest results.
type AdminServer struct {
	poller  PollerInterface
	results ResultLister
	http    httpServer
	logger  *slog.Logger
}

func NewAdminServer(p PollerInterface, results ResultLister, port int, logger *slog.Logger) *AdminServer {
	a := &AdminServer{
		poller:  p,
		results: results,
		logger:  logger,
	}
	a.http = newHTTPServer(port, a.Handler(), logger)
	return a
}

func (a *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/admin/stats", a.handleStats)
	mux.HandleFunc("/admin/results", a.handleResults)
	mux.HandleFunc("/admin/poll", a.handlePoll)
	return mux
}

// Run serves until ctx is cancelled.
func (a *AdminServer) Run(ctx context.Context) error {
	return a.http.serve(ctx, "admin")
}

func (a *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if !a.poller.Healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]string{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (a *AdminServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, a.poller.Stats())
}

// resultView is the JSON shape of one stored result.
type resultView struct {
	Provider  string    `json:"provider"`
	FlagKey   string    `json:"flag_key"`
	Value     bool      `json:"value"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

func newResultView(r domain.EvaluationResult) resultView {
	v := resultView{
		Provider:  r.Provider,
		FlagKey:   r.FlagKey,
		Value:     r.Value,
		LatencyMs: r.LatencyMillis(),
		Timestamp: r.Timestamp,
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

func (a *AdminServer) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	results, err := a.results.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]resultView, len(results))
	for i, res := range results {
		views[i] = newResultView(res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": views})
}

func (a *AdminServer) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	queued := a.poller.Trigger()
	a.logger.Info("poll requested", "source", "admin", "queued", queued)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "ok", "queued": queued})
}
