// Package server exposes the optional admin and webhook HTTP endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/poller"
)

// PollerInterface is what the servers need from the polling loop.
type PollerInterface interface {
	FlagKey() string
	Healthy() bool
	Stats() poller.Stats
	Trigger() bool
}

// ResultLister returns the latest stored results.
type ResultLister interface {
	List(ctx context.Context) ([]domain.EvaluationResult, error)
}

const shutdownTimeout = 5 * time.Second

// httpServer runs one mux on one port.
type httpServer struct {
	srv    *http.Server
	logger *slog.Logger
}

func newHTTPServer(port int, handler http.Handler, logger *slog.Logger) httpServer {
	return httpServer{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// serve blocks until ctx is cancelled, then shuts the server down.
func (h httpServer) serve(ctx context.Context, name string) error {
	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("http server listening", "server", name, "addr", h.srv.Addr)
		errCh <- h.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server: %w", name, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := h.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s server shutdown: %w", name, err)
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
