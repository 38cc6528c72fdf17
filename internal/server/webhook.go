package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"slices"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 1 << 20

// EventFlagUpdated is the only event that triggers a poll.
const EventFlagUpdated = "flag.updated"

// WebhookServer lets a vendor push "flag changed" notifications so the next
// poll happens right away instead of after the interval.
type WebhookServer struct {
	poller PollerInterface
	secret string
	http   httpServer
	logger *slog.Logger
}

type WebhookPayload struct {
	Event     string   `json:"event"`
	FlagKeys  []string `json:"flag_keys"`
	Timestamp string   `json:"timestamp,omitempty"`
}

func NewWebhookServer(p PollerInterface, port int, secret string, logger *slog.Logger) *WebhookServer {
	s := &WebhookServer{
		poller: p,
		secret: secret,
		logger: logger,
	}
	s.http = newHTTPServer(port, s.Handler(), logger)
	return s
}

func (s *WebhookServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	return mux
}

// Run serves until ctx is cancelled.
func (s *WebhookServer) Run(ctx context.Context) error {
	return s.http.serve(ctx, "webhook")
}

func (s *WebhookServer) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "Failed to read body", http.StatusBadRequest)
		return
	}

	if s.secret != "" && !s.verifySignature(r, body) {
		s.logger.Warn("webhook rejected", "reason", "invalid signature", "remote", r.RemoteAddr)
		http.Error(rw, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	triggered := s.handleEvent(payload)
	writeJSON(rw, http.StatusOK, map[string]any{"status": "ok", "triggered": triggered})
}

func (s *WebhookServer) verifySignature(r *http.Request, body []byte) bool {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

// handleEvent reports whether a poll was requested.
func (s *WebhookServer) handleEvent(payload WebhookPayload) bool {
	if payload.Event != EventFlagUpdated {
		s.logger.Debug("webhook event ignored", "event", payload.Event)
		return false
	}
	if !slices.Contains(payload.FlagKeys, s.poller.FlagKey()) {
		return false
	}

	s.poller.Trigger()
	s.logger.Info("poll requested", "source", "webhook", "flags", payload.FlagKeys)
	return true
}
