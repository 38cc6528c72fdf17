package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/pennant/internal/circuit"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/logger"
	"github.com/OrlandoBitencourt/pennant/internal/poller"
)

type mockPoller struct {
	flagKey      string
	healthy      bool
	stats        poller.Stats
	TriggerCalls int
}

func (m *mockPoller) FlagKey() string     { return m.flagKey }
func (m *mockPoller) Healthy() bool       { return m.healthy }
func (m *mockPoller) Stats() poller.Stats { return m.stats }
func (m *mockPoller) Trigger() bool {
	m.TriggerCalls++
	return m.TriggerCalls == 1
}

type mockResults struct {
	results []domain.EvaluationResult
	err     error
}

func (m *mockResults) List(ctx context.Context) ([]domain.EvaluationResult, error) {
	return m.results, m.err
}

func newMockPoller() *mockPoller {
	return &mockPoller{flagKey: "isMyFirstFeatureEnabled", healthy: true}
}

func TestAdminServer_Health(t *testing.T) {
	srv := NewAdminServer(newMockPoller(), &mockResults{}, 0, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestAdminServer_HealthDegraded(t *testing.T) {
	p := newMockPoller()
	p.healthy = false
	srv := NewAdminServer(p, &mockResults{}, 0, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}

func TestAdminServer_Stats(t *testing.T) {
	p := newMockPoller()
	p.stats = poller.Stats{
		FlagKey:    "isMyFirstFeatureEnabled",
		Providers:  []string{"ConfigCat", "LaunchDarkly"},
		Iterations: 7,
		Breakers:   []circuit.Stats{{Name: "ConfigCat", State: "closed"}},
	}
	srv := NewAdminServer(p, &mockResults{}, 0, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()
	srv.handleStats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp poller.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.Iterations)
	assert.Equal(t, []string{"ConfigCat", "LaunchDarkly"}, resp.Providers)
	require.Len(t, resp.Breakers, 1)
	assert.Equal(t, "closed", resp.Breakers[0].State)
}

func TestAdminServer_Results(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	results := &mockResults{results: []domain.EvaluationResult{
		{Provider: "ConfigCat", FlagKey: "isMyFirstFeatureEnabled", Value: true, Latency: 12 * time.Millisecond, Timestamp: ts},
		{Provider: "Flagsmith", FlagKey: "isMyFirstFeatureEnabled", Latency: time.Second, Timestamp: ts, Err: errors.New("timeout")},
	}}
	srv := NewAdminServer(newMockPoller(), results, 0, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/admin/results", nil)
	w := httptest.NewRecorder()
	srv.handleResults(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Results []resultView `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "ConfigCat", resp.Results[0].Provider)
	assert.True(t, resp.Results[0].Value)
	assert.Equal(t, int64(12), resp.Results[0].LatencyMs)
	assert.Empty(t, resp.Results[0].Error)
	assert.Equal(t, "timeout", resp.Results[1].Error)
}

func TestAdminServer_ResultsError(t *testing.T) {
	srv := NewAdminServer(newMockPoller(), &mockResults{err: errors.New("closed")}, 0, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/admin/results", nil)
	w := httptest.NewRecorder()
	srv.handleResults(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAdminServer_Poll(t *testing.T) {
	p := newMockPoller()
	srv := NewAdminServer(p, &mockResults{}, 0, logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/admin/poll", nil)
	w := httptest.NewRecorder()
	srv.handlePoll(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, p.TriggerCalls)
	assert.Contains(t, w.Body.String(), `"queued":true`)
}

func TestAdminServer_MethodNotAllowed(t *testing.T) {
	srv := NewAdminServer(newMockPoller(), &mockResults{}, 0, logger.Discard())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/admin/poll")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/admin/stats", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAdminServer_RunStopsOnCancel(t *testing.T) {
	srv := NewAdminServer(newMockPoller(), &mockResults{}, 0, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("admin server did not stop")
	}
}
