package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/city-builder/internal/config"
	"github.com/talgya/city-builder/internal/engine"
)

type quietRand struct{}

func (quietRand) Float64() float64 { return 0.99 }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	diff, err := config.DifficultyByName("normal")
	require.NoError(t, err)
	city, err := engine.NewCity(50000, diff, quietRand{}, nil)
	require.NoError(t, err)
	city.AdvanceTurn()

	var mu sync.Mutex
	srv := httptest.NewServer(NewServer(city, &mu, 0, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var summary engine.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 1, summary.Turn)
	assert.Equal(t, "normal", summary.Difficulty)
	assert.Positive(t, summary.Population)
}

func TestAlertsEndpointLimit(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/alerts?limit=3")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Alerts []engine.Alert `json:"alerts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.LessOrEqual(t, len(payload.Alerts), 3)
}

func TestFinanceEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/finance")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Contains(t, payload, "score")
	assert.Contains(t, payload, "rating")
	assert.Contains(t, payload, "advice")
}

func TestResearchEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/research")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Contains(t, payload, "available")
}

func TestMutatingMethodsRejected(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/status", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
