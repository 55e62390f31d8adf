package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/bissquit/incident-relay/internal/config"
	"github.com/bissquit/incident-relay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAPISpecPath = "../../api/openapi/openapi.yaml"

func newTestConfig(dashboardURL string) config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.MetricsPort = "0"
	cfg.Log.Level = "error"
	cfg.Log.Format = "text"
	cfg.StatusDashboard.BaseURL = dashboardURL
	cfg.StatusDashboard.Endpoint = "abc123"
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config) (*App, *testutil.Client) {
	t.Helper()

	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	app := New(cfg)
	server := httptest.NewServer(app.Router())
	t.Cleanup(server.Close)

	return app, testutil.NewClientWithValidation(t, server.URL, openAPISpecPath)
}

func TestApp_HealthEndpoints(t *testing.T) {
	app, client := newTestApp(t, newTestConfig("http://127.0.0.1:1"))

	resp, err := client.GET("/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", testutil.ReadBody(t, resp))

	resp, err = client.GET("/readyz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	require.NoError(t, app.Shutdown(context.Background()))

	resp, err = client.GET("/readyz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestApp_Version(t *testing.T) {
	_, client := newTestApp(t, newTestConfig("http://127.0.0.1:1"))

	resp, err := client.GET("/version")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info map[string]string
	testutil.DecodeJSON(t, resp, &info)
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "commit")
	assert.Contains(t, info, "build_date")
}

func TestApp_RelaysIncident(t *testing.T) {
	var webhookCalls atomic.Int32
	received := make(chan map[string]any, 1)

	dashboard := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/webhooks/integration/abc123/signature":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"signature":"sig-42"}`))
		case "/webhooks/integration/abc123/":
			webhookCalls.Add(1)
			assert.Equal(t, "sig-42", r.Header.Get("x-statusdashboard-signature"))
			body, _ := io.ReadAll(r.Body)
			var payload map[string]any
			assert.NoError(t, json.Unmarshal(body, &payload))
			received <- payload
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer dashboard.Close()

	cfg := newTestConfig(dashboard.URL)
	cfg.StatusDashboard.Secret = "s3cret"
	_, client := newTestApp(t, cfg)

	resp, err := client.POST("/api/v1/servicenow/incidents", map[string]any{
		"operation": "insert",
		"current": map[string]any{
			"sys_id":         "inc-1",
			"fields":         map[string]string{"short_description": "Outage", "business_service": "svc-1"},
			"display_values": map[string]string{"state": "New", "impact": "3 - Low"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	_ = resp.Body.Close()

	assert.Equal(t, int32(1), webhookCalls.Load())
	payload := <-received
	assert.Equal(t, "investigating", payload["status"])
	assert.Equal(t, "Low", payload["severity"])
	assert.Equal(t, []any{"svc-1"}, payload["services"])
}

func TestApp_ServiceNowLookup(t *testing.T) {
	instance := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/now/table/task_cmdb_ci_service", r.URL.Path)
		assert.Equal(t, "task=inc-1", r.URL.Query().Get("sysparm_query"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[{"task":"inc-1","cmdb_ci_service":"svc-9"}]}`))
	}))
	defer instance.Close()

	cfg := newTestConfig("http://127.0.0.1:1")
	cfg.ServiceNow.InstanceURL = instance.URL
	_, client := newTestApp(t, cfg)

	resp, err := client.POST("/api/v1/servicenow/incidents/preview", map[string]any{
		"operation": "insert",
		"current": map[string]any{
			"sys_id":         "inc-1",
			"fields":         map[string]string{"short_description": "Outage"},
			"display_values": map[string]string{"state": "New"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Services []string `json:"services"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, []string{"svc-9"}, body.Data.Services)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(config.LogConfig{Level: tt.level, Format: "json"}, io.Discard)
			ctx := context.Background()
			assert.True(t, logger.Enabled(ctx, tt.expected))
			assert.False(t, logger.Enabled(ctx, tt.expected-1))
		})
	}
}
