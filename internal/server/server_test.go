package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusninja/internal/registry"
	"statusninja/internal/storage"
	logx "statusninja/pkg/logx"
)

type countingSweeper struct {
	runs atomic.Int64
}

func (c *countingSweeper) RunSweep(ctx context.Context) { c.runs.Add(1) }

func newTestServer(t *testing.T, token string) (*Server, *countingSweeper, *registry.Service) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: ":memory:"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := registry.New(st, logx.Nop())
	sweeper := &countingSweeper{}
	srv := New(Config{APIToken: token}, reg, sweeper, logx.Nop())
	srv.sweepCtx = context.Background()
	return srv, sweeper, reg
}

func TestHealthIsPublic(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsIsPublic(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuth(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{name: "valid", token: "secret", header: "Bearer secret", want: http.StatusAccepted},
		{name: "missing header", token: "secret", header: "", want: http.StatusUnauthorized},
		{name: "wrong token", token: "secret", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "no bearer prefix", token: "secret", header: "secret", want: http.StatusUnauthorized},
		{name: "empty configured token", token: "", header: "Bearer ", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _, _ := newTestServer(t, tt.token)

			req := httptest.NewRequest(http.MethodPost, "/run-health-check", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRunHealthCheckTriggersSweep(t *testing.T) {
	t.Parallel()
	srv, sweeper, _ := newTestServer(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/run-health-check", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "Health check triggered")

	// The sweep is detached; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for sweeper.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, int64(1), sweeper.runs.Load())
}

func TestExportConfig(t *testing.T) {
	t.Parallel()
	srv, _, reg := newTestServer(t, "secret")

	_, err := reg.AddEndpoint(context.Background(), "payments", "https://pay.test/health", 42)
	require.NoError(t, err)
	require.NoError(t, reg.Subscribe(context.Background(), 42, "payments"))

	req := httptest.NewRequest(http.MethodGet, "/export-config", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		APIs []struct {
			Name    string   `json:"name"`
			URL     string   `json:"url"`
			ChatIDs []string `json:"chat_ids"`
		} `json:"apis"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.APIs, 1)
	assert.Equal(t, "payments", body.APIs[0].Name)
	assert.Equal(t, "https://pay.test/health", body.APIs[0].URL)
	assert.Equal(t, []string{"42"}, body.APIs[0].ChatIDs)
}
