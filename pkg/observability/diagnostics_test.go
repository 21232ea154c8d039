package observability_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Sumatoshi-tech/faultline/pkg/observability"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	observability.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDiagnosticsServer_ServesPipelineMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	require.NoError(t, err)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	pm, err := observability.NewPipelineMetrics(mp.Meter("faultline"))
	require.NoError(t, err)

	pm.ReleaseAnalysed(context.Background(), "4.1.0", 12, 2, time.Second)

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0", registry)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, srv.Close()) })

	code, body := get(t, "http://"+srv.Addr()+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	code, body = get(t, "http://"+srv.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "faultline_methods_emitted")
	assert.Contains(t, body, "faultline_release_duration")
}

func TestDiagnosticsServer_DefaultRegistry(t *testing.T) {
	t.Parallel()

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0", nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, srv.Close()) })

	code, body := get(t, "http://"+srv.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
}

func TestDiagnosticsServer_BadAddress(t *testing.T) {
	t.Parallel()

	_, err := observability.NewDiagnosticsServer("256.0.0.1:bad", nil)
	require.Error(t, err)
}

// Init installs global providers, so these tests do not run in parallel.
func TestInit_PrometheusAndLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.Prometheus = true
	cfg.LogJSON = true
	cfg.LogOutput = &buf

	providers, err := observability.Init(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	require.NotNil(t, providers.Registry)

	providers.Logger.Info("hello")
	assert.Contains(t, buf.String(), `"service":"faultline"`)

	pm, err := observability.NewPipelineMetrics(providers.Meter)
	require.NoError(t, err)

	pm.ReleaseSkipped(context.Background(), "0.9")

	families, err := providers.Registry.Gather()
	require.NoError(t, err)

	found := false

	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "faultline_releases_skipped") {
			found = true
		}
	}

	assert.True(t, found)
}

func TestInit_NoExporters(t *testing.T) {
	cfg := observability.DefaultConfig()
	cfg.LogOutput = io.Discard

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	assert.Nil(t, providers.Registry)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	require.NoError(t, providers.Shutdown(context.Background()))
}
