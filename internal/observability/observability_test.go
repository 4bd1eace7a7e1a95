package observability_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/canopy/internal/observability"
)

func TestMetricsObserveRun(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveRun(1.5, nil)
	m.ObserveRun(0.2, errors.New("boom"))
	m.TilesProcessed.Inc()
	m.TileDownloads.WithLabelValues("downloaded").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TilesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TileDownloads.WithLabelValues("downloaded")))
}

func TestMetricsObserveToolCall(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveToolCall("canopy_forest_loss", false)
	m.ObserveToolCall("canopy_forest_loss", true)
	m.ObserveToolCall("canopy_forest_loss", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("canopy_forest_loss", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("canopy_forest_loss", "error")))
}

func TestDiagnosticsServerEndpoints(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0", logger)
	require.NoError(t, err)
	defer srv.Close()

	srv.Metrics().TilesProcessed.Inc()

	base := "http://" + srv.Addr()

	for path, wantStatus := range map[string]int{
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/metrics": http.StatusOK,
	} {
		resp, getErr := http.Get(base + path)
		require.NoError(t, getErr)

		body, readErr := io.ReadAll(resp.Body)
		require.NoError(t, readErr)
		require.NoError(t, resp.Body.Close())

		assert.Equal(t, wantStatus, resp.StatusCode, path)

		if path == "/metrics" {
			assert.Contains(t, string(body), "canopy_tiles_processed_total 1")
		}
	}
}

func TestReadyHandlerFailingCheck(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	failing := func(context.Context) error { return errors.New("tiles unavailable") }

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0", logger, failing)
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr() + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNewLoggerFormats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := observability.NewLogger(&buf, "debug", "json")
	logger.Debug("tile loaded", slog.String("tile_id", "N60_E020"))

	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"tile_id":"N60_E020"`)

	buf.Reset()

	logger = observability.NewLogger(&buf, "warn", "text")
	logger.Info("suppressed")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}
