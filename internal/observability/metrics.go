// Package observability provides Prometheus metrics and a diagnostics
// HTTP endpoint for long-running canopy processes.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the canopy instrument set.
type Metrics struct {
	// RunsTotal counts analysis runs by outcome ("ok" or "error").
	RunsTotal *prometheus.CounterVec
	// RunDuration observes wall-clock seconds per analysis run.
	RunDuration prometheus.Histogram
	// TilesProcessed counts tile pairs read and analyzed.
	TilesProcessed prometheus.Counter
	// TileDownloads counts tile layer acquisitions by status.
	TileDownloads *prometheus.CounterVec
	// ToolCalls counts MCP tool invocations by tool and outcome.
	ToolCalls *prometheus.CounterVec
}

// NewMetrics creates and registers the canopy instruments on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_runs_total",
			Help: "Analysis runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "canopy_run_duration_seconds",
			Help:    "Wall-clock duration of analysis runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		TilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canopy_tiles_processed_total",
			Help: "Hansen tile pairs analyzed.",
		}),
		TileDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_tile_downloads_total",
			Help: "Tile layer acquisitions by status.",
		}, []string{"status"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "canopy_mcp_tool_calls_total",
			Help: "MCP tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
	}

	for _, collector := range []prometheus.Collector{
		m.RunsTotal, m.RunDuration, m.TilesProcessed, m.TileDownloads, m.ToolCalls,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	return m, nil
}

// ObserveRun records one completed analysis run.
func (m *Metrics) ObserveRun(seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(seconds)
}

// ObserveToolCall records one MCP tool invocation.
func (m *Metrics) ObserveToolCall(tool string, isError bool) {
	outcome := "ok"
	if isError {
		outcome = "error"
	}

	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
}
