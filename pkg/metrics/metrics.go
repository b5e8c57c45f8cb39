// Package metrics exposes Prometheus collectors for harvest and download runs.
// All methods are safe on a nil *Metrics so components can run without them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors on a dedicated registry
type Metrics struct {
	Registry *prometheus.Registry

	Iterations       prometheus.Counter
	DiscoveredURLs   prometheus.Gauge
	StagnationCount  prometheus.Gauge
	RenderErrors     *prometheus.CounterVec
	HarvestStops     *prometheus.CounterVec
	Downloads        *prometheus.CounterVec
	DownloadBytes    prometheus.Counter
	DownloadDuration prometheus.Histogram
}

// New constructs and registers all collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgharvest_iterations_total",
			Help: "Scroll iterations performed by the harvester.",
		}),
		DiscoveredURLs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imgharvest_discovered_urls",
			Help: "Unique candidate URLs collected so far.",
		}),
		StagnationCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imgharvest_stagnation_count",
			Help: "Consecutive iterations without new candidates.",
		}),
		RenderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgharvest_render_errors_total",
			Help: "Failed renderer operations by kind.",
		}, []string{"op"}),
		HarvestStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgharvest_harvest_stops_total",
			Help: "Finished harvests by terminal state.",
		}, []string{"state"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgharvest_downloads_total",
			Help: "Download attempts by outcome.",
		}, []string{"status"}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgharvest_download_bytes_total",
			Help: "Bytes written for stored images.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imgharvest_download_duration_seconds",
			Help:    "Latency of individual image fetches.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.Iterations, m.DiscoveredURLs, m.StagnationCount, m.RenderErrors,
		m.HarvestStops, m.Downloads, m.DownloadBytes, m.DownloadDuration,
	)
	return m
}

// ObserveIteration records one completed loop iteration
func (m *Metrics) ObserveIteration(total, stagnation int) {
	if m == nil {
		return
	}
	m.Iterations.Inc()
	m.DiscoveredURLs.Set(float64(total))
	m.StagnationCount.Set(float64(stagnation))
}

// IncRenderError counts a failed renderer call; op is "elements" or "scroll"
func (m *Metrics) IncRenderError(op string) {
	if m == nil {
		return
	}
	m.RenderErrors.WithLabelValues(op).Inc()
}

// ObserveHarvestStop records the terminal state of a harvest
func (m *Metrics) ObserveHarvestStop(state string) {
	if m == nil {
		return
	}
	m.HarvestStops.WithLabelValues(state).Inc()
}

// ObserveDownload records one download attempt
func (m *Metrics) ObserveDownload(status string, bytes int64, d time.Duration) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(status).Inc()
	m.DownloadBytes.Add(float64(bytes))
	m.DownloadDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
