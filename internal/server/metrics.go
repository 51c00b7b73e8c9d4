package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the palette service collectors. Each Server has its own
// registry so several servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	refreshes   *prometheus.CounterVec
	paletteSize prometheus.Histogram
	sessions    prometheus.Gauge
	rejected    *prometheus.CounterVec
	badEvents   prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliffbrush",
			Name:      "palette_refresh_total",
			Help:      "Palettes pushed to clients, by tile set.",
		}, []string{"tile_set"}),
		paletteSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cliffbrush",
			Name:      "palette_size",
			Help:      "Number of tiles in each pushed palette.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cliffbrush",
			Name:      "sessions_active",
			Help:      "Editing sessions currently connected.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliffbrush",
			Name:      "connections_rejected_total",
			Help:      "WebSocket connections refused before upgrade, by reason.",
		}, []string{"reason"}),
		badEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cliffbrush",
			Name:      "events_failed_total",
			Help:      "Client events that could not be decoded or applied.",
		}),
	}

	m.registry.MustRegister(m.refreshes, m.paletteSize, m.sessions, m.rejected, m.badEvents)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) paletteSent(tileSet string, size int) {
	m.refreshes.WithLabelValues(tileSet).Inc()
	m.paletteSize.Observe(float64(size))
}

func (m *Metrics) sessionOpened() { m.sessions.Inc() }

func (m *Metrics) sessionClosed() { m.sessions.Dec() }

func (m *Metrics) connectionRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) eventFailed() { m.badEvents.Inc() }
