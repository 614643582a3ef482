package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for finished jobs.
const (
	OutcomeReady    = "ready"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeDropped  = "dropped"
)

// RenderMetrics collects render queue metrics on a dedicated registry.
type RenderMetrics struct {
	registry *prometheus.Registry

	jobs       *prometheus.CounterVec
	duration   prometheus.Histogram
	queueDepth prometheus.Gauge
	active     prometheus.Gauge
	segments   *prometheus.CounterVec
}

func New() *RenderMetrics {
	m := &RenderMetrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reelsmith",
			Name:      "render_jobs_total",
			Help:      "Render jobs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reelsmith",
			Name:      "render_duration_seconds",
			Help:      "Wall time of completed renders.",
			Buckets:   []float64{5, 10, 20, 30, 60, 120, 300, 600},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reelsmith",
			Name:      "render_queue_depth",
			Help:      "Pending render jobs.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reelsmith",
			Name:      "render_active",
			Help:      "1 while a render is running.",
		}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reelsmith",
			Name:      "render_segments_total",
			Help:      "Composed segments by visual kind.",
		}, []string{"visual"}),
	}

	m.registry.MustRegister(
		m.jobs, m.duration, m.queueDepth, m.active, m.segments,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// JobFinished records a job outcome. elapsed is only observed for renders
// that ran.
func (m *RenderMetrics) JobFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		m.duration.Observe(elapsed.Seconds())
	}
}

func (m *RenderMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *RenderMetrics) SetActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.active.Set(1)
	} else {
		m.active.Set(0)
	}
}

func (m *RenderMetrics) SegmentComposed(visual string) {
	if m == nil {
		return
	}
	m.segments.WithLabelValues(visual).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *RenderMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
