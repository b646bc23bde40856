// Package metrics holds the prometheus collectors of the relay and the transcoder.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "watchparty"

type Metrics struct {
	Connections   prometheus.Gauge
	Events        *prometheus.CounterVec
	Dropped       *prometheus.CounterVec
	TranscodeJobs *prometheus.CounterVec
	ActiveJobs    prometheus.Gauge
	SegmentPushes prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of live signal connections",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound signal events by type",
		}, []string{"type"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound frames not delivered, by reason",
		}, []string{"reason"}),
		TranscodeJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcode_jobs_total",
			Help:      "Transcode job transitions by outcome",
		}, []string{"outcome"}),
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcode_jobs_active",
			Help:      "Transcode jobs currently starting or running",
		}),
		SegmentPushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_list_broadcasts_total",
			Help:      "Segment list broadcasts sent to rooms",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.Connections, m.Events, m.Dropped, m.TranscodeJobs, m.ActiveJobs, m.SegmentPushes)
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) Event(t string) {
	if m != nil {
		m.Events.WithLabelValues(t).Inc()
	}
}

func (m *Metrics) Drop(reason string, n int) {
	if m != nil && n > 0 {
		m.Dropped.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) Job(outcome string) {
	if m != nil {
		m.TranscodeJobs.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) JobActive(delta float64) {
	if m != nil {
		m.ActiveJobs.Add(delta)
	}
}

func (m *Metrics) SegmentsPushed() {
	if m != nil {
		m.SegmentPushes.Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() gin.HandlerFunc {
	var g prometheus.Gatherer = prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		g = m.gatherer
	}
	handler := promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
