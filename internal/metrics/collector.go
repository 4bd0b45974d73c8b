// Package metrics exposes Prometheus metrics for the voice session and the
// control server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chadiek/jarvis-voice/internal/voice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector records session and HTTP metrics on its own registry.
// It satisfies voice.Metrics.
type Collector struct {
	registry *prometheus.Registry

	capturesStarted prometheus.Counter
	capturesEnded   *prometheus.CounterVec
	samplesIngested prometheus.Counter
	decodeSteps     *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	phase           *prometheus.GaugeVec
	synthDuration   *prometheus.HistogramVec
	playDuration    *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

var _ voice.Metrics = (*Collector)(nil)

var phases = []string{"idle", "listening", "processing", "speaking", "error"}

// NewCollector registers every metric under namespace. A nil logger is
// replaced by a no-op one.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.capturesStarted = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "captures_started_total",
		Help:      "Listen cycles started",
	})
	c.capturesEnded = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "captures_ended_total",
		Help:      "Listen cycles ended, by reason",
	}, []string{"reason"})
	c.samplesIngested = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_ingested_total",
		Help:      "Microphone samples fed to the recognizer",
	})
	c.decodeSteps = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_steps_total",
		Help:      "Recognizer decode steps",
	}, []string{"status"})
	c.transitions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Session phase transitions, by target phase",
	}, []string{"phase"})
	c.phase = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "phase",
		Help:      "1 for the current session phase",
	}, []string{"phase"})
	c.synthDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "synthesis_duration_seconds",
		Help:      "Time spent generating reply audio",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"status"})
	c.playDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "playback_duration_seconds",
		Help:      "Time spent playing reply audio",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"status"})

	c.httpRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	c.httpRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	for _, p := range phases {
		c.phase.WithLabelValues(p).Set(0)
	}
	c.phase.WithLabelValues("idle").Set(1)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) CaptureStarted() { c.capturesStarted.Inc() }

func (c *Collector) CaptureEnded(reason string) {
	c.capturesEnded.WithLabelValues(reason).Inc()
}

func (c *Collector) FrameIngested(samples int) { c.samplesIngested.Add(float64(samples)) }

func (c *Collector) DecodeStep(err error) {
	c.decodeSteps.WithLabelValues(status(err)).Inc()
}

func (c *Collector) Transition(phase string) {
	c.transitions.WithLabelValues(phase).Inc()
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		c.phase.WithLabelValues(p).Set(v)
	}
	c.logger.Debug("phase", zap.String("phase", phase))
}

func (c *Collector) Synthesis(d time.Duration, err error) {
	c.synthDuration.WithLabelValues(status(err)).Observe(d.Seconds())
}

func (c *Collector) Playback(d time.Duration, err error) {
	c.playDuration.WithLabelValues(status(err)).Observe(d.Seconds())
}

// RecordHTTPRequest records one control-server request.
func (c *Collector) RecordHTTPRequest(method, path string, code int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
