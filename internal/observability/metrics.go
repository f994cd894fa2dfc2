package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "regis"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "frames_total",
			Help:      "Frames moved by the daemon, by direction.",
		},
		[]string{"listener", "direction"},
	)
	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes moved by the daemon, by direction.",
		},
		[]string{"listener", "direction"},
	)
	failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "failures_total",
			Help:      "Transfers that failed, by operation and error class.",
		},
		[]string{"listener", "op", "class"},
	)
	activeConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "active_connections",
			Help:      "Connections currently served.",
		},
		[]string{"listener"},
	)
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "requests_total",
			Help:      "Requests answered by the daemon, by kind.",
		},
		[]string{"listener", "kind"},
	)
)

const (
	DirectionRX = "rx"
	DirectionTX = "tx"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, frames, frameBytes, failures, activeConns, requests)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordFrame(listener, direction string, payloadLen int) {
	RegisterMetrics()
	frames.WithLabelValues(listener, direction).Inc()
	frameBytes.WithLabelValues(listener, direction).Add(float64(payloadLen))
}

func RecordFailure(listener, op, class string) {
	RegisterMetrics()
	failures.WithLabelValues(listener, op, class).Inc()
}

func RecordRequest(listener, kind string) {
	RegisterMetrics()
	requests.WithLabelValues(listener, kind).Inc()
}

// TrackConnection bumps the active gauge and returns the matching release.
func TrackConnection(listener string) func() {
	RegisterMetrics()
	g := activeConns.WithLabelValues(listener)
	g.Inc()
	return g.Dec
}
