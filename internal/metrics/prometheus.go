// Package metrics registers and updates the Prometheus metric families for
// the receiver, exposed through the HTTP server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the ForkStream receiver.
// Methods tolerate a nil receiver so tests can run the pipeline without
// registering collectors twice against the default registry.
type Metrics struct {
	// UDP packet metrics
	PacketsReceived  prometheus.Counter
	PacketsProcessed prometheus.Counter
	ParseErrors      prometheus.Counter
	PacketsByType    *prometheus.CounterVec
	AudioBytesTotal  prometheus.Counter

	// Stream metrics
	ActiveStreams  prometheus.Gauge
	StreamsCreated prometheus.Counter

	// Flush metrics
	FlushesTotal      prometheus.Counter
	FlushErrorsTotal  prometheus.Counter
	FlushedBytesTotal prometheus.Counter
	FlushSize         prometheus.Histogram
	FlushDuration     prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		PacketsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forkstream_packets_received_total",
			Help: "Total number of UDP datagrams received",
		}),
		PacketsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forkstream_packets_processed_total",
			Help: "Total number of TLV packets successfully processed",
		}),
		ParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forkstream_parse_errors_total",
			Help: "Total number of dropped packets (framing and payload errors)",
		}),
		PacketsByType: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "forkstream_packets_total",
			Help: "Processed packets by type and direction",
		}, []string{"type", "direction"}),
		AudioBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forkstream_audio_bytes_total",
			Help: "Cumulative audio payload bytes accumulated",
		}),

		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "forkstream_active_streams",
			Help: "Current number of active stream ids",
		}),
		StreamsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forkstream_streams_created_total",
			Help: "Total number of stream buffers created",
		}),

		FlushesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forkstream_flushes_total",
			Help: "Total number of audio buffers flushed to storage",
		}),
		FlushErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forkstream_flush_errors_total",
			Help: "Total number of failed flush attempts",
		}),
		FlushedBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forkstream_flushed_bytes_total",
			Help: "Cumulative audio bytes written to storage",
		}),
		FlushSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "forkstream_flush_size_bytes",
			Help:    "Size of flushed audio buffers in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),
		FlushDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "forkstream_flush_audio_duration_seconds",
			Help:    "Estimated audio duration of flushed buffers",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "forkstream_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forkstream_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "forkstream_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordPacketReceived increments the datagrams received counter
func (m *Metrics) RecordPacketReceived() {
	if m == nil {
		return
	}
	m.PacketsReceived.Inc()
}

// RecordPacketProcessed counts one processed packet by type and direction
func (m *Metrics) RecordPacketProcessed(packetType, direction string, audioBytes int) {
	if m == nil {
		return
	}
	m.PacketsProcessed.Inc()
	m.PacketsByType.WithLabelValues(packetType, direction).Inc()
	if audioBytes > 0 {
		m.AudioBytesTotal.Add(float64(audioBytes))
	}
}

// RecordParseError increments the dropped packet counter
func (m *Metrics) RecordParseError() {
	if m == nil {
		return
	}
	m.ParseErrors.Inc()
}

// SetActiveStreams sets the current number of active stream ids
func (m *Metrics) SetActiveStreams(count int) {
	if m == nil {
		return
	}
	m.ActiveStreams.Set(float64(count))
}

// RecordStreamCreated increments the stream buffers created counter
func (m *Metrics) RecordStreamCreated() {
	if m == nil {
		return
	}
	m.StreamsCreated.Inc()
}

// RecordFlush records a successful flush of sizeBytes of audio
func (m *Metrics) RecordFlush(sizeBytes int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.FlushesTotal.Inc()
	m.FlushedBytesTotal.Add(float64(sizeBytes))
	m.FlushSize.Observe(float64(sizeBytes))
	m.FlushDuration.Observe(durationSeconds)
}

// RecordFlushError increments the failed flush counter
func (m *Metrics) RecordFlushError() {
	if m == nil {
		return
	}
	m.FlushErrorsTotal.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
