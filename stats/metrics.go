package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of one process run. The index
// storage reports through it as its MetricsHook.
type Metrics struct {
	registry      *prometheus.Registry
	events        *prometheus.CounterVec
	indexedBytes  prometheus.Counter
	readLatency   prometheus.Histogram
	commitLatency *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mbox_index",
			Name:      "append_events_total",
			Help:      "Append engine events by stage and type.",
		}, []string{"stage", "type"}),
		indexedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mbox_index",
			Name:      "indexed_bytes_total",
			Help:      "Mailbox bytes covered by committed records.",
		}),
		readLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mbox_index",
			Name:      "storage_read_seconds",
			Help:      "Latency of index point reads.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		commitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mbox_index",
			Name:      "storage_commit_seconds",
			Help:      "Latency of index batch commits.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"sync"}),
	}
	m.registry.MustRegister(m.events, m.indexedBytes, m.readLatency, m.commitLatency)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current values in the text exposition format,
// suitable for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) ObserveRead(elapsed time.Duration, _ int) {
	m.readLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, _ int, synced bool) {
	label := "false"
	if synced {
		label = "true"
	}
	m.commitLatency.WithLabelValues(label).Observe(elapsed.Seconds())
}

func (m *Metrics) observeEvent(evt Event) {
	m.events.WithLabelValues(string(evt.Stage), string(evt.Type)).Inc()
	if evt.Type == EventTypeIndexed && evt.Bytes > 0 {
		m.indexedBytes.Add(float64(evt.Bytes))
	}
}
