package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the data-prep pipeline.
type Metrics struct {
	EventsRead      prometheus.Counter
	EventsRetained  prometheus.Counter
	EventsDropped   prometheus.Counter
	EventsPublished prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Run metrics.
	RunDuration        prometheus.Histogram
	LastSuccess        prometheus.Gauge
	FetchRetries       prometheus.Counter
	SnapshotFallbacks  prometheus.Counter
	SinkErrors         *prometheus.CounterVec // labels: sink={s3,kafka}
	DatasetEventsTotal prometheus.Gauge

	// Remote catalog metrics.
	CatalogRequests    *prometheus.CounterVec // labels: outcome={success,error}
	CatalogAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_read_total",
			Help:      "Total records read from the event source before spatial filtering.",
		}),
		EventsRetained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_retained_total",
			Help:      "Total events retained inside the buffered boundary.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total records excluded by the spatial filter.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total events written to the sink topic.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete load-ingest-snapshot run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that produced a dataset.",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Total retried remote catalog fetches.",
		}),
		SnapshotFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_fallbacks_total",
			Help:      "Total runs served from the previous snapshot after a failed fetch.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Sink failures by sink.",
		}, []string{"sink"}),
		DatasetEventsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_events",
			Help:      "Number of events in the dataset currently served.",
		}),
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Remote catalog requests by outcome.",
		}, []string{"outcome"}),
		CatalogAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_api_duration_seconds",
			Help:      "Remote catalog request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EventsRead,
		m.EventsRetained,
		m.EventsDropped,
		m.EventsPublished,
		m.PipelineRunning,
		m.RunDuration,
		m.LastSuccess,
		m.FetchRetries,
		m.SnapshotFallbacks,
		m.SinkErrors,
		m.DatasetEventsTotal,
		m.CatalogRequests,
		m.CatalogAPIDuration,
	}
}
