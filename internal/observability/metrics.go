package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climate_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for one ETL run.
type Metrics struct {
	ObservationsRead     prometheus.Counter
	ObservationsRejected prometheus.Counter // failed quality control or had an unparsable date
	ObservationsRetained prometheus.Counter // passed quality control and the filter
	GroupsSummarized     prometheus.Counter
	OutliersDetected     prometheus.Counter
	PipelineRunning      prometheus.Gauge
	LastSuccess          prometheus.Gauge

	// Output metrics.
	OutputsWritten *prometheus.CounterVec // labels: format={csv,json,parquet,sqlite,kafka}
	DegradedFields *prometheus.CounterVec // labels: format

	StageDuration *prometheus.HistogramVec // labels: stage={extract,clean,filter,convert,aggregate,load}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ObservationsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_read_total",
			Help:      "Total observations decoded from the input.",
		}),
		ObservationsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_rejected_total",
			Help:      "Total observations dropped by quality control.",
		}),
		ObservationsRetained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_retained_total",
			Help:      "Total observations that reached the aggregator.",
		}),
		GroupsSummarized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_summarized_total",
			Help:      "Total non-empty groups summarized.",
		}),
		OutliersDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outliers_detected_total",
			Help:      "Total values flagged as outliers across all groups.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote every requested output.",
		}),
		OutputsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_written_total",
			Help:      "Outputs committed, by format.",
		}, []string{"format"}),
		DegradedFields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_fields_total",
			Help:      "Statistics written as the missing sentinel, by format.",
		}, []string{"format"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
	}
}

// Collectors returns every metric, for registration or pushing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ObservationsRead,
		m.ObservationsRejected,
		m.ObservationsRetained,
		m.GroupsSummarized,
		m.OutliersDetected,
		m.PipelineRunning,
		m.LastSuccess,
		m.OutputsWritten,
		m.DegradedFields,
		m.StageDuration,
	}
}
