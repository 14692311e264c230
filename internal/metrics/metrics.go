// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the pipeline collectors. A nil *Metrics is safe to use so
// tests can skip instrumentation.
type Metrics struct {
	JobsScheduled   prometheus.Counter
	JobsCompleted   prometheus.Counter
	JobsFailed      prometheus.Counter
	JobsRetried     prometheus.Counter
	QueueRejected   prometheus.Counter
	FetchDuration   *prometheus.HistogramVec
	FetchFailures   *prometheus.CounterVec
	LLMCalls        prometheus.Counter
	AnalysisTime    prometheus.Histogram
	SubscriberGauge prometheus.Gauge
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zentel_analysis_jobs_scheduled_total",
			Help: "Analysis jobs accepted into the queue.",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zentel_analysis_jobs_completed_total",
			Help: "Analysis jobs that finished successfully.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zentel_analysis_jobs_failed_total",
			Help: "Analysis jobs that exhausted their retries.",
		}),
		JobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zentel_analysis_jobs_retried_total",
			Help: "Analysis attempts that failed and were retried.",
		}),
		QueueRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zentel_analysis_queue_rejected_total",
			Help: "Schedule requests rejected because the queue was full.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zentel_fetch_duration_seconds",
			Help:    "Content fetch latency by fetcher class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"class"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zentel_fetch_failures_total",
			Help: "Content fetches that returned no usable content.",
		}, []string{"class"}),
		LLMCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zentel_llm_calls_total",
			Help: "Completion calls issued to the model provider.",
		}),
		AnalysisTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zentel_analysis_duration_seconds",
			Help:    "End-to-end analysis duration per job.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		SubscriberGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zentel_progress_subscribers",
			Help: "Currently connected progress subscribers.",
		}),
	}
	reg.MustRegister(
		m.JobsScheduled, m.JobsCompleted, m.JobsFailed, m.JobsRetried,
		m.QueueRejected, m.FetchDuration, m.FetchFailures, m.LLMCalls,
		m.AnalysisTime, m.SubscriberGauge,
	)
	return m
}

// IncScheduled and friends are nil-safe wrappers used by the pipeline.

func (m *Metrics) IncScheduled() {
	if m != nil {
		m.JobsScheduled.Inc()
	}
}

func (m *Metrics) IncCompleted() {
	if m != nil {
		m.JobsCompleted.Inc()
	}
}

func (m *Metrics) IncFailed() {
	if m != nil {
		m.JobsFailed.Inc()
	}
}

func (m *Metrics) IncRetried() {
	if m != nil {
		m.JobsRetried.Inc()
	}
}

func (m *Metrics) IncQueueRejected() {
	if m != nil {
		m.QueueRejected.Inc()
	}
}

func (m *Metrics) IncLLMCall() {
	if m != nil {
		m.LLMCalls.Inc()
	}
}

func (m *Metrics) ObserveFetch(class string, seconds float64) {
	if m != nil {
		m.FetchDuration.WithLabelValues(class).Observe(seconds)
	}
}

func (m *Metrics) IncFetchFailure(class string) {
	if m != nil {
		m.FetchFailures.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) ObserveAnalysis(seconds float64) {
	if m != nil {
		m.AnalysisTime.Observe(seconds)
	}
}

func (m *Metrics) SetSubscribers(n int) {
	if m != nil {
		m.SubscriberGauge.Set(float64(n))
	}
}
