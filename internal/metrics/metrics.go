// Package metrics provides Prometheus metrics for the QA pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing, so components can run unwired in tests.
type Metrics struct {
	IngestRunsTotal   *prometheus.CounterVec
	IngestDuration    prometheus.Histogram
	DocumentsIndexed  prometheus.Gauge
	PassagesIndexed   prometheus.Gauge
	QuestionsTotal    *prometheus.CounterVec
	QuestionDuration  prometheus.Histogram
	PipelineState     prometheus.Gauge
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates and registers all metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IngestRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sopqa_ingest_runs_total",
				Help: "Total number of ingestion runs",
			},
			[]string{"status"},
		),
		IngestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sopqa_ingest_duration_seconds",
				Help:    "Duration of ingestion runs in seconds",
				Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
		),
		DocumentsIndexed: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sopqa_documents_indexed",
				Help: "Number of documents in the live index",
			},
		),
		PassagesIndexed: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sopqa_passages_indexed",
				Help: "Number of passages in the live index",
			},
		),
		QuestionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sopqa_questions_total",
				Help: "Total number of questions asked",
			},
			[]string{"status"},
		),
		QuestionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sopqa_question_duration_seconds",
				Help:    "End-to-end question answering latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		PipelineState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sopqa_pipeline_state",
				Help: "Pipeline state (0=EMPTY, 1=BUILDING, 2=READY, 3=FAILED)",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sopqa_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sopqa_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
	}
}

// ObserveIngest records the outcome of one ingestion run.
func (m *Metrics) ObserveIngest(status string, duration time.Duration, docs, passages int) {
	if m == nil {
		return
	}
	m.IngestRunsTotal.WithLabelValues(status).Inc()
	m.IngestDuration.Observe(duration.Seconds())
	if status == "success" {
		m.DocumentsIndexed.Set(float64(docs))
		m.PassagesIndexed.Set(float64(passages))
	}
}

// ObserveQuestion records the outcome of one question.
func (m *Metrics) ObserveQuestion(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.QuestionsTotal.WithLabelValues(status).Inc()
	m.QuestionDuration.Observe(duration.Seconds())
}

// SetState records the pipeline state gauge.
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.PipelineState.Set(float64(state))
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(path, status).Inc()
	m.HTTPDuration.WithLabelValues(path).Observe(duration.Seconds())
}
