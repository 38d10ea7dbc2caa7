// Package metrics defines the Prometheus metrics of the chatbot. All
// metrics are registered on a caller-supplied registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Chat pipeline
	IntentTotal           *prometheus.CounterVec
	AnswerDurationSeconds *prometheus.HistogramVec
	CollaboratorTotal     *prometheus.CounterVec
	CollaboratorDuration  *prometheus.HistogramVec
	GenerationTotal       *prometheus.CounterVec

	// Scraper metrics
	ScraperRequestsTotal   *prometheus.CounterVec
	ScraperDurationSeconds *prometheus.HistogramVec
	SingleflightDedupTotal *prometheus.CounterVec

	// Ingestion
	IngestTotal           *prometheus.CounterVec
	IngestRecords         *prometheus.GaugeVec
	IngestDurationSeconds prometheus.Histogram

	// Webhook metrics
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRequestsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPErrorsTotal    *prometheus.CounterVec
	RateLimiterDropped *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		IntentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbot_intent_total",
				Help: "Classified messages by intent and classifier policy",
			},
			[]string{"intent", "policy"},
		),

		AnswerDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatbot_answer_duration_seconds",
				Help:    "End-to-end answer latency by intent and outcome",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"intent", "outcome"}, // outcome: generated, context, help, clarify, apology, rejected
		),

		CollaboratorTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbot_collaborator_total",
				Help: "Storage and channel calls made while resolving context",
			},
			[]string{"collaborator", "status"}, // status: success, not_found, error, timeout
		),

		CollaboratorDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatbot_collaborator_duration_seconds",
				Help:    "Collaborator call latency",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"collaborator"},
		),

		GenerationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbot_generation_total",
				Help: "LLM generation attempts by provider and status",
			},
			[]string{"provider", "status"}, // status: success, error, fallback
		),

		ScraperRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbot_scraper_requests_total",
				Help: "Total number of scraper requests by module and status",
			},
			[]string{"module", "status"}, // status: success, error, timeout, not_found
		),

		ScraperDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatbot_scraper_duration_seconds",
				Help:    "Scraper request duration in seconds by module",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"module"}, // module: announcements, dining
		),

		SingleflightDedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbot_singleflight_dedup_total",
				Help: "Requests that joined an in-flight fetch instead of executing",
			},
			[]string{"module"},
		),

		IngestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbot_ingest_total",
				Help: "Ingestion runs by source and status",
			},
			[]string{"source", "status"},
		),

		IngestRecords: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chatbot_ingest_records",
				Help: "Records written by the last ingestion run per source",
			},
			[]string{"source"},
		),

		IngestDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatbot_ingest_duration_seconds",
				Help:    "Total duration of one ingestion pass",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatbot_webhook_duration_seconds",
				Help:    "Webhook processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"event_type"},
		),

		WebhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbot_webhook_requests_total",
				Help: "Total number of webhook requests by event type and status",
			},
			[]string{"event_type", "status"},
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbot_http_errors_total",
				Help: "Total HTTP errors by type and route",
			},
			[]string{"error_type", "module"}, // error_type: unauthorized, bad_request, rate_limit, invalid_signature
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatbot_rate_limit_dropped_total",
				Help: "Total number of requests dropped by the rate limiter",
			},
			[]string{"surface"}, // surface: api, webhook
		),
	}
}

// RecordIntent counts one classified message.
func (m *Metrics) RecordIntent(intent, policy string) {
	m.IntentTotal.WithLabelValues(intent, policy).Inc()
}

// RecordAnswer records the latency and outcome of one answer.
func (m *Metrics) RecordAnswer(intent, outcome string, duration float64) {
	m.AnswerDurationSeconds.WithLabelValues(intent, outcome).Observe(duration)
}

// RecordCollaborator records one storage or channel call.
func (m *Metrics) RecordCollaborator(collaborator, status string, duration float64) {
	m.CollaboratorTotal.WithLabelValues(collaborator, status).Inc()
	m.CollaboratorDuration.WithLabelValues(collaborator).Observe(duration)
}

// RecordGeneration records one LLM attempt.
func (m *Metrics) RecordGeneration(provider, status string) {
	m.GenerationTotal.WithLabelValues(provider, status).Inc()
}

// RecordScraperRequest records a scraper request with status
func (m *Metrics) RecordScraperRequest(module, status string, duration float64) {
	m.ScraperRequestsTotal.WithLabelValues(module, status).Inc()
	m.ScraperDurationSeconds.WithLabelValues(module).Observe(duration)
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(module string) {
	m.SingleflightDedupTotal.WithLabelValues(module).Inc()
}

// RecordIngest records the result of ingesting one source.
func (m *Metrics) RecordIngest(source, status string, records int) {
	m.IngestTotal.WithLabelValues(source, status).Inc()
	if status == "success" {
		m.IngestRecords.WithLabelValues(source).Set(float64(records))
	}
}

// RecordIngestDuration records total duration of an ingestion pass.
func (m *Metrics) RecordIngestDuration(duration float64) {
	m.IngestDurationSeconds.Observe(duration)
}

// RecordWebhook records a webhook request
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(surface string) {
	m.RateLimiterDropped.WithLabelValues(surface).Inc()
}
