// Package metrics exposes Prometheus collectors for the enrichment service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enrichRunsTotal           *prometheus.CounterVec
	enrichPagesTotal          *prometheus.CounterVec
	enrichRunDurationSeconds  prometheus.Histogram
	renderRetriesTotal        prometheus.Counter
	protocolDowngradesTotal   prometheus.Counter
	auditDedupHitsTotal       prometheus.Counter
	externalCallsTotal        *prometheus.CounterVec
	activeWorkers             prometheus.Gauge
	businessGateSkippedTotal  prometheus.Counter
	pageAIGateReusedTotal     prometheus.Counter
	httpRequestDuration       *prometheus.HistogramVec
	httpRequestsTotal         *prometheus.CounterVec
	registerCollectorsOnceVar sync.Once
)

// Init registers the Prometheus collectors. It is safe to call multiple times.
func Init() {
	registerCollectorsOnceVar.Do(func() {
		enrichRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrich_runs_total",
				Help: "Total business enrichment runs, labeled by outcome (completed, skipped, failed).",
			},
			[]string{"outcome"},
		)
		enrichPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrich_pages_total",
				Help: "Total pages processed, labeled by status (persisted, failed).",
			},
			[]string{"status"},
		)
		enrichRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enrich_run_duration_seconds",
				Help:    "Histogram of business run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)
		renderRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "enrich_render_retries_total",
				Help: "Total render attempts that failed and were retried.",
			},
		)
		protocolDowngradesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "enrich_render_protocol_downgrades_total",
				Help: "Total HTTPS-to-HTTP fallbacks taken after connection resets.",
			},
		)
		auditDedupHitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "enrich_audit_dedup_hits_total",
				Help: "Performance audit requests served from the per-run cache.",
			},
		)
		externalCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrich_external_calls_total",
				Help: "Outbound vendor calls, labeled by service and result.",
			},
			[]string{"service", "result"},
		)
		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "enrich_active_workers",
				Help: "Number of dispatcher workers currently running a business.",
			},
		)
		businessGateSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "enrich_business_gate_skips_total",
				Help: "Runs skipped because the business was enriched recently.",
			},
		)
		pageAIGateReusedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "enrich_page_ai_reuses_total",
				Help: "Pages whose stored summary and classification were reused.",
			},
		)
		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveRun records one finished business run.
func ObserveRun(outcome string, duration time.Duration) {
	Init()
	enrichRunsTotal.WithLabelValues(outcome).Inc()
	enrichRunDurationSeconds.Observe(duration.Seconds())
}

// ObservePage records a page outcome.
func ObservePage(status string) {
	Init()
	enrichPagesTotal.WithLabelValues(status).Inc()
}

// ObserveRenderRetry counts a failed render attempt.
func ObserveRenderRetry() {
	Init()
	renderRetriesTotal.Inc()
}

// ObserveProtocolDowngrade counts an HTTPS-to-HTTP fallback.
func ObserveProtocolDowngrade() {
	Init()
	protocolDowngradesTotal.Inc()
}

// ObserveAuditDedupHit counts a performance audit served from the run cache.
func ObserveAuditDedupHit() {
	Init()
	auditDedupHitsTotal.Inc()
}

// ObserveExternalCall records one outbound vendor call.
func ObserveExternalCall(service, result string) {
	Init()
	externalCallsTotal.WithLabelValues(service, result).Inc()
}

// ObserveBusinessGateSkip counts a run skipped by the 24h business gate.
func ObserveBusinessGateSkip() {
	Init()
	businessGateSkippedTotal.Inc()
}

// ObservePageAIReuse counts a page that reused stored AI fields.
func ObservePageAIReuse() {
	Init()
	pageAIGateReusedTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveHTTPRequest records one served API request.
func ObserveHTTPRequest(method, route, code string, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, code).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
