package prometheus

import (
	"strconv"
	"time"
)

// Duration buckets in seconds.
var (
	DefaultHTTPDurationBuckets       = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultExtractionDurationBuckets = []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 15, 30}
	DefaultAIDurationBuckets         = []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60}
)

// AppMetrics holds every metric the agent exports. It satisfies the metrics
// ports of the extraction service, the AI adapter, the result cache and the
// worker.
type AppMetrics struct {
	ExtractionsTotal   CounterVec
	ExtractionDuration HistogramVec
	RuleMatchesTotal   CounterVec

	AIRequestsTotal   CounterVec
	AIRequestDuration HistogramVec

	CacheOperationsTotal CounterVec

	MessagesTotal          CounterVec
	MessageProcessDuration HistogramVec

	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec
}

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	return &AppMetrics{
		ExtractionsTotal:   collector.RegisterCounter("extractions_total", "Processed extraction requests by resolving stage.", "method"),
		ExtractionDuration: collector.RegisterHistogram("extraction_duration_seconds", "Extraction latency by resolving stage.", DefaultExtractionDurationBuckets, "method"),
		RuleMatchesTotal:   collector.RegisterCounter("rule_matches_total", "Resolved deadlines by rule.", "rule"),

		AIRequestsTotal:   collector.RegisterCounter("ai_requests_total", "Language model calls by provider and outcome.", "provider", "status"),
		AIRequestDuration: collector.RegisterHistogram("ai_request_duration_seconds", "Language model call latency.", DefaultAIDurationBuckets, "provider"),

		CacheOperationsTotal: collector.RegisterCounter("cache_operations_total", "AI result cache operations by outcome.", "result"),

		MessagesTotal:          collector.RegisterCounter("messages_total", "Consumed messages by topic and outcome.", "topic", "status"),
		MessageProcessDuration: collector.RegisterHistogram("message_process_duration_seconds", "Message handling latency.", DefaultExtractionDurationBuckets, "topic"),

		HTTPRequestsTotal:   collector.RegisterCounter("http_requests_total", "HTTP requests.", "method", "route", "status_code"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds", "HTTP request latency.", DefaultHTTPDurationBuckets, "method", "route"),
		HTTPActiveRequests:  collector.RegisterGauge("http_active_requests", "In-flight HTTP requests.", "method"),

		GRPCRequestsTotal:   collector.RegisterCounter("grpc_requests_total", "Unary gRPC calls.", "service", "method", "code"),
		GRPCRequestDuration: collector.RegisterHistogram("grpc_request_duration_seconds", "Unary gRPC call latency.", DefaultHTTPDurationBuckets, "service", "method"),
	}
}

// ObserveExtraction records one orchestrated result. Failed results carry
// rule "none" and are not counted as rule matches.
func (m *AppMetrics) ObserveExtraction(method, rule string, d time.Duration) {
	m.ExtractionsTotal.WithLabelValues(method).Inc()
	m.ExtractionDuration.WithLabelValues(method).Observe(d.Seconds())
	if rule != "" && rule != "none" {
		m.RuleMatchesTotal.WithLabelValues(rule).Inc()
	}
}

func (m *AppMetrics) ObserveInference(provider, status string, d time.Duration) {
	m.AIRequestsTotal.WithLabelValues(provider, status).Inc()
	m.AIRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *AppMetrics) ObserveCacheOperation(result string) {
	m.CacheOperationsTotal.WithLabelValues(result).Inc()
}

func (m *AppMetrics) ObserveMessage(topic, status string, d time.Duration) {
	m.MessagesTotal.WithLabelValues(topic, status).Inc()
	m.MessageProcessDuration.WithLabelValues(topic).Observe(d.Seconds())
}

// RecordHTTPRequest is called by the HTTP middleware once a response is written.
func (m *AppMetrics) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns its release.
func (m *AppMetrics) TrackInFlight(method string) func() {
	g := m.HTTPActiveRequests.WithLabelValues(method)
	g.Inc()
	return g.Dec
}

func (m *AppMetrics) RecordGRPCRequest(service, method, code string, d time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(d.Seconds())
}
