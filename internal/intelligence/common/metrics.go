package common

import "time"

// Inference outcome labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
	StatusLimited = "rate_limited"
	StatusInvalid = "invalid_response"
)

// InferenceMetrics receives one observation per model call. The Prometheus
// collector in monitoring/prometheus implements it.
type InferenceMetrics interface {
	ObserveInference(provider, status string, d time.Duration)
}

type noopInferenceMetrics struct{}

func (noopInferenceMetrics) ObserveInference(string, string, time.Duration) {}

// NewNoopInferenceMetrics returns an InferenceMetrics that discards everything.
func NewNoopInferenceMetrics() InferenceMetrics { return noopInferenceMetrics{} }
