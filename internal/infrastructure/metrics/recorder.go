package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avatarctic/clauseguard/internal/core/ports"
)

// Recorder exports domain counters to Prometheus.
type Recorder struct {
	rateLimit *prometheus.CounterVec
	tokens    *prometheus.CounterVec
	webhooks  *prometheus.CounterVec
	upstream  *prometheus.CounterVec
}

var _ ports.Metrics = (*Recorder)(nil)

// NewRecorder registers the counters with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		rateLimit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clauseguard_ratelimit_decisions_total",
			Help: "Rate limit decisions by bucket and outcome",
		}, []string{"bucket", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clauseguard_access_token_operations_total",
			Help: "Access token operations by operation and result",
		}, []string{"operation", "result"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clauseguard_webhook_events_total",
			Help: "Payment webhook events by type and result",
		}, []string{"type", "result"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clauseguard_upstream_errors_total",
			Help: "Errors returned by external services",
		}, []string{"upstream", "kind"}),
	}
	reg.MustRegister(r.rateLimit, r.tokens, r.webhooks, r.upstream)
	return r
}

func (r *Recorder) ObserveRateLimit(bucket, outcome string) {
	r.rateLimit.WithLabelValues(bucket, outcome).Inc()
}

func (r *Recorder) ObserveTokenOperation(operation, result string) {
	r.tokens.WithLabelValues(operation, result).Inc()
}

// ObserveWebhookEvent collapses unknown event types to keep label cardinality bounded.
func (r *Recorder) ObserveWebhookEvent(eventType, result string) {
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded", "unknown":
	default:
		eventType = "other"
	}
	r.webhooks.WithLabelValues(eventType, result).Inc()
}

func (r *Recorder) ObserveUpstreamError(upstream, kind string) {
	r.upstream.WithLabelValues(upstream, kind).Inc()
}
