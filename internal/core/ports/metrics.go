package ports

// Metrics receives domain counters. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveRateLimit(bucket, outcome string)
	ObserveTokenOperation(operation, result string)
	ObserveWebhookEvent(eventType, result string)
	ObserveUpstreamError(upstream, kind string)
}
