package ports

import "context"

// HealthChecker is one line of the /health report: a reachable store, or a
// provider credential that is present and well formed.
type HealthChecker interface {
	Name() string
	// Check returns nil when the dependency can serve paid traffic.
	Check(ctx context.Context) error
}
