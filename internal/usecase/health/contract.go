package health

import "context"

// Probe checks one dependency.
type Probe interface {
	HealthCheck(ctx context.Context) error
}

// ProbeFunc adapts a function, such as a store's Ping, to Probe.
type ProbeFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f ProbeFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
