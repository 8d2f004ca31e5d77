package health

import "context"

// Checker checks one component's availability.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Pinger checks cache availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexInfo exposes the current index size.
type IndexInfo interface {
	Len() int
}
