package ports

import (
	"context"
	"fleet-reposition-service/internal/domain"
	"time"
)

// Contract for point-to-point travel time lookups.
type RoutingProvider interface {
	// Return travel time in seconds, or ErrNoRoute when the destination is
	// not reachable within the provider's search ceiling.
	TravelTime(ctx context.Context, origin, destination domain.Coordinates, departAt time.Time) (int, error)
}

// Optional extension of RoutingProvider that supports batched lookups.
type MatrixRoutingProvider interface {
	RoutingProvider
	// Return travel times from one origin to many destinations, in input order.
	// Unreachable destinations are reported as -1.
	TravelTimes(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates, departAt time.Time) ([]int, error)
}
