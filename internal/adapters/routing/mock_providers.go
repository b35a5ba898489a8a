package routing

import (
	"context"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/ports"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// MockRoutingProvider answers from a straight-line speed model. Trips above
// the search ceiling are reported as ports.ErrNoRoute.
type MockRoutingProvider struct {
	// SecondsPerDegree converts planar degree distance to travel seconds.
	SecondsPerDegree float64
}

func NewMockRoutingProvider(secondsPerDegree float64) *MockRoutingProvider {
	return &MockRoutingProvider{SecondsPerDegree: secondsPerDegree}
}

func (p *MockRoutingProvider) TravelTime(ctx context.Context, origin, destination domain.Coordinates, departAt time.Time) (int, error) {
	d := math.Hypot(origin.Lon-destination.Lon, origin.Lat-destination.Lat)
	secs := int(math.Round(d * p.SecondsPerDegree))
	if float64(secs) > searchCeiling.Seconds() {
		return 0, ports.ErrNoRoute
	}
	return secs, nil
}

// MockIsochroneProvider returns a square of half-side Radius degrees around
// the origin, whatever the horizon.
type MockIsochroneProvider struct {
	Radius float64
}

func NewMockIsochroneProvider(radius float64) *MockIsochroneProvider {
	return &MockIsochroneProvider{Radius: radius}
}

func (p *MockIsochroneProvider) Isochrone(ctx context.Context, origin domain.Coordinates, horizonSeconds int) ([]orb.Polygon, error) {
	x, y, r := origin.Lon, origin.Lat, p.Radius
	ring := orb.Ring{{x - r, y - r}, {x + r, y - r}, {x + r, y + r}, {x - r, y + r}, {x - r, y - r}}
	return []orb.Polygon{{ring}}, nil
}
