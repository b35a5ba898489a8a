package ports

import (
	"context"
	"fleet-reposition-service/internal/domain"

	"github.com/paulmach/orb"
)

// Contract for reachability polygons around a point.
type IsochroneProvider interface {
	// Return the shapes reachable from origin within horizonSeconds.
	Isochrone(ctx context.Context, origin domain.Coordinates, horizonSeconds int) ([]orb.Polygon, error)
}
