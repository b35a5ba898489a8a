package ports

import (
	"context"
	"fleet-reposition-service/internal/domain"
)

// Port: regions with their zone partition and density table.
type RegionRepository interface {
	// Return the region, or ErrNotFound.
	GetRegion(ctx context.Context, id int64) (*domain.Region, error)
	ListRegions(ctx context.Context) ([]*domain.Region, error)
	// Replace the region's partition, raw samples and density table.
	SaveRegionZones(ctx context.Context, id int64, zones []domain.Zone, samples []domain.DensitySample, table domain.DensityTable) error
}

// Port: read-only driver roster snapshot.
type DriverRepository interface {
	ListDrivers(ctx context.Context, regionID int64) ([]domain.Driver, error)
}

// Port: historical pickups in arrival order.
type PickupRepository interface {
	ListPickups(ctx context.Context, regionID int64) ([]domain.Pickup, error)
}
