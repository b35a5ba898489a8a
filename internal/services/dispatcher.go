package services

import (
	"context"
	"fleet-reposition-service/internal/dispatch"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/ports"
	"fleet-reposition-service/internal/traveltime"
	"fleet-reposition-service/internal/zones"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrRegionNotFound is returned when a search or rebuild names a region that
// does not exist.
var ErrRegionNotFound = fmt.Errorf("region not found: %w", ports.ErrNotFound)

// Dispatcher coordinates region rebuilds and search runs.
type Dispatcher struct {
	Regions    ports.RegionRepository
	Drivers    ports.DriverRepository
	Pickups    ports.PickupRepository
	Oracle     *traveltime.Oracle
	Engine     *zones.Engine
	Publisher  ports.PlanPublisher
	Config     dispatch.Config
	Location   *time.Location
	DensityDir string
	// MatrixParallel bounds concurrent oracle rows while building a zone matrix.
	MatrixParallel int

	mu      sync.Mutex
	indexes map[int64]*regionIndex
	builds  singleflight.Group
}

// regionIndex is the long-lived per-partition state shared by search runs.
// It is rebuilt when the region's build time changes.
type regionIndex struct {
	builtAt    time.Time
	summaries  []traveltime.ZoneSummary
	classifier *traveltime.Classifier
	matrix     *traveltime.Matrix
}

func (d *Dispatcher) location() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

func builtAt(r *domain.Region) time.Time {
	if r.BuiltAt == nil {
		return time.Time{}
	}
	return *r.BuiltAt
}

// index returns the cached index for the region's current partition,
// building it at most once per partition.
func (d *Dispatcher) index(ctx context.Context, r *domain.Region, departAt time.Time) (*regionIndex, error) {
	d.mu.Lock()
	if idx, ok := d.indexes[r.ID]; ok && idx.builtAt.Equal(builtAt(r)) {
		d.mu.Unlock()
		return idx, nil
	}
	d.mu.Unlock()

	key := fmt.Sprintf("%d@%d", r.ID, builtAt(r).UnixNano())
	// Concurrent runs share the build, so it must not stop when the run that
	// started it is cancelled.
	ch := d.builds.DoChan(key, func() (any, error) {
		summaries := traveltime.Summarize(r.Zones)
		matrix, err := traveltime.BuildMatrix(context.WithoutCancel(ctx), d.Oracle, summaries, departAt, d.MatrixParallel)
		if err != nil {
			return nil, err
		}

		idx := &regionIndex{
			builtAt:    builtAt(r),
			summaries:  summaries,
			classifier: traveltime.NewClassifier(r.Zones, summaries, d.Config.NearTolerance),
			matrix:     matrix,
		}

		d.mu.Lock()
		if d.indexes == nil {
			d.indexes = map[int64]*regionIndex{}
		}
		d.indexes[r.ID] = idx
		d.mu.Unlock()
		return idx, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("region %d index: %w", r.ID, res.Err)
		}
		return res.Val.(*regionIndex), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("region %d index: %w", r.ID, ctx.Err())
	}
}

func (d *Dispatcher) forget(regionID int64) {
	d.mu.Lock()
	delete(d.indexes, regionID)
	d.mu.Unlock()
}
