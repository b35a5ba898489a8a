package services

import (
	"context"
	"errors"
	"fleet-reposition-service/internal/density"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/platform/obs"
	"fleet-reposition-service/internal/ports"
	"fleet-reposition-service/internal/zones"
	"fmt"
	"log/slog"
	"sync"
)

type RebuildOptions struct {
	HorizonSeconds  int
	IntervalMinutes int
}

type RebuildResult struct {
	RegionID int64
	Zones    int
	Err      error
}

// RebuildRegion replaces a region's partition and density table with ones
// derived from its pickup history.
func (d *Dispatcher) RebuildRegion(ctx context.Context, regionID int64, opts RebuildOptions) (_ int, err error) {
	defer obs.Time(ctx, "services.RebuildRegion")(&err)

	if _, err := d.Regions.GetRegion(ctx, regionID); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return 0, fmt.Errorf("rebuild region %d: %w", regionID, ErrRegionNotFound)
		}
		return 0, fmt.Errorf("rebuild region %d: %w", regionID, err)
	}

	pickups, err := d.Pickups.ListPickups(ctx, regionID)
	if err != nil {
		return 0, fmt.Errorf("rebuild region %d: list pickups: %w", regionID, err)
	}

	// Samples are bucketed by local wall-clock time.
	loc := d.location()
	local := make([]domain.Pickup, len(pickups))
	for i, p := range pickups {
		p.At = p.At.In(loc)
		local[i] = p
	}

	zs, samples, err := d.Engine.PartitionRegion(ctx, local, zones.PartitionOptions{
		HorizonSeconds:  opts.HorizonSeconds,
		IntervalMinutes: opts.IntervalMinutes,
	})
	if err != nil {
		return 0, fmt.Errorf("rebuild region %d: %w", regionID, err)
	}

	table := density.Build(samples, d.Config.BucketMinutes)
	if err := d.Regions.SaveRegionZones(ctx, regionID, zs, samples, table); err != nil {
		return 0, fmt.Errorf("rebuild region %d: save: %w", regionID, err)
	}
	d.forget(regionID)

	if d.DensityDir != "" {
		if err := density.SaveFile(densityPath(d.DensityDir, regionID), table); err != nil {
			slog.WarnContext(ctx, "density file not written", "region_id", regionID, "err", err)
		}
	}

	slog.InfoContext(ctx, "region rebuilt", "region_id", regionID, "pickups", len(pickups), "zones", len(zs), "samples", len(samples))
	return len(zs), nil
}

// RebuildAllRegions rebuilds every region, at most two at a time. A failing
// region does not stop the others; its error is reported in its result.
func (d *Dispatcher) RebuildAllRegions(ctx context.Context, opts RebuildOptions) ([]RebuildResult, error) {
	regions, err := d.Regions.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild all regions: list regions: %w", err)
	}

	sem := make(chan struct{}, 2)
	results := make([]RebuildResult, len(regions))
	var wg sync.WaitGroup

	for i, r := range regions {
		wg.Add(1)
		go func(i int, id int64) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			n, err := d.RebuildRegion(ctx, id, opts)
			results[i] = RebuildResult{RegionID: id, Zones: n, Err: err}
		}(i, r.ID)
	}

	wg.Wait()
	return results, nil
}
