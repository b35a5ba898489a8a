package services

import (
	"context"
	"errors"
	"fleet-reposition-service/internal/density"
	"fleet-reposition-service/internal/dispatch"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/platform/metrics"
	"fleet-reposition-service/internal/platform/obs"
	"fleet-reposition-service/internal/ports"
	"fleet-reposition-service/internal/traveltime"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type SearchRequest struct {
	RegionID int64
	// Depth overrides the configured max depth when > 0.
	Depth int
	// At is the search start time; zero means now.
	At time.Time
	// Deadline overrides the configured run deadline when > 0.
	Deadline time.Duration
}

// RunSearch snapshots the region's roster and runs one dispatch search over
// its current partition. The plan is published when a publisher is set;
// publication failures are logged and do not fail the run.
func (d *Dispatcher) RunSearch(ctx context.Context, req SearchRequest) (_ domain.Plan, err error) {
	defer obs.Time(ctx, "services.RunSearch")(&err)

	region, err := d.Regions.GetRegion(ctx, req.RegionID)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.Plan{}, fmt.Errorf("run search: region %d: %w", req.RegionID, ErrRegionNotFound)
	}
	if err != nil {
		return domain.Plan{}, fmt.Errorf("run search: get region: %w", err)
	}

	drivers, err := d.Drivers.ListDrivers(ctx, req.RegionID)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("run search: list drivers: %w", err)
	}

	start := req.At
	if start.IsZero() {
		start = time.Now()
	}
	start = start.In(d.location())

	cfg := d.Config
	if req.Depth > 0 {
		cfg.MaxDepth = req.Depth
	}
	if req.Deadline > 0 {
		cfg.Deadline = req.Deadline
	}

	idx, err := d.index(ctx, region, start)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("run search: %w", err)
	}

	in := dispatch.Input{
		NumZones:    len(region.Zones),
		Drivers:     drivers,
		DriverZones: make(map[string]int, len(drivers)),
		DriverCosts: map[string][]int{},
		Matrix:      idx.matrix,
		Density:     d.densityFor(region, cfg.BucketMinutes),
		Start:       start,
	}

	online := lo.Filter(drivers, func(dr domain.Driver, _ int) bool {
		return dr.Status == domain.DriverOnline
	})
	for _, dr := range online {
		in.DriverZones[dr.ID] = idx.classifier.Classify(dr.Position)
	}

	// Idle drivers outside every zone are costed against zone centroids up
	// front so the search itself performs no I/O.
	centroids := lo.Map(idx.summaries, func(s traveltime.ZoneSummary, _ int) domain.Coordinates { return s.Centroid })
	for _, dr := range online {
		if !dr.Idle() || in.DriverZones[dr.ID] != domain.UnknownZone || len(centroids) == 0 {
			continue
		}
		in.DriverCosts[dr.ID] = d.Oracle.TravelTimes(ctx, dr.Position, centroids, start)
	}

	began := time.Now()
	plan, err := dispatch.Search(ctx, cfg, in)
	metrics.SearchDuration.Observe(time.Since(began).Seconds())
	if err != nil {
		metrics.SearchRuns.WithLabelValues("error").Inc()
		return domain.Plan{}, fmt.Errorf("run search: %w", err)
	}

	plan.RunID = uuid.NewString()
	plan.RegionID = region.ID

	outcome := "ok"
	if plan.Aborted {
		outcome = "aborted"
	}
	metrics.SearchRuns.WithLabelValues(outcome).Inc()
	metrics.SearchExplored.Observe(float64(plan.ExploredStates))
	metrics.SearchMemoHits.Add(float64(plan.CacheHits))

	slog.InfoContext(ctx, "search finished",
		"run_id", plan.RunID,
		"region_id", plan.RegionID,
		"zones", in.NumZones,
		"drivers", len(drivers),
		"explored", plan.ExploredStates,
		"memo_hits", plan.CacheHits,
		"aborted", plan.Aborted,
		"adjusted_score", plan.AdjustedScore,
	)

	if d.Publisher != nil {
		if err := d.Publisher.PublishPlan(ctx, plan); err != nil {
			slog.WarnContext(ctx, "plan not published", "run_id", plan.RunID, "err", err)
		}
	}

	return plan, nil
}

// densityFor returns the region's stored table. Regions persisted without a
// table fall back to the density file (when configured) or to a table built
// from the stored samples.
func (d *Dispatcher) densityFor(r *domain.Region, bucketMinutes int) domain.DensityTable {
	if len(r.Density.Buckets) > 0 {
		return r.Density
	}
	if d.DensityDir == "" {
		return density.Build(r.Samples, bucketMinutes)
	}

	table, err := density.LoadOrBuild(densityPath(d.DensityDir, r.ID), r.Samples, bucketMinutes)
	if err != nil {
		slog.Warn("density file unreadable, rebuilding from samples", "region_id", r.ID, "err", err)
		return density.Build(r.Samples, bucketMinutes)
	}
	return table
}

func densityPath(dir string, regionID int64) string {
	return filepath.Join(dir, fmt.Sprintf("density-%d.json", regionID))
}
