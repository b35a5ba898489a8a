// Package zones derives a region's disjoint reachability zones from
// isochrone shapes and classifies points against them.
package zones

import (
	"context"
	"errors"
	"fleet-reposition-service/internal/density"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/platform/metrics"
	"fleet-reposition-service/internal/platform/obs"
	"fleet-reposition-service/internal/ports"
	"fmt"
	"log/slog"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	// DefaultTolerance is the point_near_zone slack in degrees.
	DefaultTolerance = 0.0005
	// DefaultHorizonSeconds is the isochrone budget used for new zones.
	DefaultHorizonSeconds = 360
	// DefaultIntervalMinutes is the width of one raw density record.
	DefaultIntervalMinutes = 30
)

type Engine struct {
	isochrones ports.IsochroneProvider
	tolerance  float64
}

func NewEngine(isochrones ports.IsochroneProvider, tolerance float64) *Engine {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	return &Engine{isochrones: isochrones, tolerance: tolerance}
}

// BuildZone queries the isochrone provider around origin and keeps the
// outer shell of every returned shape. Holes are dropped so that later
// containment tests stay conservative.
func (e *Engine) BuildZone(ctx context.Context, origin domain.Coordinates, horizonSeconds int) (_ domain.Zone, err error) {
	defer obs.Time(ctx, "zones.BuildZone")(&err)

	if e.isochrones == nil {
		return domain.Zone{}, errors.New("build zone: isochrone provider is nil")
	}
	if horizonSeconds <= 0 {
		return domain.Zone{}, fmt.Errorf("build zone: horizon must be positive, got %d", horizonSeconds)
	}

	shapes, err := e.isochrones.Isochrone(ctx, origin, horizonSeconds)
	if err != nil {
		return domain.Zone{}, fmt.Errorf("build zone at %v,%v: %w", origin.Lat, origin.Lon, err)
	}

	zone := domain.Zone{ID: -1}
	for _, shape := range shapes {
		if len(shape) == 0 || len(shape[0]) < 4 {
			continue
		}
		zone.Bodies = append(zone.Bodies, orb.Polygon{shape[0]})
	}
	return zone, nil
}

// PointInZone reports whether p lies strictly inside any body of z.
// Points inside a hole or on a boundary are outside.
func PointInZone(p orb.Point, z domain.Zone) bool {
	for _, body := range z.Bodies {
		if len(body) == 0 {
			continue
		}
		if !planar.PolygonContains(body, p) {
			continue
		}
		if boundaryDistance(body, p) > 0 {
			return true
		}
	}
	return false
}

// PointNearZone reports whether p is inside z or closer than tolerance to
// its boundary.
func PointNearZone(p orb.Point, z domain.Zone, tolerance float64) bool {
	if PointInZone(p, z) {
		return true
	}
	for _, body := range z.Bodies {
		if len(body) > 0 && boundaryDistance(body, p) < tolerance {
			return true
		}
	}
	return false
}

func boundaryDistance(body orb.Polygon, p orb.Point) float64 {
	return planar.DistanceFrom(body, p)
}

// SubtractOtherZones removes every body of every other zone from z. The
// residual pieces become z's bodies. ok is false when nothing is left.
func SubtractOtherZones(ctx context.Context, z domain.Zone, others []domain.Zone) (_ domain.Zone, ok bool) {
	if z.Empty() {
		return domain.Zone{ID: z.ID}, false
	}

	bound := z.Bodies.Bound()
	subject := toClip(z.Bodies)
	for _, other := range others {
		for _, body := range other.Bodies {
			if len(body) == 0 || !bound.Intersects(body.Bound()) {
				continue
			}
			subject = subject.Construct(polyclip.DIFFERENCE, toClip(orb.MultiPolygon{body}))
			if len(subject) == 0 {
				return domain.Zone{ID: z.ID}, false
			}
		}
	}

	bodies, remnants := fromClip(subject)
	reportRemnants(ctx, z.ID, remnants)

	out := domain.Zone{ID: z.ID, Bodies: bodies}
	if out.Empty() {
		return domain.Zone{ID: z.ID}, false
	}
	return out, true
}

// reportRemnants warns about clipper output too degenerate to keep as a body.
func reportRemnants(ctx context.Context, zone, remnants int) {
	if remnants == 0 {
		return
	}
	slog.WarnContext(ctx, "zone subtraction discarded non-polygonal remnants", "zone", zone, "remnants", remnants)
}

// Classify returns the index of the first zone near p, or -1. Bounding boxes
// padded by the tolerance reject far zones before the exact test.
func Classify(p orb.Point, zs []domain.Zone, tolerance float64) int {
	for i, z := range zs {
		if !z.Bodies.Bound().Pad(tolerance).Contains(p) {
			continue
		}
		if PointNearZone(p, z, tolerance) {
			return i
		}
	}
	return -1
}

type PartitionOptions struct {
	HorizonSeconds  int
	IntervalMinutes int
}

// PartitionRegion walks pickups in arrival order. A pickup near an existing
// zone is counted there; otherwise a new zone is built around it, existing
// zones are cut out of it, and what remains is appended. Zone boundaries
// therefore depend on event order.
//
// Isochrone failures skip the pickup. A residual that comes out empty is
// dropped and the pickup is not counted.
func (e *Engine) PartitionRegion(
	ctx context.Context,
	pickups []domain.Pickup,
	opts PartitionOptions,
) (_ []domain.Zone, _ []domain.DensitySample, err error) {
	defer obs.Time(ctx, "zones.PartitionRegion")(&err)

	if opts.HorizonSeconds <= 0 {
		opts.HorizonSeconds = DefaultHorizonSeconds
	}
	if opts.IntervalMinutes <= 0 {
		opts.IntervalMinutes = DefaultIntervalMinutes
	}

	acc := density.NewAccumulator(opts.IntervalMinutes)
	var zs []domain.Zone

	for _, pu := range pickups {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("partition region: %w", err)
		}

		pt := pu.Position.Point()
		idx := Classify(pt, zs, e.tolerance)

		if idx < 0 {
			candidate, err := e.BuildZone(ctx, pu.Position, opts.HorizonSeconds)
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, fmt.Errorf("partition region: %w", ctx.Err())
				}
				slog.WarnContext(ctx, "pickup skipped, isochrone unavailable", "pickup_id", pu.ID, "err", err)
				continue
			}

			residual, ok := SubtractOtherZones(ctx, candidate, zs)
			if !ok {
				metrics.ZonesDropped.Inc()
				slog.WarnContext(ctx, "candidate zone dropped, empty after subtraction", "pickup_id", pu.ID)
				continue
			}

			residual.ID = len(zs)
			zs = append(zs, residual)
			idx = residual.ID
		}

		acc.Add(pu.At, idx)
	}

	return zs, acc.Samples(), nil
}

// CheckDisjoint returns an error naming the first pair of zones whose shared
// area exceeds tolerance.
func CheckDisjoint(zs []domain.Zone, tolerance float64) error {
	for i := range zs {
		for j := i + 1; j < len(zs); j++ {
			if a := IntersectionArea(zs[i], zs[j]); a > tolerance {
				return fmt.Errorf("zones %d and %d overlap by %g", i, j, a)
			}
		}
	}
	return nil
}
