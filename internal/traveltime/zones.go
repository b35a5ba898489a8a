package traveltime

import (
	"context"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/platform/obs"
	"fleet-reposition-service/internal/zones"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/sync/errgroup"
)

// ZoneSummary holds the per-zone values reused across a run.
type ZoneSummary struct {
	Centroid domain.Coordinates
	Bound    orb.Bound
}

// BBox returns (minLng, minLat, maxLng, maxLat).
func (s ZoneSummary) BBox() [4]float64 {
	return [4]float64{s.Bound.Min.Lon(), s.Bound.Min.Lat(), s.Bound.Max.Lon(), s.Bound.Max.Lat()}
}

func ZoneCentroid(z domain.Zone) domain.Coordinates {
	c, _ := planar.CentroidArea(z.Bodies)
	return domain.CoordinatesFromPoint(c)
}

func ZoneBBox(z domain.Zone) [4]float64 {
	return ZoneSummary{Bound: z.Bodies.Bound()}.BBox()
}

func Summarize(zs []domain.Zone) []ZoneSummary {
	out := make([]ZoneSummary, len(zs))
	for i, z := range zs {
		out[i] = ZoneSummary{Centroid: ZoneCentroid(z), Bound: z.Bodies.Bound()}
	}
	return out
}

// Classifier maps positions to zone indexes. Results are cached by rounded
// coordinates and may be shared across runs on the same partition.
type Classifier struct {
	zones     []domain.Zone
	summaries []ZoneSummary
	tolerance float64
	cache     sync.Map
}

func NewClassifier(zs []domain.Zone, summaries []ZoneSummary, tolerance float64) *Classifier {
	if summaries == nil {
		summaries = Summarize(zs)
	}
	return &Classifier{zones: zs, summaries: summaries, tolerance: tolerance}
}

// Classify returns the first zone near pos, or domain.UnknownZone.
func (c *Classifier) Classify(pos domain.Coordinates) int {
	key := formatCoord(pos.Rounded(KeyPrecision))
	if v, ok := c.cache.Load(key); ok {
		return v.(int)
	}

	p := pos.Point()
	zone := domain.UnknownZone
	for i, z := range c.zones {
		if !c.summaries[i].Bound.Pad(c.tolerance).Contains(p) {
			continue
		}
		if zones.PointNearZone(p, z, c.tolerance) {
			zone = i
			break
		}
	}

	v, _ := c.cache.LoadOrStore(key, zone)
	return v.(int)
}

func (c *Classifier) Summaries() []ZoneSummary { return c.summaries }

// Matrix holds travel seconds between every ordered pair of zone centroids.
type Matrix struct {
	n    int
	secs []int
}

func NewMatrix(n int) *Matrix {
	return &Matrix{n: n, secs: make([]int, n*n)}
}

func (m *Matrix) Size() int { return m.n }

// Get returns the travel time from zone `from` to zone `to`; out-of-range
// indexes are unreachable.
func (m *Matrix) Get(from, to int) int {
	if from < 0 || to < 0 || from >= m.n || to >= m.n {
		return Unreachable
	}
	return m.secs[from*m.n+to]
}

func (m *Matrix) Set(from, to, seconds int) { m.secs[from*m.n+to] = seconds }

// BuildMatrix fills a Matrix with one oracle row per zone, running at most
// `parallel` rows at once.
func BuildMatrix(ctx context.Context, o *Oracle, summaries []ZoneSummary, departAt time.Time, parallel int) (_ *Matrix, err error) {
	defer obs.Time(ctx, "traveltime.BuildMatrix")(&err)

	n := len(summaries)
	m := NewMatrix(n)
	if n < 2 {
		return m, nil
	}
	if parallel < 1 {
		parallel = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			dests := make([]domain.Coordinates, 0, n-1)
			idx := make([]int, 0, n-1)
			for j := 0; j < n; j++ {
				if j != i {
					dests = append(dests, summaries[j].Centroid)
					idx = append(idx, j)
				}
			}

			row := o.TravelTimes(gctx, summaries[i].Centroid, dests, departAt)
			if err := gctx.Err(); err != nil {
				return err
			}
			for k, j := range idx {
				m.Set(i, j, row[k])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build zone matrix: %w", err)
	}
	return m, nil
}
