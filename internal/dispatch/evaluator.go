package dispatch

import (
	"fleet-reposition-service/internal/density"
	"fleet-reposition-service/internal/domain"
	"math"
	"time"
)

const matchEpsilon = 1e-6

// Evaluator scores supply against predicted demand.
type Evaluator struct {
	Table              domain.DensityTable
	LookaheadBuckets   int
	MatchMultiplier    float64
	OversupplyMultiple float64
}

func NewEvaluator(cfg Config, table domain.DensityTable) Evaluator {
	if table.BucketMinutes <= 0 {
		table.BucketMinutes = cfg.BucketMinutes
	}
	return Evaluator{
		Table:              table,
		LookaheadBuckets:   cfg.LookaheadBuckets,
		MatchMultiplier:    cfg.MatchMultiplier,
		OversupplyMultiple: cfg.OversupplyMultiple,
	}
}

// Predicted sums density over the lookahead window starting at t.
func (e Evaluator) Predicted(t time.Time) []float64 {
	return density.Window(e.Table, t, e.LookaheadBuckets)
}

// ZoneScore scores n drivers against d expected pickups:
// an exact match earns MatchMultiplier per driver, oversupply earns d minus
// whatever exceeds OversupplyMultiple*d, undersupply loses the shortfall.
func (e Evaluator) ZoneScore(n int, d float64) float64 {
	count := float64(n)
	switch {
	case math.Abs(count-d) < matchEpsilon:
		return e.MatchMultiplier * count
	case count > d:
		score := d
		if limit := e.OversupplyMultiple * d; count > limit {
			score -= count - limit
		}
		return score
	default:
		return -(d - count)
	}
}

// Score sums ZoneScore over every zone for the supply vector at t.
func (e Evaluator) Score(supply []int, t time.Time) float64 {
	return e.scoreWith(supply, e.Predicted(t))
}

func (e Evaluator) scoreWith(supply []int, predicted []float64) float64 {
	total := 0.0
	for z, n := range supply {
		total += e.ZoneScore(n, domain.DensityAt(predicted, z))
	}
	return total
}

// UpperBound is the best score any supply vector could reach at t.
func (e Evaluator) UpperBound(numZones int, t time.Time) float64 {
	predicted := e.Predicted(t)
	perUnit := math.Max(1, e.MatchMultiplier)
	total := 0.0
	for z := 0; z < numZones; z++ {
		total += perUnit * domain.DensityAt(predicted, z)
	}
	return total
}

// EvalState counts drivers per zone and scores the result at t. Online
// drivers with a destination count there; the rest count where zoneOf puts
// them. Engaged and offline drivers never count.
func (e Evaluator) EvalState(numZones int, drivers []domain.Driver, zoneOf func(domain.Driver) int, t time.Time) float64 {
	return e.Score(Supply(numZones, drivers, zoneOf), t)
}

func Supply(numZones int, drivers []domain.Driver, zoneOf func(domain.Driver) int) []int {
	supply := make([]int, numZones)
	for _, d := range drivers {
		if d.Status != domain.DriverOnline {
			continue
		}
		z := domain.UnknownZone
		if d.DestinationZone != nil {
			z = *d.DestinationZone
		} else if zoneOf != nil {
			z = zoneOf(d)
		}
		if z >= 0 && z < numZones {
			supply[z]++
		}
	}
	return supply
}
