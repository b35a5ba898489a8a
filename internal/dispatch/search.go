// Package dispatch searches for the best sequence of driver reassignment
// batches over a bounded number of time steps.
//
// The search is single-threaded. Memo, visited set and counters belong to a
// run, so concurrent runs share nothing mutable.
package dispatch

import (
	"context"
	"errors"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/traveltime"
	"fmt"
	"math"
	"sort"
	"time"
)

const unreachableCost = traveltime.Unreachable

// TravelMatrix returns travel seconds between zone indexes.
type TravelMatrix interface {
	Get(from, to int) int
}

// Input is everything a run reads. Nothing in it is modified.
type Input struct {
	NumZones int
	Drivers  []domain.Driver
	// DriverZones holds each driver's classified current zone; missing
	// entries are domain.UnknownZone.
	DriverZones map[string]int
	// DriverCosts holds, for drivers with an unknown zone, the travel
	// seconds to every zone centroid.
	DriverCosts map[string][]int
	Matrix      TravelMatrix
	Density     domain.DensityTable
	Start       time.Time
}

type memoKey struct {
	sig    string
	depth  int
	bucket int64
}

type path struct {
	batch domain.ActionBatch
	next  *path
}

type result struct {
	score float64
	cost  int
	path  *path
	valid bool
}

func (r result) adjusted(normalizer float64) float64 {
	return r.score - float64(r.cost)/normalizer
}

var worst = result{score: math.Inf(-1)}

type run struct {
	ctx      context.Context
	cfg      Config
	eval     Evaluator
	matrix   TravelMatrix
	numZones int
	deadline time.Time

	drivers      []domain.Driver
	currentZone  []int
	driverCosts  map[string][]int
	baseIdle     []int
	baseAssigned map[int]int
	baseSupply   []int

	upperBound float64
	windows    map[int64][]float64
	memo       map[memoKey]result
	visited    map[string]struct{}

	explored  int
	cacheHits int
	aborted   bool
}

// Search runs the bounded branch-and-bound search and returns the best plan.
// When the deadline passes or ctx is done the best plan found so far is
// returned with Aborted set.
func Search(ctx context.Context, cfg Config, in Input) (domain.Plan, error) {
	if err := cfg.Validate(); err != nil {
		return domain.Plan{}, fmt.Errorf("dispatch search: %w", err)
	}
	if in.NumZones < 0 {
		return domain.Plan{}, errors.New("dispatch search: negative zone count")
	}
	if in.NumZones > 1 && in.Matrix == nil {
		return domain.Plan{}, errors.New("dispatch search: travel matrix is required")
	}

	r := newRun(ctx, cfg, in)
	root := node{at: in.Start}

	res := r.visit(root)
	plan := domain.Plan{
		StartAt:        in.Start,
		ExploredStates: r.explored,
		CacheHits:      r.cacheHits,
		Aborted:        r.aborted,
	}

	if !res.valid {
		// Nothing finished before the deadline: report doing nothing.
		plan.Score = r.eval.scoreWith(r.supply(root), r.predicted(in.Start))
		plan.AdjustedScore = plan.Score
		return plan, nil
	}

	plan.Score = res.score
	plan.CostSeconds = res.cost
	plan.AdjustedScore = res.adjusted(cfg.CostNormalizerSeconds)
	for p := res.path; p != nil; p = p.next {
		plan.Batches = append(plan.Batches, p.batch)
	}
	return plan, nil
}

func newRun(ctx context.Context, cfg Config, in Input) *run {
	drivers := make([]domain.Driver, len(in.Drivers))
	copy(drivers, in.Drivers)
	sort.SliceStable(drivers, func(i, j int) bool { return drivers[i].ID < drivers[j].ID })

	r := &run{
		ctx:          ctx,
		cfg:          cfg,
		eval:         NewEvaluator(cfg, in.Density),
		matrix:       in.Matrix,
		numZones:     in.NumZones,
		drivers:      drivers,
		currentZone:  make([]int, len(drivers)),
		driverCosts:  in.DriverCosts,
		baseAssigned: make(map[int]int),
		windows:      make(map[int64][]float64),
		memo:         make(map[memoKey]result),
		visited:      make(map[string]struct{}),
	}
	if cfg.Deadline > 0 {
		r.deadline = time.Now().Add(cfg.Deadline)
	}

	for i, d := range drivers {
		z, ok := in.DriverZones[d.ID]
		if !ok || z >= in.NumZones {
			z = domain.UnknownZone
		}
		r.currentZone[i] = z

		if d.DestinationZone != nil {
			r.baseAssigned[i] = *d.DestinationZone
		}
		if d.Idle() {
			r.baseIdle = append(r.baseIdle, i)
		}
	}

	r.baseSupply = Supply(in.NumZones, drivers, func(d domain.Driver) int {
		if z, ok := in.DriverZones[d.ID]; ok {
			return z
		}
		return domain.UnknownZone
	})

	terminal := in.Start.Add(time.Duration(cfg.MaxDepth) * cfg.step())
	r.upperBound = r.eval.UpperBound(in.NumZones, terminal)
	return r
}

func (r *run) predicted(t time.Time) []float64 {
	key := t.Unix()
	if w, ok := r.windows[key]; ok {
		return w
	}
	w := r.eval.Predicted(t)
	r.windows[key] = w
	return w
}

func (r *run) expired() bool {
	if r.aborted {
		return true
	}
	if r.ctx.Err() != nil || (!r.deadline.IsZero() && time.Now().After(r.deadline)) {
		r.aborted = true
	}
	return r.aborted
}

func (r *run) visit(n node) result {
	if r.expired() {
		return worst
	}

	sig := r.signature(n)
	mk := memoKey{sig: sig, depth: n.depth, bucket: n.at.Unix() / int64(r.cfg.BucketMinutes*60)}
	if res, ok := r.memo[mk]; ok {
		r.cacheHits++
		return res
	}
	if _, seen := r.visited[sig]; seen {
		return worst
	}
	r.visited[sig] = struct{}{}
	r.explored++

	if n.depth >= r.cfg.MaxDepth {
		res := result{score: r.eval.scoreWith(r.supply(n), r.predicted(n.at)), valid: true}
		r.memo[mk] = res
		return res
	}

	best := worst
	bestAdj := math.Inf(-1)
	alpha := math.Inf(-1)
	beta := r.upperBound
	norm := r.cfg.CostNormalizerSeconds

	for i, b := range r.generate(n) {
		if i >= r.cfg.SiblingCap || beta <= alpha {
			break
		}
		// The child can at best reach the upper bound with no further cost.
		if beta-float64(b.cost)/norm < alpha {
			continue
		}

		cr := r.visit(n.child(b, r.cfg.step()))
		if cr.valid {
			total := cr.cost + b.cost
			adj := cr.score - float64(total)/norm
			if !best.valid || adj > bestAdj || (adj == bestAdj && total < best.cost) {
				best = result{
					score: cr.score,
					cost:  total,
					path:  &path{batch: r.toDomain(b, n), next: cr.path},
					valid: true,
				}
				bestAdj = adj
				alpha = adj
			}
		}
		if r.expired() {
			return best
		}
	}

	r.memo[mk] = best
	return best
}
