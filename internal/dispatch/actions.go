package dispatch

import (
	"fleet-reposition-service/internal/domain"
	"math"
	"sort"

	"github.com/samber/lo"
)

// Travel shorter than this many hours is treated as this long when ranking
// candidates, so zero-cost moves do not divide by zero.
const minCostHours = 1.0 / 60

type action struct {
	driver int
	from   int
	to     int
	cost   int
}

type batch struct {
	actions []action
	cost    int
}

func newBatch(actions ...action) batch {
	return batch{actions: actions, cost: lo.SumBy(actions, func(a action) int { return a.cost })}
}

func (b batch) costPerAction() float64 {
	if len(b.actions) == 0 {
		return 0
	}
	return float64(b.cost) / float64(len(b.actions))
}

func (b batch) hasDriver(idx int) bool {
	return lo.ContainsBy(b.actions, func(a action) bool { return a.driver == idx })
}

// idle returns roster indexes of drivers that are idle in the node: idle in
// the base roster and not moved along the chain.
func (r *run) idle(n node) []int {
	moved := n.moved()
	return lo.Filter(r.baseIdle, func(idx int, _ int) bool {
		_, ok := moved[idx]
		return !ok
	})
}

// cost is the travel time for a driver to reach zone `to`.
func (r *run) cost(driver, to int) int {
	if from := r.currentZone[driver]; from >= 0 {
		return r.matrix.Get(from, to)
	}
	if row, ok := r.driverCosts[r.drivers[driver].ID]; ok && to < len(row) {
		return row[to]
	}
	return unreachableCost
}

// candidates returns up to TopK actions for one driver, best
// deficit-per-hour first, or fallback zones when no zone is short of drivers.
func (r *run) candidates(driver int, deficit []float64) []action {
	from := r.currentZone[driver]

	type scored struct {
		action
		ratio float64
	}
	var pos []scored
	for z := 0; z < r.numZones; z++ {
		if z == from || deficit[z] <= 0 {
			continue
		}
		c := r.cost(driver, z)
		hours := math.Max(float64(c)/3600, minCostHours)
		pos = append(pos, scored{
			action: action{driver: driver, from: from, to: z, cost: c},
			ratio:  deficit[z] / hours,
		})
	}

	if len(pos) > 0 {
		sort.SliceStable(pos, func(i, j int) bool { return pos[i].ratio > pos[j].ratio })
		if len(pos) > r.cfg.TopK {
			pos = pos[:r.cfg.TopK]
		}
		return lo.Map(pos, func(s scored, _ int) action { return s.action })
	}

	return lo.Map(r.fallbackZones(from), func(z int, _ int) action {
		return action{driver: driver, from: from, to: z, cost: r.cost(driver, z)}
	})
}

// fallbackZones lists the zones nearest by index to from (from+1, from-1,
// from+2, ...), never from itself. Unknown origins start at zone 0.
func (r *run) fallbackZones(from int) []int {
	var out []int
	if from < 0 {
		for z := 0; z < r.numZones && len(out) < r.cfg.FallbackZones; z++ {
			out = append(out, z)
		}
		return out
	}
	for d := 1; d < r.numZones && len(out) < r.cfg.FallbackZones; d++ {
		if z := from + d; z < r.numZones {
			out = append(out, z)
		}
		if len(out) >= r.cfg.FallbackZones {
			break
		}
		if z := from - d; z >= 0 {
			out = append(out, z)
		}
	}
	return out
}

// generate builds the node's batches: the empty batch, one batch per
// candidate action, then multi-driver combinations of the cheapest actions.
// The result is ordered by cost per action and capped at MaxBatches.
func (r *run) generate(n node) []batch {
	batches := []batch{newBatch()}

	idle := r.idle(n)
	if len(idle) == 0 || r.numZones < 2 {
		return batches
	}

	predicted := r.predicted(n.at)
	supply := r.supply(n)
	deficit := make([]float64, r.numZones)
	for z := range deficit {
		deficit[z] = domain.DensityAt(predicted, z) - float64(supply[z])
	}

	var singles []action
	for _, idx := range idle {
		singles = append(singles, r.candidates(idx, deficit)...)
	}
	for _, a := range singles {
		batches = append(batches, newBatch(a))
	}

	batches = append(batches, r.combinations(singles)...)

	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].costPerAction() < batches[j].costPerAction()
	})
	if len(batches) > r.cfg.MaxBatches {
		batches = batches[:r.cfg.MaxBatches]
	}
	return batches
}

// combinations enumerates batches of 2..min(MaxSimultaneousActions, 3)
// actions drawn from the CombinationPool cheapest singles. Combinations that
// move one driver twice are rejected.
func (r *run) combinations(singles []action) []batch {
	maxSize := min(r.cfg.MaxSimultaneousActions, 3)
	if maxSize < 2 || r.cfg.MaxCombinations == 0 || len(singles) < 2 {
		return nil
	}

	pool := make([]action, len(singles))
	copy(pool, singles)
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].cost < pool[j].cost })
	if len(pool) > r.cfg.CombinationPool {
		pool = pool[:r.cfg.CombinationPool]
	}

	var out []batch
	var walk func(start int, picked []action, size int) bool
	walk = func(start int, picked []action, size int) bool {
		if len(picked) == size {
			out = append(out, newBatch(append([]action(nil), picked...)...))
			return len(out) < r.cfg.MaxCombinations
		}
		for i := start; i < len(pool); i++ {
			if newBatch(picked...).hasDriver(pool[i].driver) {
				continue
			}
			if !walk(i+1, append(picked, pool[i]), size) {
				return false
			}
		}
		return true
	}

	for size := 2; size <= maxSize; size++ {
		if !walk(0, nil, size) {
			break
		}
	}
	return out
}

func (r *run) toDomain(b batch, n node) domain.ActionBatch {
	actions := lo.Map(b.actions, func(a action, _ int) domain.Action {
		return domain.Action{
			DriverID:    r.drivers[a.driver].ID,
			FromZone:    a.from,
			ToZone:      a.to,
			CostSeconds: a.cost,
			At:          n.at,
		}
	})
	return domain.NewActionBatch(n.at, actions...)
}
