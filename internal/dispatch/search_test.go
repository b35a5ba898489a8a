package dispatch

import (
	"context"
	"fleet-reposition-service/internal/domain"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

type uniformMatrix int

func (m uniformMatrix) Get(from, to int) int {
	if from == to {
		return 0
	}
	return int(m)
}

type matrixFunc func(from, to int) int

func (f matrixFunc) Get(from, to int) int { return f(from, to) }

func idleDriver(id string) domain.Driver {
	return domain.Driver{ID: id, Status: domain.DriverOnline}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LookaheadBuckets = 1
	return cfg
}

func TestSearchMovesDriverToDeficitZone(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 1

	plan, err := Search(context.Background(), cfg, Input{
		NumZones:    2,
		Drivers:     []domain.Driver{idleDriver("d1")},
		DriverZones: map[string]int{"d1": 0},
		Matrix:      uniformMatrix(600),
		Density:     flatTable(0, 3),
		Start:       start,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(plan.Batches))
	}
	b := plan.Batches[0]
	if len(b.Actions) != 1 {
		t.Fatalf("actions = %+v, want one", b.Actions)
	}
	a := b.Actions[0]
	if a.DriverID != "d1" || a.FromZone != 0 || a.ToZone != 1 || a.CostSeconds != 600 {
		t.Fatalf("action = %+v", a)
	}
	if !b.At.Equal(start) {
		t.Fatalf("batch time = %v, want %v", b.At, start)
	}

	// Staying put scores -4 (oversupply in zone 0, shortfall 3 in zone 1).
	// Moving removes one unit of undersupply and the oversupply: -2.
	if plan.Score != -2 {
		t.Fatalf("score = %v, want -2", plan.Score)
	}
	if plan.CostSeconds != 600 {
		t.Fatalf("cost = %d, want 600", plan.CostSeconds)
	}
	if want := -2 - 600.0/3600; plan.AdjustedScore != want {
		t.Fatalf("adjusted = %v, want %v", plan.AdjustedScore, want)
	}
}

func TestSearchSingleZoneNeverMoves(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 3

	plan, err := Search(context.Background(), cfg, Input{
		NumZones:    1,
		Drivers:     []domain.Driver{idleDriver("a"), idleDriver("b")},
		DriverZones: map[string]int{"a": 0, "b": 0},
		Density:     flatTable(5),
		Start:       start,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(plan.Batches))
	}
	for i, b := range plan.Batches {
		if !b.Empty() {
			t.Fatalf("batch %d = %+v, want empty", i, b)
		}
		if want := start.Add(time.Duration(i*cfg.StepMinutes) * time.Minute); !b.At.Equal(want) {
			t.Fatalf("batch %d at %v, want %v", i, b.At, want)
		}
	}
	if plan.CostSeconds != 0 {
		t.Fatalf("cost = %d, want 0", plan.CostSeconds)
	}
}

func TestSearchUnreachableEverywhereStaysPut(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 2

	plan, err := Search(context.Background(), cfg, Input{
		NumZones:    3,
		Drivers:     []domain.Driver{idleDriver("a"), idleDriver("b")},
		DriverZones: map[string]int{"a": 0, "b": 0},
		Matrix:      uniformMatrix(unreachableCost),
		Density:     flatTable(0, 2, 2),
		Start:       start,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(plan.Batches))
	}
	for i, b := range plan.Batches {
		if !b.Empty() {
			t.Fatalf("batch %d = %+v, want empty", i, b)
		}
	}
	if plan.CostSeconds != 0 {
		t.Fatalf("cost = %d, want 0", plan.CostSeconds)
	}
}

func TestSearchNoIdleDriversAdvancesAtZeroCost(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 2
	one := 1

	plan, err := Search(context.Background(), cfg, Input{
		NumZones: 2,
		Drivers: []domain.Driver{
			{ID: "busy", Status: domain.DriverEngaged},
			{ID: "sent", Status: domain.DriverOnline, DestinationZone: &one},
		},
		Matrix:  uniformMatrix(300),
		Density: flatTable(0, 1),
		Start:   start,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Batches) != 2 || !plan.Batches[0].Empty() || !plan.Batches[1].Empty() {
		t.Fatalf("batches = %+v, want two empty batches", plan.Batches)
	}
	// The assigned driver already covers zone 1 exactly.
	if plan.Score != 2 {
		t.Fatalf("score = %v, want 2", plan.Score)
	}
}

func TestSearchVisitsEachStateOnceAndReusesTranspositions(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 2
	cfg.SiblingCap = 50

	in := Input{
		NumZones:    3,
		Drivers:     []domain.Driver{idleDriver("a"), idleDriver("b")},
		DriverZones: map[string]int{"a": 0, "b": 0},
		Matrix:      uniformMatrix(600),
		Density:     flatTable(0, 1, 1),
		Start:       start,
	}

	r := newRun(context.Background(), cfg, in)
	res := r.visit(node{at: start})
	if !res.valid {
		t.Fatalf("expected a valid result")
	}
	if r.explored != len(r.visited) {
		t.Fatalf("explored %d states but saw %d distinct signatures", r.explored, len(r.visited))
	}
	if r.cacheHits == 0 {
		t.Fatalf("expected memo hits from transposed move orders")
	}

	plan, err := Search(context.Background(), cfg, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.ExploredStates != r.explored || plan.CacheHits != r.cacheHits {
		t.Fatalf("diagnostics = %d/%d, want %d/%d", plan.ExploredStates, plan.CacheHits, r.explored, r.cacheHits)
	}
	// Both drivers end up covering zones 1 and 2.
	if plan.Score != 4 {
		t.Fatalf("score = %v, want 4", plan.Score)
	}
}

func TestSearchExpansionIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 3
	cfg.SiblingCap = 4

	var drivers []domain.Driver
	zonesOf := make(map[string]int)
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("d%02d", i)
		drivers = append(drivers, idleDriver(id))
		zonesOf[id] = i % 2
	}

	plan, err := Search(context.Background(), cfg, Input{
		NumZones:    8,
		Drivers:     drivers,
		DriverZones: zonesOf,
		Matrix:      matrixFunc(func(from, to int) int { return 300 * (1 + abs(from-to)) }),
		Density:     flatTable(0, 0, 3, 4, 5, 6, 7, 8),
		Start:       start,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bound := 1 + 4 + 16 + 64
	if plan.ExploredStates > bound {
		t.Fatalf("explored = %d, want <= %d", plan.ExploredStates, bound)
	}
	if len(plan.Batches) != cfg.MaxDepth {
		t.Fatalf("batches = %d, want %d", len(plan.Batches), cfg.MaxDepth)
	}
}

func TestSearchIsDeterministicAndRunsConcurrently(t *testing.T) {
	cfg := testConfig()
	in := Input{
		NumZones:    4,
		Drivers:     []domain.Driver{idleDriver("c"), idleDriver("a"), idleDriver("b")},
		DriverZones: map[string]int{"a": 0, "b": 1, "c": 0},
		Matrix:      matrixFunc(func(from, to int) int { return 240 * (1 + abs(from-to)) }),
		Density:     flatTable(0, 2, 1, 3),
		Start:       start,
	}

	plans := make([]domain.Plan, 4)
	var wg sync.WaitGroup
	for i := range plans {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := Search(context.Background(), cfg, in)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			plans[i] = p
		}()
	}
	wg.Wait()

	for i := 1; i < len(plans); i++ {
		if !reflect.DeepEqual(plans[0].Batches, plans[i].Batches) || plans[0].Score != plans[i].Score {
			t.Fatalf("run %d differs from run 0", i)
		}
	}
}

func TestSearchCancelledReturnsBestSoFar(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan, err := Search(ctx, testConfig(), Input{
		NumZones:    2,
		Drivers:     []domain.Driver{idleDriver("a")},
		DriverZones: map[string]int{"a": 0},
		Matrix:      uniformMatrix(60),
		Density:     flatTable(0, 1),
		Start:       start,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.Aborted {
		t.Fatalf("expected aborted plan")
	}
	if len(plan.Batches) != 0 {
		t.Fatalf("batches = %+v, want none", plan.Batches)
	}
	// Driver a sits in zone 0 with no demand; zone 1 is one short.
	if plan.Score != -2 {
		t.Fatalf("score = %v, want -2", plan.Score)
	}
}

func TestSearchCancelledMidRunKeepsCompletedPath(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 2
	cfg.MaxSimultaneousActions = 1

	in := Input{
		NumZones:    3,
		Drivers:     []domain.Driver{idleDriver("a"), idleDriver("b")},
		DriverZones: map[string]int{"a": 0, "b": 0},
		Density:     flatTable(0, 1, 1),
		Start:       start,
	}

	full := in
	full.Matrix = uniformMatrix(600)
	want, err := Search(context.Background(), cfg, full)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The root and its stay-put child each price four moves, the a->1
	// subtree prices one more. The tenth lookup starts the a->2 subtree.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	in.Matrix = matrixFunc(func(from, to int) int {
		calls++
		if calls >= 10 {
			cancel()
		}
		return uniformMatrix(600).Get(from, to)
	})

	plan, err := Search(ctx, cfg, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.Aborted {
		t.Fatalf("expected aborted plan")
	}
	if len(plan.Batches) != cfg.MaxDepth {
		t.Fatalf("batches = %d, want %d", len(plan.Batches), cfg.MaxDepth)
	}
	first, second := plan.Batches[0], plan.Batches[1]
	if first.Empty() || first.Actions[0].DriverID != "a" || first.Actions[0].ToZone != 1 {
		t.Fatalf("first batch = %+v, want a to zone 1", first)
	}
	if second.Empty() || second.Actions[0].DriverID != "b" || second.Actions[0].ToZone != 2 {
		t.Fatalf("second batch = %+v, want b to zone 2", second)
	}
	if plan.Score != 4 || plan.CostSeconds != 1200 {
		t.Fatalf("score = %v cost = %d, want 4 and 1200", plan.Score, plan.CostSeconds)
	}
	// Staying put scores -4: two surplus drivers in zone 0, one short in 1 and 2.
	if plan.AdjustedScore <= -4 {
		t.Fatalf("adjusted = %v, want better than staying put", plan.AdjustedScore)
	}
	if plan.ExploredStates >= want.ExploredStates {
		t.Fatalf("explored = %d, want fewer than the full run's %d", plan.ExploredStates, want.ExploredStates)
	}
}

func TestCandidatesFallBackToNeighbouringZones(t *testing.T) {
	tests := []struct {
		from     int
		fallback int
		want     []int
	}{
		{from: 2, fallback: 2, want: []int{3, 1}},
		{from: 2, fallback: 3, want: []int{3, 1, 4}},
		{from: 0, fallback: 2, want: []int{1, 2}},
		{from: 4, fallback: 2, want: []int{3, 2}},
		{from: 2, fallback: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("from %d keep %d", tt.from, tt.fallback), func(t *testing.T) {
			cfg := testConfig()
			cfg.FallbackZones = tt.fallback
			r := newRun(context.Background(), cfg, Input{
				NumZones:    5,
				Drivers:     []domain.Driver{idleDriver("a")},
				DriverZones: map[string]int{"a": tt.from},
				Matrix:      uniformMatrix(60),
				Density:     flatTable(0, 0, 0, 0, 0),
				Start:       start,
			})

			got := r.candidates(0, make([]float64, 5))
			var zones []int
			for _, a := range got {
				if a.from != tt.from {
					t.Fatalf("action from = %d, want %d", a.from, tt.from)
				}
				if a.cost != 60 {
					t.Fatalf("action cost = %d, want 60", a.cost)
				}
				zones = append(zones, a.to)
			}
			if !reflect.DeepEqual(zones, tt.want) {
				t.Fatalf("zones = %v, want %v", zones, tt.want)
			}
		})
	}
}

func TestGenerateWithoutDeficitNeverMovesInPlace(t *testing.T) {
	r := newRun(context.Background(), testConfig(), Input{
		NumZones:    3,
		Drivers:     []domain.Driver{idleDriver("a"), idleDriver("b")},
		DriverZones: map[string]int{"a": 0, "b": 2},
		Matrix:      uniformMatrix(60),
		Density:     flatTable(0, 0, 0),
		Start:       start,
	})

	batches := r.generate(node{at: start})
	if len(batches) < 2 || len(batches[0].actions) != 0 {
		t.Fatalf("batches = %+v, want the empty batch first and fallback moves after it", batches)
	}
	for _, b := range batches {
		seen := make(map[int]bool)
		for _, a := range b.actions {
			if a.to == a.from {
				t.Fatalf("batch %+v moves driver %d to its own zone", b, a.driver)
			}
			if seen[a.driver] {
				t.Fatalf("batch %+v moves driver %d twice", b, a.driver)
			}
			seen[a.driver] = true
		}
	}
}

func TestUnknownZoneDriversUseOwnCosts(t *testing.T) {
	r := newRun(context.Background(), testConfig(), Input{
		NumZones:    3,
		Drivers:     []domain.Driver{idleDriver("w"), idleDriver("v"), idleDriver("u")},
		DriverZones: map[string]int{"w": 7},
		DriverCosts: map[string][]int{"u": {100, 200, 300}},
		Matrix:      uniformMatrix(60),
		Density:     flatTable(0, 0, 0),
		Start:       start,
	})

	// Drivers are sorted by id: u, v, w.
	for i, id := range []string{"u", "v", "w"} {
		if r.drivers[i].ID != id {
			t.Fatalf("driver %d = %s, want %s", i, r.drivers[i].ID, id)
		}
		if r.currentZone[i] != domain.UnknownZone {
			t.Fatalf("zone of %s = %d, want unknown", id, r.currentZone[i])
		}
	}

	if got := r.cost(0, 1); got != 200 {
		t.Fatalf("cost(u, 1) = %d, want 200", got)
	}
	if got := r.cost(1, 1); got != unreachableCost {
		t.Fatalf("cost(v, 1) = %d, want unreachable", got)
	}
	if got := r.cost(2, 0); got != unreachableCost {
		t.Fatalf("cost(w, 0) = %d, want unreachable", got)
	}

	got := r.candidates(0, []float64{0, 1, 1})
	if len(got) != 2 || got[0].to != 1 || got[0].cost != 200 || got[1].to != 2 || got[1].cost != 300 {
		t.Fatalf("candidates = %+v, want zone 1 (200s) then zone 2 (300s)", got)
	}
	if got[0].from != domain.UnknownZone {
		t.Fatalf("from = %d, want unknown", got[0].from)
	}

	fallback := r.candidates(0, make([]float64, 3))
	if len(fallback) != 2 || fallback[0].to != 0 || fallback[0].cost != 100 || fallback[1].to != 1 {
		t.Fatalf("fallback = %+v, want zones 0 and 1", fallback)
	}
}

func TestSearchRejectsMissingMatrix(t *testing.T) {
	if _, err := Search(context.Background(), testConfig(), Input{NumZones: 2}); err == nil {
		t.Fatalf("expected error without a travel matrix")
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
