package dispatch

import (
	"fleet-reposition-service/internal/domain"
	"testing"
	"time"
)

// flatTable predicts the same per-zone density in every bucket of the week.
func flatTable(seq ...float64) domain.DensityTable {
	t := domain.DensityTable{BucketMinutes: 10, Buckets: make(map[domain.DensityKey][]float64)}
	for w := 0; w < 7; w++ {
		for h := 0; h < 24; h++ {
			for m := 0; m < 60; m += 10 {
				t.Buckets[domain.DensityKey{Weekday: w, Hour: h, Minute: m}] = seq
			}
		}
	}
	return t
}

var start = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func TestZoneScore(t *testing.T) {
	e := Evaluator{MatchMultiplier: 2, OversupplyMultiple: 2}

	cases := []struct {
		n    int
		d    float64
		want float64
	}{
		{2, 2, 4},
		{0, 0, 0},
		{3, 2, 2},
		{5, 2, 1},
		{1, 3, -2},
		{2, 0, -2},
		{0, 1.5, -1.5},
	}
	for _, c := range cases {
		if got := e.ZoneScore(c.n, c.d); got != c.want {
			t.Errorf("ZoneScore(%d, %v) = %v, want %v", c.n, c.d, got, c.want)
		}
	}
}

func TestEvalStateCountsEffectiveZones(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LookaheadBuckets = 1
	e := NewEvaluator(cfg, flatTable(1, 1))

	one := 1
	drivers := []domain.Driver{
		{ID: "a", Status: domain.DriverOnline},
		{ID: "b", Status: domain.DriverOnline, DestinationZone: &one},
		{ID: "c", Status: domain.DriverEngaged},
		{ID: "d", Status: domain.DriverOffline},
	}
	zoneOf := func(domain.Driver) int { return 0 }

	got := e.EvalState(2, drivers, zoneOf, start)
	if got != 4 {
		t.Fatalf("score = %v, want 4 (two exact matches)", got)
	}
}

func TestLookaheadSumsBuckets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LookaheadBuckets = 3
	e := NewEvaluator(cfg, flatTable(0, 1))

	// Zone 1 expects 3 over the window; one driver leaves a shortfall of 2.
	if got := e.Score([]int{0, 1}, start); got != -2 {
		t.Fatalf("score = %v, want -2", got)
	}
	if ub := e.UpperBound(2, start); ub != 6 {
		t.Fatalf("upper bound = %v, want 6", ub)
	}
}
