package domain

import (
	"testing"
	"time"
)

func TestDriverIdle(t *testing.T) {
	zone := 2

	cases := []struct {
		name   string
		driver Driver
		want   bool
	}{
		{"online unassigned", Driver{ID: "a", Status: DriverOnline}, true},
		{"online assigned", Driver{ID: "b", Status: DriverOnline, DestinationZone: &zone}, false},
		{"engaged", Driver{ID: "c", Status: DriverEngaged}, false},
		{"offline", Driver{ID: "d", Status: DriverOffline}, false},
	}

	for _, c := range cases {
		if got := c.driver.Idle(); got != c.want {
			t.Errorf("%s: Idle() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestParseDriverStatus(t *testing.T) {
	st, err := ParseDriverStatus(" Online ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != DriverOnline {
		t.Fatalf("status = %q, want %q", st, DriverOnline)
	}

	if _, err := ParseDriverStatus("busy"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestNewActionBatchSumsCost(t *testing.T) {
	at := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	b := NewActionBatch(at,
		Action{DriverID: "a", FromZone: 0, ToZone: 1, CostSeconds: 300},
		Action{DriverID: "b", FromZone: UnknownZone, ToZone: 2, CostSeconds: 500},
	)

	if b.CostSeconds != 800 {
		t.Fatalf("cost = %d, want 800", b.CostSeconds)
	}
	if b.CostPerAction() != 400 {
		t.Fatalf("cost per action = %v, want 400", b.CostPerAction())
	}
	if !b.HasDriver("b") || b.HasDriver("c") {
		t.Fatalf("HasDriver mismatch for batch %+v", b)
	}
	if NewActionBatch(at).CostPerAction() != 0 {
		t.Fatalf("empty batch should have zero cost per action")
	}
}

func TestDensityAtOutOfRange(t *testing.T) {
	seq := []float64{1, 2}
	if DensityAt(seq, 1) != 2 {
		t.Fatalf("DensityAt(1) = %v, want 2", DensityAt(seq, 1))
	}
	if DensityAt(seq, 5) != 0 || DensityAt(seq, -1) != 0 || DensityAt(nil, 0) != 0 {
		t.Fatalf("out of range lookups must be zero")
	}
}

func TestCoordinatesRounded(t *testing.T) {
	c := Coordinates{Lon: -112.07401234567, Lat: 33.44839876543}
	r := c.Rounded(6)
	if r.Lon != -112.074012 || r.Lat != 33.448399 {
		t.Fatalf("rounded = %+v", r)
	}
}
