package domain

import (
	"fmt"
	"time"
)

// DensityKey is a (weekday, hour, minute-interval) bucket. Weekday counts
// from Monday=0.
type DensityKey struct {
	Weekday int
	Hour    int
	Minute  int
}

func (k DensityKey) String() string {
	return fmt.Sprintf("%d:%d:%02d", k.Weekday, k.Hour, k.Minute)
}

// DensityTable maps a bucket to the average pickups per zone index.
// Sequences may differ in length between buckets; indexes beyond a
// sequence's end mean zero demand.
type DensityTable struct {
	BucketMinutes int
	Buckets       map[DensityKey][]float64
}

// DensityAt returns the density for one zone in a bucket sequence, zero when out of range.
func DensityAt(seq []float64, zone int) float64 {
	if zone < 0 || zone >= len(seq) {
		return 0
	}
	return seq[zone]
}

// DensitySample is one raw record: pickups per zone index observed in the
// interval starting at At.
type DensitySample struct {
	At      time.Time
	Pickups []int
}
