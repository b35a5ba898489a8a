// Package density builds and serves the time-bucketed historical demand
// profile of a region's zones.
package density

import (
	"fleet-reposition-service/internal/domain"
	"sort"
	"time"
)

// DefaultBucketMinutes is the bucket width used when none is configured.
const DefaultBucketMinutes = 10

// KeyFor derives the bucket key for t in t's own location.
func KeyFor(t time.Time, bucketMinutes int) domain.DensityKey {
	if bucketMinutes <= 0 {
		bucketMinutes = DefaultBucketMinutes
	}
	return domain.DensityKey{
		Weekday: (int(t.Weekday()) + 6) % 7,
		Hour:    t.Hour(),
		Minute:  t.Minute() / bucketMinutes * bucketMinutes,
	}
}

// Build groups raw samples by bucket and averages the pickups per zone.
// A zone's average only counts samples that carry an entry for it; indexes
// below the bucket's longest sample are always present, zero when unseen.
func Build(samples []domain.DensitySample, bucketMinutes int) domain.DensityTable {
	if bucketMinutes <= 0 {
		bucketMinutes = DefaultBucketMinutes
	}

	type acc struct {
		sums   []float64
		counts []int
	}
	groups := make(map[domain.DensityKey]*acc)

	for _, s := range samples {
		k := KeyFor(s.At, bucketMinutes)
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		for len(a.sums) < len(s.Pickups) {
			a.sums = append(a.sums, 0)
			a.counts = append(a.counts, 0)
		}
		for i, n := range s.Pickups {
			a.sums[i] += float64(n)
			a.counts[i]++
		}
	}

	table := domain.DensityTable{
		BucketMinutes: bucketMinutes,
		Buckets:       make(map[domain.DensityKey][]float64, len(groups)),
	}
	for k, a := range groups {
		seq := make([]float64, len(a.sums))
		for i := range a.sums {
			if a.counts[i] > 0 {
				seq[i] = a.sums[i] / float64(a.counts[i])
			}
		}
		table.Buckets[k] = seq
	}
	return table
}

// Lookup returns the bucket sequence for t, or an empty sequence when the
// bucket was never observed. bucketMinutes <= 0 uses the table's own width.
func Lookup(table domain.DensityTable, t time.Time, bucketMinutes int) []float64 {
	if bucketMinutes <= 0 {
		bucketMinutes = table.BucketMinutes
	}
	seq, ok := table.Buckets[KeyFor(t, bucketMinutes)]
	if !ok {
		return []float64{}
	}
	return seq
}

// Window sums the sequences of `buckets` consecutive buckets starting at t.
// The result is as long as the longest sequence seen.
func Window(table domain.DensityTable, t time.Time, buckets int) []float64 {
	width := table.BucketMinutes
	if width <= 0 {
		width = DefaultBucketMinutes
	}
	if buckets < 1 {
		buckets = 1
	}

	var out []float64
	for i := 0; i < buckets; i++ {
		seq := Lookup(table, t.Add(time.Duration(i*width)*time.Minute), width)
		for len(out) < len(seq) {
			out = append(out, 0)
		}
		for z, v := range seq {
			out[z] += v
		}
	}
	return out
}

// IntervalStart floors t to the start of its `minutes`-wide interval.
func IntervalStart(t time.Time, minutes int) time.Time {
	if minutes <= 0 {
		return t
	}
	if minutes <= 60 && 60%minutes == 0 {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()/minutes*minutes, 0, 0, t.Location())
	}
	return t.Truncate(time.Duration(minutes) * time.Minute)
}

// Accumulator collects raw per-interval pickup counts while a region is
// being partitioned.
type Accumulator struct {
	intervalMinutes int
	records         map[time.Time][]int
}

func NewAccumulator(intervalMinutes int) *Accumulator {
	return &Accumulator{
		intervalMinutes: intervalMinutes,
		records:         make(map[time.Time][]int),
	}
}

// Add counts one pickup at t in zone.
func (a *Accumulator) Add(t time.Time, zone int) {
	if zone < 0 {
		return
	}
	start := IntervalStart(t, a.intervalMinutes)
	rec := a.records[start]
	for len(rec) <= zone {
		rec = append(rec, 0)
	}
	rec[zone]++
	a.records[start] = rec
}

// Samples returns the collected records ordered by interval start.
func (a *Accumulator) Samples() []domain.DensitySample {
	out := make([]domain.DensitySample, 0, len(a.records))
	for at, rec := range a.records {
		out = append(out, domain.DensitySample{At: at, Pickups: append([]int(nil), rec...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}
