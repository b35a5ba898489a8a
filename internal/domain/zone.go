package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Zone is one disjoint piece of a region's partition.
// ID is the zone's index in the region's ordered zone list. Each body is an
// orb.Polygon whose first ring is the shell and the remaining rings are holes.
type Zone struct {
	ID     int
	Bodies orb.MultiPolygon
}

// Empty reports whether the zone has no body with a usable shell.
func (z Zone) Empty() bool {
	for _, body := range z.Bodies {
		if len(body) > 0 && len(body[0]) >= 4 {
			return false
		}
	}
	return true
}

// Region owns an ordered zone partition plus the density table built from
// the same pickup history. Both are replaced wholesale on rebuild.
type Region struct {
	ID      int64
	Name    string
	Zones   []Zone
	Samples []DensitySample
	Density DensityTable
	BuiltAt *time.Time
}

// Pickup is a historical pickup event used to partition a region.
type Pickup struct {
	ID       int64
	RegionID int64
	Position Coordinates
	At       time.Time
}
