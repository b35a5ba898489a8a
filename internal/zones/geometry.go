package zones

import (
	"fleet-reposition-service/internal/domain"
	"math"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Bodies with less area than this (in squared degrees) are slivers left by
// floating-point noise and are discarded.
const minBodyArea = 1e-12

// toClip flattens every ring of every body into polyclip contours.
func toClip(mp orb.MultiPolygon) polyclip.Polygon {
	out := make(polyclip.Polygon, 0, len(mp))
	for _, body := range mp {
		for _, ring := range body {
			c := ringToContour(ring)
			if len(c) >= 3 {
				out = append(out, c)
			}
		}
	}
	return out
}

func ringToContour(r orb.Ring) polyclip.Contour {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	c := make(polyclip.Contour, 0, n)
	for _, p := range r[:n] {
		c = append(c, polyclip.Point{X: p[0], Y: p[1]})
	}
	return c
}

func contourToRing(c polyclip.Contour) orb.Ring {
	r := make(orb.Ring, 0, len(c)+1)
	for _, p := range c {
		r = append(r, orb.Point{p.X, p.Y})
	}
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

// fromClip rebuilds shell/hole structure from a flat contour list. A contour
// nested inside an even number of others is a shell; odd nesting makes it a
// hole of the smallest shell around it. Contours that do not enclose any area
// are returned as remnants.
func fromClip(p polyclip.Polygon) (orb.MultiPolygon, int) {
	type item struct {
		ring  orb.Ring
		area  float64
		depth int
		owner int
	}

	items := make([]item, 0, len(p))
	remnants := 0
	for _, c := range p {
		if len(c) < 3 {
			remnants++
			continue
		}
		r := contourToRing(c)
		a := math.Abs(planar.Area(r))
		if a < minBodyArea {
			remnants++
			continue
		}
		items = append(items, item{ring: r, area: a, owner: -1})
	}

	for i := range items {
		smallest := -1
		for j := range items {
			if i == j || items[j].area <= items[i].area {
				continue
			}
			if !ringInside(items[i].ring, items[j].ring) {
				continue
			}
			items[i].depth++
			if smallest < 0 || items[j].area < items[smallest].area {
				smallest = j
			}
		}
		items[i].owner = smallest
	}

	shellIdx := make(map[int]int)
	var out orb.MultiPolygon
	for i, it := range items {
		if it.depth%2 == 0 {
			shellIdx[i] = len(out)
			out = append(out, orb.Polygon{it.ring})
		}
	}
	for _, it := range items {
		if it.depth%2 == 1 && it.owner >= 0 {
			if si, ok := shellIdx[it.owner]; ok {
				out[si] = append(out[si], it.ring)
			}
		}
	}
	return out, remnants
}

// ringInside reports whether inner lies within outer, judged on the first
// vertex of inner that is not on outer's boundary.
func ringInside(inner, outer orb.Ring) bool {
	for _, p := range inner {
		if planar.DistanceFrom(outer, p) < 1e-12 {
			continue
		}
		return planar.RingContains(outer, p)
	}
	return false
}

// IntersectionArea is the area shared by two zones.
func IntersectionArea(a, b domain.Zone) float64 {
	if !a.Bodies.Bound().Intersects(b.Bodies.Bound()) {
		return 0
	}
	inter := toClip(a.Bodies).Construct(polyclip.INTERSECTION, toClip(b.Bodies))
	mp, _ := fromClip(inter)
	return math.Abs(planar.Area(mp))
}

// Area is the planar area of a zone in squared degrees.
func Area(z domain.Zone) float64 {
	return math.Abs(planar.Area(z.Bodies))
}
