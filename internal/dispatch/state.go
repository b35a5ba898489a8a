package dispatch

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// move is one driver reassignment layered over its parent's moves. Child
// states share every ancestor move; only the batch's own entries are new.
type move struct {
	parent *move
	driver int
	zone   int
}

// node is a search state: base roster plus the move chain, at a simulated time.
type node struct {
	moves *move
	at    time.Time
	depth int
}

func (n node) child(b batch, step time.Duration) node {
	m := n.moves
	for _, a := range b.actions {
		m = &move{parent: m, driver: a.driver, zone: a.to}
	}
	return node{moves: m, at: n.at.Add(step), depth: n.depth + 1}
}

// moved returns the drivers reassigned along this node's chain.
func (n node) moved() map[int]int {
	out := make(map[int]int)
	for m := n.moves; m != nil; m = m.parent {
		if _, ok := out[m.driver]; !ok {
			out[m.driver] = m.zone
		}
	}
	return out
}

// signature renders the full assignment map (sorted by driver id) plus the
// time, e.g. "a=1;c=0;@1767600000".
func (r *run) signature(n node) string {
	moved := n.moved()

	pairs := make([]string, 0, len(r.baseAssigned)+len(moved))
	for idx, zone := range r.baseAssigned {
		pairs = append(pairs, r.drivers[idx].ID+"="+strconv.Itoa(zone))
	}
	for idx, zone := range moved {
		pairs = append(pairs, r.drivers[idx].ID+"="+strconv.Itoa(zone))
	}
	sort.Strings(pairs)

	var sb strings.Builder
	for _, p := range pairs {
		sb.WriteString(p)
		sb.WriteByte(';')
	}
	sb.WriteByte('@')
	sb.WriteString(strconv.FormatInt(n.at.Unix(), 10))
	return sb.String()
}

// supply counts drivers per zone for the node: the base counts adjusted by
// every move in the chain.
func (r *run) supply(n node) []int {
	out := make([]int, len(r.baseSupply))
	copy(out, r.baseSupply)
	for idx, zone := range n.moved() {
		if from := r.currentZone[idx]; from >= 0 && from < len(out) {
			out[from]--
		}
		if zone >= 0 && zone < len(out) {
			out[zone]++
		}
	}
	return out
}
