package spatial

import "sort"

// ProjectileSweep is the broad phase for projectile hit detection: a
// sweep-and-prune specialized to the one pairing the simulation actually
// resolves, projectile versus target. Both populations' bounding intervals
// are projected onto the x-axis and swept together in one pass that only
// ever emits cross-class pairs — projectile/projectile and target/target
// overlaps are never materialized, which is most of the pair volume when a
// volley is in flight.
//
// The endpoint buffer is reused between calls, but its contents are rebuilt
// from the caller's slices on every call and then sorted; no ordering carries
// over from the previous call. Candidate pairs are additionally pruned on the
// y-axis before being emitted; the caller still owns the exact narrow-phase
// test.
type ProjectileSweep struct {
	endpoints []sweepEndpoint
	pairs     []SweepPair
	activeP   []int32 // open projectile intervals during the sweep
	activeT   []int32 // open target intervals during the sweep
}

type sweepEndpoint struct {
	x      float32
	y      float32 // body center, for the y-axis prune
	index  int32   // index into the caller's projectile or target slice
	isMin  bool
	target bool // false = projectile, true = target
}

// SweepPair indexes one projectile/target candidate into the slices the
// caller passed to Pairs.
type SweepPair struct {
	Projectile int
	Target     int
}

// NewProjectileSweep creates a sweep sized for maxBodies total projectiles
// plus targets.
func NewProjectileSweep(maxBodies int) *ProjectileSweep {
	return &ProjectileSweep{
		endpoints: make([]sweepEndpoint, 0, maxBodies*2),
		pairs:     make([]SweepPair, 0, maxBodies),
		activeP:   make([]int32, 0, 64),
		activeT:   make([]int32, 0, 64),
	}
}

// Pairs rebuilds the endpoint list from this tick's positions and returns
// every projectile/target pair whose bounding boxes (side 2*radius) overlap
// on both axes. The returned slice is reused on the next call.
func (s *ProjectileSweep) Pairs(projectiles, targets [][2]float32, radius float32) []SweepPair {
	s.pairs = s.pairs[:0]
	s.endpoints = s.endpoints[:0]

	for i, p := range projectiles {
		s.endpoints = append(s.endpoints,
			sweepEndpoint{x: p[0] - radius, y: p[1], index: int32(i), isMin: true},
			sweepEndpoint{x: p[0] + radius, y: p[1], index: int32(i)},
		)
	}
	for i, t := range targets {
		s.endpoints = append(s.endpoints,
			sweepEndpoint{x: t[0] - radius, y: t[1], index: int32(i), isMin: true, target: true},
			sweepEndpoint{x: t[0] + radius, y: t[1], index: int32(i), target: true},
		)
	}

	s.sortEndpoints()
	s.sweep(projectiles, targets, 2*radius)
	return s.pairs
}

// sortEndpoints orders endpoints by x with an insertion sort, which is cheap
// when the caller's slices already arrive close to x-order and still cheap
// for a few hundred bodies in any order; above 4096 endpoints it uses the
// standard sort instead.
func (s *ProjectileSweep) sortEndpoints() {
	eps := s.endpoints
	if len(eps) > 4096 {
		sort.Slice(eps, func(i, j int) bool { return eps[i].x < eps[j].x })
		return
	}
	for i := 1; i < len(eps); i++ {
		key := eps[i]
		j := i - 1
		for j >= 0 && eps[j].x > key.x {
			eps[j+1] = eps[j]
			j--
		}
		eps[j+1] = key
	}
}

// sweep walks the sorted endpoints once, keeping the open projectile and
// target intervals in two separate active sets. Opening an interval pairs
// it against the opposite class only.
func (s *ProjectileSweep) sweep(projectiles, targets [][2]float32, maxYGap float32) {
	s.activeP = s.activeP[:0]
	s.activeT = s.activeT[:0]

	for _, ep := range s.endpoints {
		if !ep.isMin {
			if ep.target {
				s.activeT = dropIndex(s.activeT, ep.index)
			} else {
				s.activeP = dropIndex(s.activeP, ep.index)
			}
			continue
		}

		if ep.target {
			for _, pi := range s.activeP {
				if yGap(projectiles[pi][1], ep.y) <= maxYGap {
					s.pairs = append(s.pairs, SweepPair{Projectile: int(pi), Target: int(ep.index)})
				}
			}
			s.activeT = append(s.activeT, ep.index)
		} else {
			for _, ti := range s.activeT {
				if yGap(targets[ti][1], ep.y) <= maxYGap {
					s.pairs = append(s.pairs, SweepPair{Projectile: int(ep.index), Target: int(ti)})
				}
			}
			s.activeP = append(s.activeP, ep.index)
		}
	}
}

func dropIndex(active []int32, index int32) []int32 {
	for i, v := range active {
		if v == index {
			active[i] = active[len(active)-1]
			return active[:len(active)-1]
		}
	}
	return active
}

func yGap(a, b float32) float32 {
	if a > b {
		return a - b
	}
	return b - a
}
