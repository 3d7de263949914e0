package simcore

import (
	"log"
	"math"
)

// driftEpsilon is the divergence, in world units, below which Position and
// Transform are considered in sync and no correction is applied.
const driftEpsilon = 1.0

// driftState tracks how many consecutive ticks an entity's Position has
// disagreed with its Transform by more than driftEpsilon.
type driftState struct {
	consecutive int
}

// CoordSync mirrors each entity's authoritative Transform into its
// replicated Position every tick, and watches for drift between the two
// (which would only happen if some system wrote Position directly instead
// of going through Transform). Every tick on which the two diverge by more
// than driftEpsilon is logged and counted as a correction, since the copy
// overwrites Position either way; an entity that diverges on two or more
// consecutive ticks gets an additional log line.
type CoordSync struct {
	drift map[Entity]*driftState
}

// NewCoordSync creates a drift tracker.
func NewCoordSync() *CoordSync {
	return &CoordSync{drift: make(map[Entity]*driftState)}
}

// Sync copies Transform into Position for every entity carrying both,
// correcting any drift detected over the prior tick and reporting how many
// corrections were applied (for the observability layer).
func (cs *CoordSync) Sync(w *World) (corrections int) {
	w.ForEach(CompTransform|CompPosition, func(e Entity) bool {
		t := w.transforms[e.Index]
		pos := w.positions[e.Index]

		dx := pos.X - t.X
		dy := pos.Y - t.Y
		divergent := math.Hypot(dx, dy) > driftEpsilon

		st, ok := cs.drift[e]
		if !ok {
			st = &driftState{}
			cs.drift[e] = st
		}

		if divergent {
			st.consecutive++
			corrections++
			log.Printf("coordsync: drift %.2f on entity %d/%d corrected", math.Hypot(dx, dy), e.Index, e.Generation)
			if st.consecutive >= 2 {
				// Same entity diverging tick after tick means some system is
				// writing Position directly; worth a louder note.
				log.Printf("coordsync: entity %d/%d drifted %d consecutive ticks", e.Index, e.Generation, st.consecutive)
			}
		} else {
			st.consecutive = 0
		}

		w.positions[e.Index] = Position{X: t.X, Y: t.Y}
		return true
	})
	return corrections
}

// Forget drops drift bookkeeping for a despawned entity, called from
// ReleaseDespawned's returned list so the map doesn't grow unbounded over a
// long match.
func (cs *CoordSync) Forget(entities []Entity) {
	for _, e := range entities {
		delete(cs.drift, e)
	}
}

// SeedFromSpawn performs the one-time inverse sync (Position -> Transform)
// that happens only at entity creation, when a caller has set Position (the
// network-facing coordinate) before any Transform exists.
func SeedFromSpawn(w *World, e Entity, pos Position) {
	w.SetTransform(e, Transform{X: pos.X, Y: pos.Y})
	w.SetPosition(e, pos)
}
