// Package replication filters and diffs simulation state per connection,
// so each client only receives the entities inside its own viewport and
// only the fields that changed since the last tick it was sent.
package replication

import "boidarena/internal/simcore"

// Viewport is the rectangular region of world space a connection is
// interested in, centered on its player.
type Viewport struct {
	CenterX, CenterY float64
	HalfWidth        float64
	HalfHeight       float64
}

// Contains reports whether (x, y) falls inside the viewport.
func (v Viewport) Contains(x, y float64) bool {
	return x >= v.CenterX-v.HalfWidth && x <= v.CenterX+v.HalfWidth &&
		y >= v.CenterY-v.HalfHeight && y <= v.CenterY+v.HalfHeight
}

// Dirty-field thresholds: a component that changed by less than this since
// the last snapshot sent to a connection isn't worth another packet byte.
const (
	positionThreshold = 0.001
	velocityThreshold = 0.001
)

// lastSent is what a connection was last told about one entity: enough to
// diff against this tick's state and skip fields that haven't moved.
type lastSent struct {
	position simcore.Position
	velocity simcore.Velocity
	health   int
	known    bool
}

// InterestSet tracks, per connection, which entities it was last told about
// and what it was last told — the state backing spec's ReplicatedTo
// component, but keyed by connection rather than stored on the entity, so a
// disconnect drops an O(1) map entry instead of an O(n) sweep.
type InterestSet struct {
	seen map[string]map[simcore.Entity]lastSent
}

// NewInterestSet creates an empty interest tracker.
func NewInterestSet() *InterestSet {
	return &InterestSet{seen: make(map[string]map[simcore.Entity]lastSent)}
}

// Forget drops all interest state for a connection, called on disconnect.
func (is *InterestSet) Forget(connID string) {
	delete(is.seen, connID)
}

func (is *InterestSet) stateFor(connID string) map[simcore.Entity]lastSent {
	m, ok := is.seen[connID]
	if !ok {
		m = make(map[simcore.Entity]lastSent)
		is.seen[connID] = m
	}
	return m
}
