package replication

import (
	"math"

	"boidarena/internal/simcore"
)

// SpawnRecord describes an entity a connection is seeing for the first
// time this delta.
type SpawnRecord struct {
	ID         uint32  `json:"id"`
	Generation uint32  `json:"gen"`
	Kind       string  `json:"kind"` // "player", "boid", "projectile", "obstacle"
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Health     int     `json:"health,omitempty"`
	MaxHealth  int     `json:"max_health,omitempty"`
	Weapon     string  `json:"weapon,omitempty"`
}

// Dirty-mask bit positions for UpdateRecord. These are part of the wire
// contract: clients key component decoding on them, so the positions are
// stable even if new components are added later.
const (
	DirtyPosition uint8 = 1 << iota
	DirtyVelocity
	DirtyHealth
)

// UpdateRecord carries only the fields that changed since the last delta
// sent to this connection; fields whose dirty bit is unset must not be
// applied by the client.
type UpdateRecord struct {
	ID         uint32  `json:"id"`
	Generation uint32  `json:"gen"`
	Dirty      uint8   `json:"dirty"`
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	VX         float64 `json:"vx,omitempty"`
	VY         float64 `json:"vy,omitempty"`
	Health     int     `json:"health,omitempty"`
}

// HasPos reports whether the record carries a position update.
func (u UpdateRecord) HasPos() bool { return u.Dirty&DirtyPosition != 0 }

// HasVel reports whether the record carries a velocity update.
func (u UpdateRecord) HasVel() bool { return u.Dirty&DirtyVelocity != 0 }

// HasHealth reports whether the record carries a health update.
func (u UpdateRecord) HasHealth() bool { return u.Dirty&DirtyHealth != 0 }

// RemoveRecord identifies an entity that left a connection's interest set,
// either because it despawned or because it left the viewport.
type RemoveRecord struct {
	ID         uint32 `json:"id"`
	Generation uint32 `json:"gen"`
}

// StateDelta is one connection's replication packet for one network tick.
type StateDelta struct {
	Tick    uint64               `json:"tick"`
	Added   []SpawnRecord        `json:"added,omitempty"`
	Removed []RemoveRecord       `json:"removed,omitempty"`
	Updated []UpdateRecord       `json:"updated,omitempty"`
	Effects []simcore.EffectHint `json:"effects,omitempty"`
}

// BuildDelta computes the StateDelta for one connection: which entities
// entered/left its viewport since last tick (added/removed), which stayed
// and changed enough to be worth sending (updated), and skips everything
// else.
func (is *InterestSet) BuildDelta(w *simcore.World, connID string, vp Viewport, tick uint64) StateDelta {
	state := is.stateFor(connID)
	delta := StateDelta{Tick: tick}

	stillVisible := make(map[simcore.Entity]bool)

	visit := func(e simcore.Entity, kind string, x, y float64, health, maxHealth int, weapon string, vx, vy float64, hasVel bool) {
		if !vp.Contains(x, y) {
			return
		}
		stillVisible[e] = true

		prev, known := state[e]
		if !known {
			delta.Added = append(delta.Added, SpawnRecord{
				ID: e.Index, Generation: e.Generation, Kind: kind,
				X: x, Y: y, Health: health, MaxHealth: maxHealth, Weapon: weapon,
			})
			state[e] = lastSent{
				position: simcore.Position{X: x, Y: y},
				velocity: simcore.Velocity{VX: vx, VY: vy},
				health:   health,
				known:    true,
			}
			return
		}

		upd := UpdateRecord{ID: e.Index, Generation: e.Generation}

		if math.Hypot(x-prev.position.X, y-prev.position.Y) > positionThreshold {
			upd.Dirty |= DirtyPosition
			upd.X, upd.Y = x, y
		}
		if hasVel && math.Hypot(vx-prev.velocity.VX, vy-prev.velocity.VY) > velocityThreshold {
			upd.Dirty |= DirtyVelocity
			upd.VX, upd.VY = vx, vy
		}
		if health != prev.health {
			upd.Dirty |= DirtyHealth
			upd.Health = health
		}

		if upd.Dirty != 0 {
			delta.Updated = append(delta.Updated, upd)
			state[e] = lastSent{
				position: simcore.Position{X: x, Y: y},
				velocity: simcore.Velocity{VX: vx, VY: vy},
				health:   health,
				known:    true,
			}
		}
	}

	w.ForEach(simcore.CompPlayer|simcore.CompPosition, func(e simcore.Entity) bool {
		p, err := w.GetPlayer(e)
		if err != nil {
			return true
		}
		pos, _ := w.GetPosition(e)
		vel, velErr := w.GetVelocity(e)
		visit(e, "player", pos.X, pos.Y, p.Health, p.MaxHealth, p.Weapon, vel.VX, vel.VY, velErr == nil)
		return true
	})

	w.ForEach(simcore.CompBoid|simcore.CompPosition, func(e simcore.Entity) bool {
		pos, _ := w.GetPosition(e)
		vel, velErr := w.GetVelocity(e)
		health, maxHealth := 0, 0
		if h, err := w.GetHealth(e); err == nil {
			health, maxHealth = h.Current, h.Max
		}
		visit(e, "boid", pos.X, pos.Y, health, maxHealth, "", vel.VX, vel.VY, velErr == nil)
		return true
	})

	w.ForEach(simcore.CompProjectile|simcore.CompPosition, func(e simcore.Entity) bool {
		pos, _ := w.GetPosition(e)
		vel, velErr := w.GetVelocity(e)
		visit(e, "projectile", pos.X, pos.Y, 0, 0, "", vel.VX, vel.VY, velErr == nil)
		return true
	})

	w.ForEach(simcore.CompObstacle|simcore.CompPosition, func(e simcore.Entity) bool {
		pos, _ := w.GetPosition(e)
		visit(e, "obstacle", pos.X, pos.Y, 0, 0, "", 0, 0, false)
		return true
	})

	for e := range state {
		if stillVisible[e] {
			continue
		}
		delta.Removed = append(delta.Removed, RemoveRecord{ID: e.Index, Generation: e.Generation})
		delete(state, e)
	}

	return delta
}
