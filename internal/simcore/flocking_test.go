package simcore

import (
	"math"
	"testing"

	"boidarena/internal/simcore/spatial"
)

func flockingFixture(t *testing.T, count int) (*World, *GroupManager, *BoidGroup, *spatial.SpatialGrid, *spatial.RallyFieldSet) {
	t.Helper()
	w := NewWorld(8, 8, 256)
	gm := NewGroupManager()
	g := SpawnBoidGroup(w, gm, ArchetypeStandard, GroupAssault, count, Territory{CenterX: 600, CenterY: 450, Radius: 150})

	grid := spatial.NewSpatialGrid(1200, 900, 100, 256)
	w.ForEach(CompBoid|CompTransform, func(b Entity) bool {
		tr := w.transforms[b.Index]
		grid.Insert(b.Index, tr.X, tr.Y)
		return true
	})
	flow := spatial.NewRallyFieldSet(1200, 900, 50)
	return w, gm, g, grid, flow
}

func TestSeparationPushesApart(t *testing.T) {
	w := NewWorld(8, 8, 16)
	gm := NewGroupManager()
	grid := spatial.NewSpatialGrid(1200, 900, 100, 16)
	flow := spatial.NewRallyFieldSet(1200, 900, 50)

	a := w.Spawn()
	w.SetTransform(a, Transform{X: 600, Y: 450})
	w.SetVelocity(a, Velocity{})
	w.SetBoid(a, Boid{})

	// Nearly overlapping: at this range the inverse-square separation force
	// dwarfs cohesion.
	b := w.Spawn()
	w.SetTransform(b, Transform{X: 600.5, Y: 450})
	w.SetVelocity(b, Velocity{})
	w.SetBoid(b, Boid{})

	grid.Insert(a.Index, 600, 450)
	grid.Insert(b.Index, 600.5, 450)

	bounds := ArenaBounds{Width: 1200, Height: 900, Margin: 24}
	StepFlocking(w, gm, grid, flow, nil, bounds, 1.0/60, 1, 60)

	va, _ := w.GetVelocity(a)
	vb, _ := w.GetVelocity(b)
	if va.VX >= 0 {
		t.Errorf("left boid should be pushed left, vx = %v", va.VX)
	}
	if vb.VX <= 0 {
		t.Errorf("right boid should be pushed right, vx = %v", vb.VX)
	}
}

func TestBoundaryForceTurnsBoidsBack(t *testing.T) {
	w := NewWorld(8, 8, 16)
	gm := NewGroupManager()
	grid := spatial.NewSpatialGrid(1200, 900, 100, 16)
	flow := spatial.NewRallyFieldSet(1200, 900, 50)

	e := w.Spawn()
	w.SetTransform(e, Transform{X: 30, Y: 450})
	w.SetVelocity(e, Velocity{VX: -200, VY: 0})
	w.SetBoid(e, Boid{})
	grid.Insert(e.Index, 30, 450)

	bounds := ArenaBounds{Width: 1200, Height: 900, Margin: 24}
	before, _ := w.GetVelocity(e)
	StepFlocking(w, gm, grid, flow, nil, bounds, 1.0/60, 1, 60)
	after, _ := w.GetVelocity(e)
	if after.VX <= before.VX {
		t.Errorf("boundary force did not push away from wall: %v -> %v", before.VX, after.VX)
	}
}

// LOD safety: switching a group's tier mid-match never leaves a member with
// an undefined velocity.
func TestLODSwitchKeepsVelocityDefined(t *testing.T) {
	w, gm, g, grid, flow := flockingFixture(t, 12)
	bounds := ArenaBounds{Width: 1200, Height: 900, Margin: 24}

	tiers := []LODTier{LODNear, LODFar, LODDistant, LODMedium, LODNear, LODDistant}
	for tick, tier := range tiers {
		g.LOD = tier
		StepFlocking(w, gm, grid, flow, nil, bounds, 1.0/60, uint64(tick+1), 60)

		w.ForEach(CompBoid|CompVelocity, func(e Entity) bool {
			v := w.velocities[e.Index]
			if math.IsNaN(v.VX) || math.IsNaN(v.VY) || math.IsInf(v.VX, 0) || math.IsInf(v.VY, 0) {
				t.Fatalf("tick %d tier %v: undefined velocity %+v", tick, tier, v)
			}
			return true
		})
	}
}

// In Far/Distant tiers members snap toward their formation slots without
// per-neighbor queries.
func TestFarLODSteersTowardSlots(t *testing.T) {
	w, gm, g, grid, flow := flockingFixture(t, 6)
	g.LOD = LODFar
	g.CenterX, g.CenterY = 600, 450

	bounds := ArenaBounds{Width: 1200, Height: 900, Margin: 24}
	StepFlocking(w, gm, grid, flow, nil, bounds, 1.0/60, 1, 60)

	w.ForEach(CompBoid|CompVelocity, func(e Entity) bool {
		m, _ := w.GetBoidGroupMember(e)
		ox, oy := FormationSlotOffset(g.Formation, m.FormationSlot, g.MemberCount)
		tr := w.transforms[e.Index]
		v := w.velocities[e.Index]

		wantX := g.CenterX + ox - tr.X
		wantY := g.CenterY + oy - tr.Y
		if math.Hypot(wantX, wantY) < 1 {
			return true // already on slot; zero velocity is correct
		}
		// Velocity should point toward the slot.
		if dot := v.VX*wantX + v.VY*wantY; dot <= 0 {
			t.Errorf("member %d velocity %+v points away from slot", e.Index, v)
		}
		return true
	})
}

func TestBoidTargetSelection(t *testing.T) {
	w := NewWorld(8, 8, 16)
	gm := NewGroupManager()

	boid := w.Spawn()
	w.SetTransform(boid, Transform{X: 600, Y: 450})
	w.SetVelocity(boid, Velocity{})
	w.SetBoid(boid, Boid{})
	w.SetHealth(boid, Health{Current: 20, Max: 20})
	w.SetBoidCombat(boid, BoidCombat{Weapon: "blaster"})

	near := w.Spawn()
	w.SetTransform(near, Transform{X: 700, Y: 450}) // 100 units, inside aggression range
	w.SetPlayer(near, Player{Health: 100, MaxHealth: 100})

	far := w.Spawn()
	w.SetTransform(far, Transform{X: 1100, Y: 450}) // 500 units, outside
	w.SetPlayer(far, Player{Health: 100, MaxHealth: 100})

	SelectBoidTargets(w, gm, []Entity{far, near}, 100, 60)
	bc, _ := w.GetBoidCombat(boid)
	if !bc.HasTarget || bc.Target != near {
		t.Fatalf("target = %+v, want nearest in-range player", bc)
	}

	// A recent attacker takes priority over proximity.
	bc.LastAttacker = far
	bc.HasLastAttacker = true
	bc.LastAttackerTick = 90
	SelectBoidTargets(w, gm, []Entity{far, near}, 100, 60)
	if bc.Target != far {
		t.Errorf("target = %v, want the recent attacker", bc.Target)
	}

	// A grudge older than five seconds expires back to proximity.
	bc.LastAttackerTick = 640
	SelectBoidTargets(w, gm, []Entity{far, near}, 1000, 60)
	if bc.Target != near {
		t.Errorf("target = %v, want nearest player after grudge expiry", bc.Target)
	}
}
