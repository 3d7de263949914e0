package replication

import (
	"testing"

	"boidarena/internal/simcore"
)

// replica is a minimal client-side state mirror used to verify delta
// semantics.
type replica struct {
	entities map[uint32]*replicaEntity
}

type replicaEntity struct {
	gen    uint32
	x, y   float64
	vx, vy float64
	health int
}

func newReplica() *replica {
	return &replica{entities: make(map[uint32]*replicaEntity)}
}

func (r *replica) apply(t *testing.T, d StateDelta) {
	t.Helper()
	for _, rec := range d.Added {
		r.entities[rec.ID] = &replicaEntity{gen: rec.Generation, x: rec.X, y: rec.Y, health: rec.Health}
	}
	for _, rec := range d.Removed {
		delete(r.entities, rec.ID)
	}
	for _, rec := range d.Updated {
		e, ok := r.entities[rec.ID]
		if !ok {
			t.Fatalf("update for entity %d without prior add", rec.ID)
		}
		if e.gen != rec.Generation {
			t.Fatalf("update generation %d does not match replica %d", rec.Generation, e.gen)
		}
		if rec.HasPos() {
			e.x, e.y = rec.X, rec.Y
		}
		if rec.HasVel() {
			e.vx, e.vy = rec.VX, rec.VY
		}
		if rec.HasHealth() {
			e.health = rec.Health
		}
	}
}

// Delta idempotence: applying StateDelta(t) then StateDelta(t+1) yields the
// same replica as a fresh connection's full snapshot at t+1 (within the
// wire thresholds).
func TestDeltaIdempotence(t *testing.T) {
	w := simcore.NewWorld(8, 8, 64)
	is := NewInterestSet()
	vp := Viewport{CenterX: 500, CenterY: 500, HalfWidth: 400, HalfHeight: 400}

	var boids []simcore.Entity
	for i := 0; i < 10; i++ {
		boids = append(boids, spawnBoidAt(w, 300+float64(i*40), 400))
	}

	incremental := newReplica()
	incremental.apply(t, is.BuildDelta(w, "conn-inc", vp, 1))

	// World evolves: movement, damage, one death, one newcomer.
	for i, e := range boids {
		w.SetPosition(e, simcore.Position{X: 300 + float64(i*40) + 5, Y: 410})
	}
	h, _ := w.GetHealth(boids[2])
	h.Current = 7
	w.Despawn(boids[5])
	spawnBoidAt(w, 520, 430)

	incremental.apply(t, is.BuildDelta(w, "conn-inc", vp, 2))

	// A fresh connection at t+1 sees the full current state.
	fresh := newReplica()
	fresh.apply(t, is.BuildDelta(w, "conn-fresh", vp, 2))

	if len(incremental.entities) != len(fresh.entities) {
		t.Fatalf("incremental has %d entities, fresh snapshot has %d",
			len(incremental.entities), len(fresh.entities))
	}
	for id, fe := range fresh.entities {
		ie, ok := incremental.entities[id]
		if !ok {
			t.Errorf("entity %d missing from incremental replica", id)
			continue
		}
		if ie.gen != fe.gen || ie.health != fe.health {
			t.Errorf("entity %d: incremental %+v != fresh %+v", id, ie, fe)
		}
		if diff := abs(ie.x-fe.x) + abs(ie.y-fe.y); diff > 0.01 {
			t.Errorf("entity %d: position drift %.4f between replicas", id, diff)
		}
	}
}

// At most one record per entity per delta.
func TestOneRecordPerEntityPerDelta(t *testing.T) {
	w := simcore.NewWorld(8, 8, 64)
	is := NewInterestSet()
	vp := Viewport{CenterX: 500, CenterY: 500, HalfWidth: 400, HalfHeight: 400}

	for i := 0; i < 10; i++ {
		spawnBoidAt(w, 300+float64(i*30), 450)
	}
	d := is.BuildDelta(w, "conn", vp, 1)

	seen := make(map[uint32]bool)
	for _, rec := range d.Added {
		if seen[rec.ID] {
			t.Errorf("entity %d appears twice in one delta", rec.ID)
		}
		seen[rec.ID] = true
	}
	for _, rec := range d.Updated {
		if seen[rec.ID] {
			t.Errorf("entity %d both added and updated in one delta", rec.ID)
		}
		seen[rec.ID] = true
	}
}

func TestSpawnRecordCarriesArchetype(t *testing.T) {
	w := simcore.NewWorld(8, 8, 16)
	is := NewInterestSet()
	vp := Viewport{CenterX: 500, CenterY: 500, HalfWidth: 400, HalfHeight: 400}

	p := w.Spawn()
	w.SetTransform(p, simcore.Transform{X: 500, Y: 500})
	w.SetPosition(p, simcore.Position{X: 500, Y: 500})
	w.SetVelocity(p, simcore.Velocity{})
	w.SetPlayer(p, simcore.Player{Health: 80, MaxHealth: 100, Weapon: "sword"})

	spawnBoidAt(w, 520, 500)

	d := is.BuildDelta(w, "conn", vp, 1)
	kinds := make(map[string]int)
	for _, rec := range d.Added {
		kinds[rec.Kind]++
		if rec.Kind == "player" {
			if rec.Health != 80 || rec.MaxHealth != 100 || rec.Weapon != "sword" {
				t.Errorf("player spawn record = %+v", rec)
			}
		}
	}
	if kinds["player"] != 1 || kinds["boid"] != 1 {
		t.Errorf("kinds = %v, want one player and one boid", kinds)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
