package replication

import (
	"testing"

	"boidarena/internal/simcore"
)

func spawnBoidAt(w *simcore.World, x, y float64) simcore.Entity {
	e := w.Spawn()
	w.SetTransform(e, simcore.Transform{X: x, Y: y})
	w.SetVelocity(e, simcore.Velocity{})
	w.SetPosition(e, simcore.Position{X: x, Y: y})
	w.SetBoid(e, simcore.Boid{})
	w.SetHealth(e, simcore.Health{Current: 20, Max: 20})
	return e
}

// S3: with a large arena and boids scattered everywhere, a connection's
// delta references only entities inside its viewport (± margin).
func TestInterestCull(t *testing.T) {
	w := simcore.NewWorld(8, 8, 1024)
	is := NewInterestSet()

	// Player at (100,100), 800x600 viewport plus 100-unit margin:
	// interest window x ∈ [-400, 600], y ∈ [-300, 500].
	vp := Viewport{CenterX: 100, CenterY: 100, HalfWidth: 500, HalfHeight: 400}

	inside := map[uint32]bool{}
	for i := 0; i < 40; i++ {
		x := float64(i * 50) // 0..1950
		y := float64(i * 37) // 0..1443
		e := spawnBoidAt(w, x, y)
		if vp.Contains(x, y) {
			inside[e.Index] = true
		}
	}
	if len(inside) == 0 || len(inside) == 40 {
		t.Fatalf("bad fixture: %d/40 inside viewport", len(inside))
	}

	delta := is.BuildDelta(w, "conn", vp, 1)

	if len(delta.Added) != len(inside) {
		t.Errorf("added = %d, want %d", len(delta.Added), len(inside))
	}
	for _, rec := range delta.Added {
		if !inside[rec.ID] {
			t.Errorf("delta references entity %d outside the viewport", rec.ID)
		}
	}
	if len(delta.Removed) != 0 || len(delta.Updated) != 0 {
		t.Errorf("first delta should only add: %+v", delta)
	}
}

// An entity never appears in updated without a prior added in the stream,
// and leaving the viewport emits exactly one removal.
func TestAddUpdateRemoveLifecycle(t *testing.T) {
	w := simcore.NewWorld(8, 8, 16)
	is := NewInterestSet()
	vp := Viewport{CenterX: 500, CenterY: 500, HalfWidth: 200, HalfHeight: 200}

	e := spawnBoidAt(w, 500, 500)

	d1 := is.BuildDelta(w, "conn", vp, 1)
	if len(d1.Added) != 1 || d1.Added[0].ID != e.Index {
		t.Fatalf("tick 1: added = %+v, want the boid", d1.Added)
	}

	// Move a little: an update, not a re-add.
	w.SetPosition(e, simcore.Position{X: 510, Y: 500})
	d2 := is.BuildDelta(w, "conn", vp, 2)
	if len(d2.Added) != 0 {
		t.Errorf("tick 2: re-added a known entity")
	}
	if len(d2.Updated) != 1 || !d2.Updated[0].HasPos() {
		t.Fatalf("tick 2: updated = %+v, want one position update", d2.Updated)
	}

	// Leave the viewport: one removal, then silence.
	w.SetPosition(e, simcore.Position{X: 5000, Y: 5000})
	d3 := is.BuildDelta(w, "conn", vp, 3)
	if len(d3.Removed) != 1 || d3.Removed[0].ID != e.Index {
		t.Fatalf("tick 3: removed = %+v, want the boid", d3.Removed)
	}
	d4 := is.BuildDelta(w, "conn", vp, 4)
	if len(d4.Added)+len(d4.Removed)+len(d4.Updated) != 0 {
		t.Errorf("tick 4: delta not empty: %+v", d4)
	}
}

// S5 (replication side): a despawned entity is removed from the stream and
// never referenced again.
func TestDespawnEmitsRemoval(t *testing.T) {
	w := simcore.NewWorld(8, 8, 16)
	is := NewInterestSet()
	vp := Viewport{CenterX: 500, CenterY: 500, HalfWidth: 300, HalfHeight: 300}

	e := spawnBoidAt(w, 500, 500)
	is.BuildDelta(w, "conn", vp, 1)

	w.Despawn(e)
	d2 := is.BuildDelta(w, "conn", vp, 2)
	if len(d2.Removed) != 1 || d2.Removed[0].ID != e.Index || d2.Removed[0].Generation != e.Generation {
		t.Fatalf("removed = %+v, want (%d, %d)", d2.Removed, e.Index, e.Generation)
	}
	for _, u := range d2.Updated {
		if u.ID == e.Index {
			t.Error("despawned entity still updated in the same delta")
		}
	}

	w.ReleaseDespawned()
	d3 := is.BuildDelta(w, "conn", vp, 3)
	for _, u := range d3.Updated {
		if u.ID == e.Index {
			t.Error("released entity referenced after removal")
		}
	}
}

// Sub-threshold movement does not generate update records.
func TestDirtyThresholds(t *testing.T) {
	w := simcore.NewWorld(8, 8, 16)
	is := NewInterestSet()
	vp := Viewport{CenterX: 500, CenterY: 500, HalfWidth: 300, HalfHeight: 300}

	e := spawnBoidAt(w, 500, 500)
	is.BuildDelta(w, "conn", vp, 1)

	w.SetPosition(e, simcore.Position{X: 500.0005, Y: 500})
	d := is.BuildDelta(w, "conn", vp, 2)
	if len(d.Updated) != 0 {
		t.Errorf("sub-threshold move produced an update: %+v", d.Updated)
	}

	// Health changes always replicate.
	h, _ := w.GetHealth(e)
	h.Current--
	d = is.BuildDelta(w, "conn", vp, 3)
	if len(d.Updated) != 1 || !d.Updated[0].HasHealth() {
		t.Errorf("health change not replicated: %+v", d.Updated)
	}
}

// Per-connection isolation: one connection's stream state never leaks into
// another's.
func TestPerConnectionState(t *testing.T) {
	w := simcore.NewWorld(8, 8, 16)
	is := NewInterestSet()
	vp := Viewport{CenterX: 500, CenterY: 500, HalfWidth: 300, HalfHeight: 300}

	spawnBoidAt(w, 500, 500)

	d1 := is.BuildDelta(w, "conn-a", vp, 1)
	if len(d1.Added) != 1 {
		t.Fatal("conn-a first delta missing spawn")
	}
	// A new connection still gets the full spawn.
	d2 := is.BuildDelta(w, "conn-b", vp, 1)
	if len(d2.Added) != 1 {
		t.Error("conn-b first delta missing spawn")
	}

	is.Forget("conn-a")
	d3 := is.BuildDelta(w, "conn-a", vp, 2)
	if len(d3.Added) != 1 {
		t.Error("forgotten connection did not restart from a full spawn")
	}
}
