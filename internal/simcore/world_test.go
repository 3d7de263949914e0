package simcore

import "testing"

func TestSpawnAndGet(t *testing.T) {
	w := NewWorld(4, 4, 4)

	e := w.Spawn()
	w.SetPosition(e, Position{X: 10, Y: 20})
	w.SetHealth(e, Health{Current: 30, Max: 30})

	pos, err := w.GetPosition(e)
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if pos.X != 10 || pos.Y != 20 {
		t.Errorf("position = %+v, want {10 20}", pos)
	}

	if _, err := w.GetVelocity(e); err != ErrMissingComponent {
		t.Errorf("GetVelocity on entity without one = %v, want ErrMissingComponent", err)
	}
}

func TestDespawnIdempotent(t *testing.T) {
	w := NewWorld(4, 4, 4)
	e := w.Spawn()
	w.SetPosition(e, Position{})

	// Any number of Despawn calls, including on stale and missing handles,
	// must be silent no-ops after the first.
	for i := 0; i < 5; i++ {
		w.Despawn(e)
	}
	if !w.IsDespawning(e) {
		t.Fatal("entity not marked despawning")
	}

	released := w.ReleaseDespawned()
	if len(released) != 1 || released[0] != e {
		t.Fatalf("released = %v, want [%v]", released, e)
	}

	// Stale handle now: every operation is a no-op, never a panic.
	w.Despawn(e)
	w.SetPosition(e, Position{X: 99})
	if _, err := w.GetPosition(e); err != ErrStaleEntity {
		t.Errorf("GetPosition on stale handle = %v, want ErrStaleEntity", err)
	}
	w.Despawn(Entity{Index: 9999, Generation: 3})
}

func TestGenerationInvalidatesReusedSlot(t *testing.T) {
	w := NewWorld(4, 4, 4)
	first := w.Spawn()
	w.SetPosition(first, Position{X: 1})
	w.Despawn(first)
	w.ReleaseDespawned()

	second := w.Spawn()
	if second.Index != first.Index {
		t.Fatalf("slot not reused: first %d, second %d", first.Index, second.Index)
	}
	if second.Generation == first.Generation {
		t.Fatal("generation not bumped on reuse")
	}
	w.SetPosition(second, Position{X: 2})

	if _, err := w.GetPosition(first); err != ErrStaleEntity {
		t.Errorf("stale handle resolved to reused slot: err = %v", err)
	}
	pos, err := w.GetPosition(second)
	if err != nil || pos.X != 2 {
		t.Errorf("fresh handle: pos = %+v, err = %v", pos, err)
	}
}

func TestForEachSkipsDespawning(t *testing.T) {
	w := NewWorld(8, 8, 8)
	var live, dying Entity
	live = w.Spawn()
	w.SetPosition(live, Position{})
	dying = w.Spawn()
	w.SetPosition(dying, Position{})
	w.Despawn(dying)

	var seen []Entity
	w.ForEach(CompPosition, func(e Entity) bool {
		seen = append(seen, e)
		return true
	})
	if len(seen) != 1 || seen[0] != live {
		t.Errorf("ForEach saw %v, want only %v", seen, live)
	}
}

func TestCommandBufferDeferred(t *testing.T) {
	w := NewWorld(8, 8, 8)
	e := w.Spawn()
	w.SetPosition(e, Position{})

	spawned := Entity{}
	w.ForEach(CompPosition, func(Entity) bool {
		w.EnqueueCommand(func(w *World) {
			spawned = w.Spawn()
			w.SetPosition(spawned, Position{X: 7})
		})
		return true
	})

	if !spawned.IsZero() {
		t.Fatal("command ran before FlushCommands")
	}
	w.FlushCommands()
	if spawned.IsZero() {
		t.Fatal("command did not run on FlushCommands")
	}
	if pos, err := w.GetPosition(spawned); err != nil || pos.X != 7 {
		t.Errorf("deferred spawn: pos = %+v, err = %v", pos, err)
	}
}
