package spatial

import "testing"

func TestGridInsertAndQueryRadius(t *testing.T) {
	g := NewSpatialGrid(1200, 900, 100, 64)

	g.Insert(1, 150, 150)
	g.Insert(2, 160, 150)
	g.Insert(3, 900, 800)

	got := g.QueryRadius(150, 150, 50)
	found := map[uint32]bool{}
	for _, h := range got {
		found[h] = true
	}
	if !found[1] || !found[2] {
		t.Errorf("neighbors missing from query: %v", got)
	}
	if found[3] {
		t.Error("far entity returned inside a 50-unit query")
	}
}

func TestGridNoFalseNegativesAtCellBoundary(t *testing.T) {
	g := NewSpatialGrid(1200, 900, 100, 64)

	// Entity just across a cell boundary from the query center must still
	// be returned (false positives allowed, false negatives not).
	g.Insert(7, 201, 150)
	got := g.QueryRadius(199, 150, 10)
	found := false
	for _, h := range got {
		if h == 7 {
			found = true
		}
	}
	if !found {
		t.Error("false negative across cell boundary")
	}
}

func TestGridRemoveAndMove(t *testing.T) {
	g := NewSpatialGrid(1200, 900, 100, 64)

	g.Insert(1, 150, 150)
	g.Remove(1, 150, 150)
	if got := g.QueryRadius(150, 150, 50); len(got) != 0 {
		t.Errorf("removed entity still returned: %v", got)
	}

	g.Insert(2, 150, 150)
	g.Move(2, 150, 150, 450, 450)
	if got := g.QueryCell(150, 150); len(got) != 0 {
		t.Errorf("moved entity still in old cell: %v", got)
	}
	found := false
	for _, h := range g.QueryCell(450, 450) {
		if h == 2 {
			found = true
		}
	}
	if !found {
		t.Error("moved entity not in new cell")
	}
}

func TestGridQueryRectangle(t *testing.T) {
	g := NewSpatialGrid(2000, 1500, 100, 128)
	g.Insert(1, 100, 100)
	g.Insert(2, 900, 700)
	g.Insert(3, 1900, 1400)

	got := g.QueryRectangle(-100, -100, 1000, 800)
	found := map[uint32]bool{}
	for _, h := range got {
		found[h] = true
	}
	if !found[1] || !found[2] {
		t.Errorf("in-rectangle entities missing: %v", got)
	}
	if found[3] {
		t.Error("entity far outside the rectangle returned")
	}
}

func TestGridRebuild(t *testing.T) {
	g := NewSpatialGrid(1200, 900, 100, 64)
	g.Insert(1, 100, 100)
	g.Insert(2, 200, 200)

	g.Rebuild([]GridEntry{{Handle: 5, X: 500, Y: 500}})
	if stats := g.Stats(); stats.TotalEntities != 1 {
		t.Errorf("entities after rebuild = %d, want 1", stats.TotalEntities)
	}
	if got := g.QueryCell(500, 500); len(got) != 1 || got[0] != 5 {
		t.Errorf("rebuilt entity missing: %v", got)
	}
}

func TestGridClearKeepsCapacity(t *testing.T) {
	g := NewSpatialGrid(1200, 900, 100, 64)
	for i := uint32(0); i < 32; i++ {
		g.Insert(i, float64(i*30), float64(i*20))
	}
	g.Clear()
	if stats := g.Stats(); stats.TotalEntities != 0 {
		t.Errorf("entities after clear = %d", stats.TotalEntities)
	}
}

func TestProjectileSweepCrossClassOnly(t *testing.T) {
	s := NewProjectileSweep(16)

	// Two overlapping projectiles, two overlapping targets, one genuine
	// projectile/target overlap between them.
	projectiles := [][2]float32{{100, 100}, {105, 100}, {500, 500}}
	targets := [][2]float32{{110, 100}, {112, 100}, {900, 900}}

	pairs := s.Pairs(projectiles, targets, 10)

	for _, p := range pairs {
		if p.Projectile < 0 || p.Projectile >= len(projectiles) ||
			p.Target < 0 || p.Target >= len(targets) {
			t.Fatalf("pair indexes out of range: %+v", p)
		}
	}

	// Projectiles 0 and 1 overlap targets 0 and 1; projectile 2 and target
	// 2 overlap nothing.
	want := map[SweepPair]bool{
		{Projectile: 0, Target: 0}: true,
		{Projectile: 0, Target: 1}: true,
		{Projectile: 1, Target: 0}: true,
		{Projectile: 1, Target: 1}: true,
	}
	got := map[SweepPair]bool{}
	for _, p := range pairs {
		if got[p] {
			t.Errorf("duplicate pair %+v", p)
		}
		got[p] = true
	}
	for p := range want {
		if !got[p] {
			t.Errorf("missing pair %+v", p)
		}
	}
	for p := range got {
		if !want[p] {
			t.Errorf("unexpected pair %+v", p)
		}
	}
}

func TestProjectileSweepYPrune(t *testing.T) {
	s := NewProjectileSweep(8)

	// Same x, far apart in y: the x-sweep alone would pair them, the
	// y-prune must not.
	pairs := s.Pairs([][2]float32{{100, 100}}, [][2]float32{{100, 400}}, 10)
	if len(pairs) != 0 {
		t.Errorf("y-distant pair not pruned: %+v", pairs)
	}
}

func TestProjectileSweepTemporalReuse(t *testing.T) {
	s := NewProjectileSweep(8)

	projectiles := [][2]float32{{100, 100}}
	targets := [][2]float32{{105, 100}}
	for step := 0; step < 5; step++ {
		projectiles[0][0] += 2 // drift across the target, reusing buffers
		pairs := s.Pairs(projectiles, targets, 10)
		if len(pairs) != 1 {
			t.Errorf("step %d: pairs = %v, want the single overlap", step, pairs)
		}
	}

	// Fly far past: the pair disappears.
	projectiles[0][0] = 300
	if pairs := s.Pairs(projectiles, targets, 10); len(pairs) != 0 {
		t.Errorf("distant bodies still paired: %v", pairs)
	}
}

func TestGridClampsOutOfBounds(t *testing.T) {
	g := NewSpatialGrid(1200, 900, 100, 64)
	g.Insert(9, -50, 5000) // clamped into the edge cells, never panics
	got := g.QueryRadius(0, 899, 200)
	found := false
	for _, h := range got {
		if h == 9 {
			found = true
		}
	}
	if !found {
		t.Error("out-of-bounds insert not clamped into the grid")
	}
}

