package spatial

import "testing"

func TestRallyFieldSteersTowardGoal(t *testing.T) {
	set := NewRallyFieldSet(1000, 1000, 50)
	field := set.Toward("g1", 800, 500)

	// From the left of the goal, steering must have a +x component.
	dx, dy := field.Steer(200, 500)
	if dx <= 0 {
		t.Errorf("steer from west = (%v, %v), want +x", dx, dy)
	}
	// From below, a -y component.
	dx, dy = field.Steer(800, 900)
	if dy >= 0 {
		t.Errorf("steer from south = (%v, %v), want -y", dx, dy)
	}
	// At the goal: no pull.
	if dx, dy = field.Steer(800, 500); dx != 0 || dy != 0 {
		t.Errorf("steer at goal = (%v, %v), want rest", dx, dy)
	}
}

func TestRallyFieldRoutesAroundObstacle(t *testing.T) {
	set := NewRallyFieldSet(1000, 1000, 50)
	// A tall wall between start and goal with a gap at the bottom.
	set.AddObstacle(500, 350, 25, 350)

	field := set.Toward("g1", 800, 500)

	// The far side of the wall stays reachable through the gap.
	if field.CostAt(200, 500) == unreachableCost {
		t.Fatal("cell behind the wall unreachable despite the gap")
	}
	// The direct-line cost must exceed the unobstructed straight distance,
	// proving the path detours instead of passing through the wall.
	straightCells := float32((800 - 200) / 50)
	if got := field.CostAt(200, 500); got <= straightCells {
		t.Errorf("cost %v through the wall, want a detour > %v", got, straightCells)
	}
	// Steering from inside the stamped wall gives no pull.
	if dx, dy := field.Steer(500, 350); dx != 0 || dy != 0 {
		t.Errorf("steer inside obstacle = (%v, %v), want rest", dx, dy)
	}
}

func TestRallyFieldSetLifecycle(t *testing.T) {
	set := NewRallyFieldSet(1000, 1000, 50)

	a := set.Toward("g1", 100, 100)
	if set.Toward("g1", 900, 900) != a {
		t.Error("same key returned a different field")
	}
	if set.Len() != 1 {
		t.Errorf("len = %d, want 1", set.Len())
	}

	set.Release("g1")
	if set.Len() != 0 {
		t.Errorf("len after release = %d, want 0", set.Len())
	}
	// Recreated under the same key, the field aims at the new goal.
	b := set.Toward("g1", 900, 900)
	if b == a {
		t.Error("released field was not rebuilt")
	}
	if dx, _ := b.Steer(100, 900); dx <= 0 {
		t.Errorf("rebuilt field steers dx = %v, want +x toward the new goal", dx)
	}
}
