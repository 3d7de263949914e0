package simcore

import (
	"testing"
)

// S1: one player shoots a Scout at point-blank range; within a couple of
// physics ticks plus projectile travel the Scout is despawning, exactly one
// damage event is recorded, and the projectile is back in the pool.
func TestScenarioShootAndKillScout(t *testing.T) {
	Weapons["testgun"] = WeaponStats{MinDamage: 10, MaxDamage: 10, CooldownTicks: 15, ProjectileSpd: 900, LifetimeTicks: 30, Radius: 8}
	defer delete(Weapons, "testgun")

	inputs := newScriptedInputs()
	trace := make([][]Input, 10)
	for i := range trace {
		trace[i] = []Input{{Seq: uint32(i + 1), AimX: 1, Shooting: true}}
	}
	inputs.add("conn-p", trace)

	eng := NewEngine(testEngineConfig(), inputs, nil)
	var events []DamageEvent
	eng.SetDamageCallback(func(ev DamageEvent) { events = append(events, ev) })

	player := eng.AddPlayer("conn-p", "gunner")
	// Pin the scenario's exact geometry: player at (600,450) facing +x,
	// Scout 50 units downrange.
	eng.World.SetTransform(player, Transform{X: 600, Y: 450})
	eng.World.SetPosition(player, Position{X: 600, Y: 450})
	p, _ := eng.World.GetPlayer(player)
	p.Weapon = "testgun"
	p.Facing = 0

	scout := eng.World.Spawn()
	eng.World.SetTransform(scout, Transform{X: 650, Y: 450})
	eng.World.SetVelocity(scout, Velocity{})
	eng.World.SetPosition(scout, Position{X: 650, Y: 450})
	eng.World.SetBoid(scout, Boid{Archetype: ArchetypeScout})
	eng.World.SetHealth(scout, Health{Current: 10, Max: 10})

	killed := false
	for i := 0; i < 6 && !killed; i++ {
		eng.Step()
		killed = len(events) > 0
	}

	if len(events) != 1 {
		t.Fatalf("damage events = %d, want exactly 1", len(events))
	}
	ev := events[0]
	if ev.Target != scout || ev.Amount != 10 || !ev.Killed {
		t.Errorf("event = %+v, want lethal 10 damage on the scout", ev)
	}
	if eng.World.valid(scout) && !eng.World.IsDespawning(scout) {
		t.Error("scout neither despawning nor released")
	}
	if eng.Pool.acquired != 0 {
		t.Errorf("projectile slot still loaned out: %d", eng.Pool.acquired)
	}
}

// S2: sustained fire from many shooters saturates the pool without ever
// exceeding the cap or duplicating a (slot, generation) pair.
func TestScenarioPoolSaturation(t *testing.T) {
	cfg := testEngineConfig()
	cfg.MaxPoolSlots = 100
	cfg.InitialPool = 20
	cfg.MaxProjectile = 600
	eng := NewEngine(cfg, nil, nil)

	owner := eng.AddPlayer("conn-o", "sprayer")

	// Long-lived, slow projectiles pile up in flight.
	for burst := 0; burst < 4; burst++ {
		for i := 0; i < 50; i++ {
			eng.Pool.Acquire(Projectile{
				Damage: 1, Owner: owner, Weapon: "fists",
				LifetimeTimer: 600, Speed: 0, Radius: 4,
			}, Transform{X: 100 + float64(i*3), Y: 100 + float64(burst*40)})
		}
		eng.Step()
	}

	if eng.Pool.acquired > cfg.MaxPoolSlots {
		t.Fatalf("active pooled projectiles %d exceed cap %d", eng.Pool.acquired, cfg.MaxPoolSlots)
	}
	if eng.Pool.Fallbacks() == 0 {
		t.Error("expected some unpooled fallback spawns past the cap")
	}

	type slotGen struct {
		slot int
		gen  uint32
	}
	seen := make(map[slotGen]bool)
	eng.World.ForEach(CompProjectile, func(e Entity) bool {
		proj := eng.World.projectile[e.Index]
		if !proj.HasPoolSlot {
			return true
		}
		key := slotGen{proj.PoolSlot, proj.Generation}
		if seen[key] {
			t.Fatalf("duplicate active (slot, generation) %+v", key)
		}
		seen[key] = true
		return true
	})
}

// S5 (simulation side): a disconnecting player's entity is gone from the
// world by the tick after the disconnect, so the next network tick tells
// everyone else.
func TestScenarioDisconnectReleasesPlayer(t *testing.T) {
	pub := &recordingPublisher{}
	eng := NewEngine(testEngineConfig(), nil, pub)

	a := eng.AddPlayer("conn-a", "a")
	eng.AddPlayer("conn-b", "b")
	eng.Step()

	eng.RemovePlayer("conn-a")
	eng.Step()

	count := 0
	eng.World.ForEach(CompPlayer, func(Entity) bool { count++; return true })
	if count != 1 {
		t.Errorf("players in world = %d, want 1", count)
	}
	if eng.World.valid(a) {
		t.Error("disconnected player's slot not reclaimed")
	}
}

// A longer smoke run: full pipeline with groups, players, and combat stays
// healthy for several simulated seconds.
func TestFullPipelineSmoke(t *testing.T) {
	inputs := newScriptedInputs()
	trace := make([][]Input, 300)
	for i := range trace {
		trace[i] = []Input{{
			Seq: uint32(i + 1), MoveX: 0.5, MoveY: 0.5, AimX: 1,
			Thrust: 1, Shooting: i%20 == 0,
		}}
	}
	inputs.add("conn-p", trace)

	eng := NewEngine(testEngineConfig(), inputs, nil)
	eng.SpawnGroup(ArchetypeStandard, GroupAssault, 24, Territory{CenterX: 400, CenterY: 300, Radius: 120})
	eng.SpawnGroup(ArchetypeHeavy, GroupDefensive, 12, Territory{CenterX: 900, CenterY: 600, Radius: 120})
	eng.SpawnObstacle(600, 450, 60, 30)
	eng.AddPlayer("conn-p", "p")

	for i := 0; i < 300; i++ {
		eng.Step()
	}

	stats := eng.Stats()
	if stats.Tick != 300 {
		t.Errorf("tick = %d, want 300", stats.Tick)
	}
	if stats.Boids == 0 {
		t.Error("all boids vanished in a smoke run")
	}

	// Every boid still inside the arena with finite state.
	bounds := eng.Bounds
	eng.World.ForEach(CompBoid|CompTransform, func(e Entity) bool {
		tr := eng.World.transforms[e.Index]
		if tr.X < 0 || tr.X > bounds.Width || tr.Y < 0 || tr.Y > bounds.Height {
			t.Errorf("boid %d escaped arena at %+v", e.Index, tr)
			return false
		}
		return true
	})
}
