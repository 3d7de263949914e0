package simcore

import "testing"

func TestApplyDamageToBoid(t *testing.T) {
	w := NewWorld(4, 4, 4)
	attacker := w.Spawn()
	w.SetTransform(attacker, Transform{})
	w.SetPlayer(attacker, Player{ConnID: "c", Health: 100, MaxHealth: 100})

	boid := w.Spawn()
	w.SetTransform(boid, Transform{X: 50})
	w.SetBoid(boid, Boid{})
	w.SetHealth(boid, Health{Current: 20, Max: 20})
	w.SetBoidCombat(boid, BoidCombat{Weapon: "blaster"})

	ev, ok := ApplyDamage(w, boid, attacker, 8, 42)
	if !ok {
		t.Fatal("damage not applied")
	}
	if ev.Killed {
		t.Error("8 damage on 20 HP reported a kill")
	}
	h, _ := w.GetHealth(boid)
	if h.Current != 12 {
		t.Errorf("health = %d, want 12", h.Current)
	}

	// Revenge memory: the boid now remembers its attacker.
	bc, _ := w.GetBoidCombat(boid)
	if !bc.HasLastAttacker || bc.LastAttacker != attacker || bc.LastAttackerTick != 42 {
		t.Errorf("last attacker not recorded: %+v", bc)
	}

	ev, _ = ApplyDamage(w, boid, attacker, 12, 43)
	if !ev.Killed {
		t.Error("lethal damage not reported as kill")
	}
	p, _ := w.GetPlayer(attacker)
	if p.Kills != 1 {
		t.Errorf("attacker kills = %d, want 1", p.Kills)
	}
}

func TestDodgeInvulnerabilityAbsorbsDamage(t *testing.T) {
	w := NewWorld(4, 4, 4)
	victim := w.Spawn()
	w.SetTransform(victim, Transform{})
	w.SetPlayer(victim, Player{Health: 100, MaxHealth: 100, Combat: CombatState{Stamina: MaxStamina}})

	p, _ := w.GetPlayer(victim)
	p.Combat.StartDodge(0)

	if _, ok := ApplyDamage(w, victim, Entity{}, 50, 1); ok {
		t.Error("damage applied through dodge i-frames")
	}
	if p.Health != 100 {
		t.Errorf("health = %d, want 100", p.Health)
	}
}

// Damage accounting: for any projectile, at most one DamageEvent, health
// decreases by exactly the projectile damage, and the projectile is
// released in the same tick as the hit.
func TestResolveProjectileHitsAccounting(t *testing.T) {
	w := NewWorld(4, 16, 4)
	pool := NewProjectilePool(w, 8, 2)

	shooter := w.Spawn()
	w.SetTransform(shooter, Transform{})
	w.SetPlayer(shooter, Player{ConnID: "s", Weapon: "bow", Health: 100, MaxHealth: 100})

	boid := w.Spawn()
	w.SetTransform(boid, Transform{X: 50})
	w.SetBoid(boid, Boid{})
	w.SetHealth(boid, Health{Current: 30, Max: 30})

	proj := pool.Acquire(Projectile{Damage: 10, Owner: shooter, Weapon: "bow", LifetimeTimer: 60, Speed: 0}, Transform{X: 48})

	hits := []ProjectileHit{{Projectile: proj, Target: boid, Damage: 10, Owner: shooter}}
	events := ResolveProjectileHits(w, pool, hits, 7)

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	h, _ := w.GetHealth(boid)
	if h.Current != 20 {
		t.Errorf("health = %d, want 20 (exactly the projectile damage)", h.Current)
	}
	if !w.IsDespawning(proj) {
		t.Error("projectile not despawning in the hit tick")
	}
	if pool.acquired != 0 {
		t.Error("projectile slot not released in the hit tick")
	}
}

func TestLethalHitMarksTargetDespawning(t *testing.T) {
	w := NewWorld(4, 16, 4)
	pool := NewProjectilePool(w, 8, 2)

	shooter := w.Spawn()
	w.SetTransform(shooter, Transform{})
	w.SetPlayer(shooter, Player{ConnID: "s", Health: 100, MaxHealth: 100})

	scout := w.Spawn()
	w.SetTransform(scout, Transform{X: 40})
	w.SetBoid(scout, Boid{Archetype: ArchetypeScout})
	w.SetHealth(scout, Health{Current: 10, Max: 10})

	proj := pool.Acquire(Projectile{Damage: 10, Owner: shooter, LifetimeTimer: 60, Speed: 0}, Transform{X: 38})
	events := ResolveProjectileHits(w, pool,
		[]ProjectileHit{{Projectile: proj, Target: scout, Damage: 10, Owner: shooter}}, 1)

	if len(events) != 1 || !events[0].Killed {
		t.Fatalf("events = %+v, want one kill", events)
	}
	if !w.IsDespawning(scout) {
		t.Error("dead scout not marked despawning")
	}
}
