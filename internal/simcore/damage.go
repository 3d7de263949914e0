package simcore

import "math"

// DamageEvent records one application of damage, for the event log and for
// kill/death bookkeeping.
type DamageEvent struct {
	Target   Entity
	Attacker Entity
	Amount   int
	Killed   bool
	Tick     uint64
	X, Y     float64
}

// ApplyDamage applies amount to target's health (Player.Health or a Boid's
// Health component). A player inside dodge i-frames absorbs the hit.
// Returns the event describing what happened, or (DamageEvent{}, false) if
// the damage was fully absorbed or the target no longer exists.
func ApplyDamage(w *World, target, attacker Entity, amount int, tick uint64) (DamageEvent, bool) {
	if !w.Alive(target) {
		return DamageEvent{}, false
	}

	var x, y float64
	if t, err := w.GetTransform(target); err == nil {
		x, y = t.X, t.Y
	}

	if p, err := w.GetPlayer(target); err == nil {
		if p.Combat.IsInvulnerable() {
			return DamageEvent{}, false
		}
		p.Health -= amount
		killed := p.Health <= 0
		if killed {
			p.Health = 0
			p.Deaths++
			if ap, err := w.GetPlayer(attacker); err == nil && attacker != target {
				ap.Kills++
			}
		}
		p.LastDamageAt = tick
		return DamageEvent{Target: target, Attacker: attacker, Amount: amount, Killed: killed, Tick: tick, X: x, Y: y}, true
	}

	if h, err := w.GetHealth(target); err == nil {
		h.Current -= amount
		killed := h.Current <= 0
		if killed {
			h.Current = 0
			if ap, err := w.GetPlayer(attacker); err == nil {
				ap.Kills++
			}
		}
		if bc, err := w.GetBoidCombat(target); err == nil {
			bc.LastAttacker = attacker
			bc.HasLastAttacker = true
			bc.LastAttackerTick = tick
		}
		return DamageEvent{Target: target, Attacker: attacker, Amount: amount, Killed: killed, Tick: tick, X: x, Y: y}, true
	}

	return DamageEvent{}, false
}

// ResolveProjectileHits applies every hit's damage and despawns the spent
// projectile (returning pooled ones to the pool). A player attacker's combo
// chain scales the damage; the victim takes knockback per the weapon's
// animation config. Dead targets are marked Despawning so the next tick
// boundary releases them.
func ResolveProjectileHits(w *World, pool *ProjectilePool, hits []ProjectileHit, tick uint64) []DamageEvent {
	var events []DamageEvent
	for _, hit := range hits {
		amount := hit.Damage
		weapon := ""
		if proj, err := w.GetProjectile(hit.Projectile); err == nil {
			weapon = proj.Weapon
		}

		if ap, err := w.GetPlayer(hit.Owner); err == nil {
			if combo, ok := DefaultComboDefinitions()[ap.Weapon]; ok {
				scale := ap.Combat.RegisterHit(tick, combo)
				amount = int(float64(amount) * scale)
			}
		}

		ev, applied := ApplyDamage(w, hit.Target, hit.Owner, amount, tick)
		if applied {
			applyKnockback(w, hit.Projectile, hit.Target, weapon)
			events = append(events, ev)
			if ev.Killed {
				w.Despawn(hit.Target)
			}
		}
		pool.Release(hit.Projectile)
		w.Despawn(hit.Projectile)
	}
	return events
}

// applyKnockback shoves the victim along the projectile's travel direction
// by the weapon's configured knockback force.
func applyKnockback(w *World, projectile, target Entity, weapon string) {
	anim, ok := WeaponAnimations[weapon]
	if !ok || anim.KnockbackForce == 0 {
		return
	}
	pv, err := w.GetVelocity(projectile)
	if err != nil {
		return
	}
	mag := math.Hypot(pv.VX, pv.VY)
	if mag == 0 {
		return
	}
	tv, err := w.GetVelocity(target)
	if err != nil {
		return
	}
	tv.VX += pv.VX / mag * anim.KnockbackForce
	tv.VY += pv.VY / mag * anim.KnockbackForce
	w.SetVelocity(target, tv)
}
