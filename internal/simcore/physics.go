package simcore

import (
	"math"

	"boidarena/internal/simcore/spatial"
)

// Movement constants shared by the physics stage. Per-player thrust/turn
// rate live on the Player component so different ships could tune these.
// Damping applies to players only: a boid's velocity is fully determined by
// its steering forces each AI tick (flocking clamps it there), so damping
// it here would fight the flocking model.
const (
	playerDamping  = 0.95 // velocity retained per tick once thrust stops
	maxLinearSpeed = 420.0
)

// ArenaBounds is the rectangular playfield. Transform-space entities are
// clamped to it with a margin so nothing visually clips the wall.
type ArenaBounds struct {
	Width, Height float64
	Margin        float64
}

// StepMovement integrates every player and boid with a Transform and
// Velocity: caps speed at maxLinearSpeed, advances position, and clamps to
// the arena. Players additionally lose velocity to damping each tick; a
// boid's speed is already set and clamped by its steering pass, so it
// integrates undamped. Projectiles are skipped here entirely — they are
// sensors integrated by StepProjectiles, free to leave the arena (at which
// point they are released). Runs before collision resolution so collision
// sees this tick's proposed positions, not last tick's.
func StepMovement(w *World, bounds ArenaBounds, dt float64) {
	w.ForEach(CompTransform|CompVelocity, func(e Entity) bool {
		idx := e.Index
		if w.mask[idx]&CompProjectile != 0 {
			return true
		}
		v := w.velocities[idx]

		speed := math.Hypot(v.VX, v.VY)
		if speed > maxLinearSpeed {
			scale := maxLinearSpeed / speed
			v.VX *= scale
			v.VY *= scale
		}

		t := w.transforms[idx]
		t.X += v.VX * dt
		t.Y += v.VY * dt

		if w.mask[idx]&CompPlayer != 0 {
			v.VX *= playerDamping
			v.VY *= playerDamping
		}

		if bounds.Width > 0 {
			margin := bounds.Margin
			t.X = clamp(t.X, margin, bounds.Width-margin)
			t.Y = clamp(t.Y, margin, bounds.Height-margin)
		}

		w.transforms[idx] = t
		w.velocities[idx] = v
		return true
	})
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ResolveObstacleCollisions pushes any player or boid that has overlapped a
// static Obstacle back out along the axis of least penetration. Obstacles
// never move, so this is a one-sided correction, not a full rigid-body
// solve.
func ResolveObstacleCollisions(w *World, bodyRadius float64) {
	var obstacles []Entity
	w.ForEach(CompObstacle|CompTransform, func(e Entity) bool {
		obstacles = append(obstacles, e)
		return true
	})
	if len(obstacles) == 0 {
		return
	}

	w.ForEach(CompTransform|CompVelocity, func(e Entity) bool {
		if w.mask[e.Index]&(CompObstacle|CompProjectile) != 0 {
			return true // obstacles don't collide with themselves; projectiles are sensors
		}
		t := w.transforms[e.Index]
		for _, oe := range obstacles {
			ot := w.transforms[oe.Index]
			obs, _ := w.GetObstacle(oe)

			dx := t.X - ot.X
			dy := t.Y - ot.Y
			halfX := obs.HalfExtentX + bodyRadius
			halfY := obs.HalfExtentY + bodyRadius

			if math.Abs(dx) >= halfX || math.Abs(dy) >= halfY {
				continue
			}

			overlapX := halfX - math.Abs(dx)
			overlapY := halfY - math.Abs(dy)
			if overlapX < overlapY {
				if dx < 0 {
					t.X -= overlapX
				} else {
					t.X += overlapX
				}
			} else {
				if dy < 0 {
					t.Y -= overlapY
				} else {
					t.Y += overlapY
				}
			}
		}
		w.transforms[e.Index] = t
		return true
	})
}

// ProjectileHit describes one projectile-target contact resolved this tick.
type ProjectileHit struct {
	Projectile Entity
	Target     Entity
	Damage     int
	Owner      Entity
}

// StepProjectiles advances every projectile's lifetime timer and position,
// and reports which ones have expired — by running out their timer or by
// leaving the arena — so the caller can release or despawn them. Movement
// for projectiles is a straight-line integration of their Velocity; they
// are sensors, not physical bodies, so they never get pushed back by
// ResolveObstacleCollisions and are never damped or clamped to the arena.
func StepProjectiles(w *World, bounds ArenaBounds, dt float64) (expired []Entity) {
	w.ForEach(CompProjectile|CompTransform|CompVelocity, func(e Entity) bool {
		idx := e.Index
		t := w.transforms[idx]
		v := w.velocities[idx]
		t.X += v.VX * dt
		t.Y += v.VY * dt
		w.transforms[idx] = t
		w.positions[idx] = Position{X: t.X, Y: t.Y}

		proj := &w.projectile[idx]
		proj.LifetimeTimer--
		outOfBounds := bounds.Width > 0 &&
			(t.X < 0 || t.X > bounds.Width || t.Y < 0 || t.Y > bounds.Height)
		if proj.LifetimeTimer <= 0 || outOfBounds {
			expired = append(expired, e)
		}
		return true
	})
	return expired
}

// DetectProjectileHits finds projectile-target contacts this tick. Broad
// phase is a projectile-vs-target sweep-and-prune (emits only cross-class
// candidates); narrow phase is an exact circle
// test. Passing sweep == nil falls back to the naive all-pairs scan, which
// tests rely on for tiny worlds.
func DetectProjectileHits(w *World, sweep *spatial.ProjectileSweep, targets []Entity, targetRadius float64, projectileRadius float64) []ProjectileHit {
	var projectiles []Entity
	w.ForEach(CompProjectile|CompTransform, func(pe Entity) bool {
		projectiles = append(projectiles, pe)
		return true
	})
	if len(projectiles) == 0 || len(targets) == 0 {
		return nil
	}

	tryHit := func(hits []ProjectileHit, taken map[Entity]bool, pe, target Entity) []ProjectileHit {
		if taken[pe] {
			return hits
		}
		proj := w.projectile[pe.Index]
		if target == proj.Owner || !w.Alive(target) {
			return hits
		}
		// Boids never damage boids: a boid-owned shot passes through every
		// other boid and only connects with players.
		if w.valid(proj.Owner) && w.mask[proj.Owner.Index]&CompBoid != 0 &&
			w.mask[target.Index]&CompBoid != 0 {
			return hits
		}
		tt, err := w.GetTransform(target)
		if err != nil {
			return hits
		}
		pt := w.transforms[pe.Index]
		if math.Hypot(tt.X-pt.X, tt.Y-pt.Y) >= projectileRadius+targetRadius {
			return hits
		}
		taken[pe] = true // a projectile is a sensor: one hit, then it's gone
		return append(hits, ProjectileHit{
			Projectile: pe,
			Target:     target,
			Damage:     proj.Damage,
			Owner:      proj.Owner,
		})
	}

	var hits []ProjectileHit
	taken := make(map[Entity]bool, len(projectiles))

	if sweep == nil {
		for _, pe := range projectiles {
			for _, target := range targets {
				hits = tryHit(hits, taken, pe, target)
			}
		}
		return hits
	}

	projPos := make([][2]float32, len(projectiles))
	for i, pe := range projectiles {
		t := w.transforms[pe.Index]
		projPos[i] = [2]float32{float32(t.X), float32(t.Y)}
	}
	targetPos := make([][2]float32, len(targets))
	for i, te := range targets {
		t, err := w.GetTransform(te)
		if err != nil {
			t = Transform{X: math.Inf(1)} // parked far away, overlaps nothing
		}
		targetPos[i] = [2]float32{float32(t.X), float32(t.Y)}
	}

	radius := float32(projectileRadius+targetRadius) / 2
	for _, pair := range sweep.Pairs(projPos, targetPos, radius) {
		hits = tryHit(hits, taken, projectiles[pair.Projectile], targets[pair.Target])
	}
	return hits
}
