package simcore

import (
	"math"

	"boidarena/internal/simcore/spatial"
)

// Flocking weights and radii. Separation dominates at short range so boids
// never visually overlap; alignment and cohesion operate at a wider radius
// to keep the group moving as one body.
const (
	separationRadius = 40.0
	neighborRadius   = 160.0
	maxSteerForce    = 250.0
	maxBoidSpeed     = 260.0

	weightSeparation    = 1.6
	weightAlignment     = 1.0
	weightCohesion      = 0.9
	weightObstacleAvoid = 2.0
	weightDynamicAvoid  = 1.8
	weightFormation     = 1.2
	weightBoundary      = 2.2

	obstacleAvoidRadius = 80.0
	obstaclePredictTime = 0.5 // seconds of look-ahead when dodging obstacles
	dynamicAvoidRadius  = 120.0
	approachThreshold   = 60.0 // closest-approach distance that triggers an escape
	boundaryLookAhead   = 0.4  // seconds of look-ahead for wall avoidance
)

// steer2D is a 2D force accumulator. Each contribution is clipped to
// maxSteerForce before its weight is applied, so no single rule can dominate
// a tick; clipped() then caps the weighted sum.
type steer2D struct{ x, y float64 }

func (s *steer2D) add(x, y, weight float64) {
	if mag := math.Hypot(x, y); mag > maxSteerForce {
		x, y = x*maxSteerForce/mag, y*maxSteerForce/mag
	}
	s.x += x * weight
	s.y += y * weight
}

func (s steer2D) clipped() (float64, float64) {
	mag := math.Hypot(s.x, s.y)
	if mag <= maxSteerForce || mag == 0 {
		return s.x, s.y
	}
	scale := maxSteerForce / mag
	return s.x * scale, s.y * scale
}

// StepFlocking computes and applies steering forces for every live boid.
// grid is a spatial index already populated with this tick's boid
// positions; players are the live player entities, used both for dynamic
// avoidance and as what far-LOD tiering is measured against.
//
// Groups in Far/Distant LOD skip the per-neighbor work entirely: members
// are steered straight toward their formation slot, which always leaves
// them with a defined velocity regardless of when the tier switched.
func StepFlocking(w *World, groups *GroupManager, grid *spatial.SpatialGrid, rally *spatial.RallyFieldSet, players []Entity, bounds ArenaBounds, dt float64, tick uint64, physicsHz int) {
	w.ForEach(CompBoid|CompTransform|CompVelocity, func(e Entity) bool {
		boid := w.boids[e.Index]
		t := w.transforms[e.Index]
		v := w.velocities[e.Index]

		group, hasGroup := groups.Get(boid.GroupRef)

		if hasGroup {
			if group.LOD >= LODFar {
				w.velocities[e.Index] = steerTowardSlot(w, e, group, t)
				return true
			}
			// Medium tier thinks on its LOD interval; between re-evaluations
			// the boid coasts on its last computed velocity.
			if interval := LODInterval(group.LOD, physicsHz); interval > 1 && tick%uint64(interval) != 0 {
				return true
			}
		}

		var s steer2D

		neighborIDs := grid.QueryRadius(t.X, t.Y, neighborRadius)
		sepX, sepY, alignX, alignY, cohX, cohY := 0.0, 0.0, 0.0, 0.0, 0.0, 0.0
		count := 0
		for _, nid := range neighborIDs {
			if nid == e.Index || int(nid) >= len(w.mask) {
				continue
			}
			m := w.mask[nid]
			if m&CompDespawning != 0 || m&CompBoid == 0 {
				continue
			}
			ot := w.transforms[nid]
			ov := w.velocities[nid]
			dx, dy := t.X-ot.X, t.Y-ot.Y
			dist := math.Hypot(dx, dy)
			if dist == 0 {
				continue
			}
			if dist < separationRadius {
				sepX += dx / (dist * dist)
				sepY += dy / (dist * dist)
			}
			alignX += ov.VX
			alignY += ov.VY
			cohX += ot.X
			cohY += ot.Y
			count++
		}

		if count > 0 {
			s.add(sepX, sepY, weightSeparation)
			s.add(alignX/float64(count)-v.VX, alignY/float64(count)-v.VY, weightAlignment)
			s.add(cohX/float64(count)-t.X, cohY/float64(count)-t.Y, weightCohesion)
		}

		addObstacleAvoidance(w, t, v, &s)
		addDynamicAvoidance(w, t, v, players, &s)
		addBoundaryForce(t, v, bounds, &s)

		if hasGroup {
			applyGroupBehavior(w, e, group, rally, t, &s)
		}

		fx, fy := s.clipped()
		v.VX += fx * dt
		v.VY += fy * dt

		maxSpeed := maxBoidSpeed
		if hasGroup && group.Behavior == BehaviorRetreating {
			maxSpeed *= retreatSpeedMul
		}
		speed := math.Hypot(v.VX, v.VY)
		if speed > maxSpeed {
			scale := maxSpeed / speed
			v.VX *= scale
			v.VY *= scale
		}

		w.velocities[e.Index] = v
		return true
	})
}

// steerTowardSlot is the far-LOD member path: head for the formation slot
// at cruise speed, no per-neighbor work.
func steerTowardSlot(w *World, e Entity, g *BoidGroup, t Transform) Velocity {
	slot := 0
	if m, err := w.GetBoidGroupMember(e); err == nil {
		slot = m.FormationSlot
	}
	ox, oy := FormationSlotOffset(g.Formation, slot, g.MemberCount)
	dx := g.CenterX + ox - t.X
	dy := g.CenterY + oy - t.Y
	dist := math.Hypot(dx, dy)
	if dist < 1 {
		return Velocity{}
	}
	cruise := maxBoidSpeed * 0.8
	return Velocity{VX: dx / dist * cruise, VY: dy / dist * cruise}
}

// addObstacleAvoidance predicts where the boid will be shortly and pushes
// it away from any obstacle AABB that prediction lands near, scaling the
// force quadratically as the predicted point closes in.
func addObstacleAvoidance(w *World, t Transform, v Velocity, s *steer2D) {
	futureX := t.X + v.VX*obstaclePredictTime
	futureY := t.Y + v.VY*obstaclePredictTime

	w.ForEach(CompObstacle|CompTransform, func(oe Entity) bool {
		ot := w.transforms[oe.Index]
		obs := w.obstacles[oe.Index]

		cx := clamp(futureX, ot.X-obs.HalfExtentX, ot.X+obs.HalfExtentX)
		cy := clamp(futureY, ot.Y-obs.HalfExtentY, ot.Y+obs.HalfExtentY)
		dx, dy := futureX-cx, futureY-cy
		dist := math.Hypot(dx, dy)
		if dist >= obstacleAvoidRadius {
			return true
		}
		if dist == 0 {
			// Predicted point is inside the box; push back the way we came.
			dx, dy = t.X-ot.X, t.Y-ot.Y
			dist = math.Hypot(dx, dy)
			if dist == 0 {
				return true
			}
		}
		closeness := 1 - dist/obstacleAvoidRadius
		s.add(dx/dist*closeness*closeness*maxSteerForce, dy/dist*closeness*closeness*maxSteerForce, weightObstacleAvoid)
		return true
	})
}

// addDynamicAvoidance steers around moving players: from relative velocity,
// compute the time to closest approach, and if the paths pass within the
// threshold, apply a perpendicular escape force.
func addDynamicAvoidance(w *World, t Transform, v Velocity, players []Entity, s *steer2D) {
	for _, pe := range players {
		if !w.Alive(pe) {
			continue
		}
		pt, err := w.GetTransform(pe)
		if err != nil {
			continue
		}
		pv, _ := w.GetVelocity(pe)

		relX, relY := pt.X-t.X, pt.Y-t.Y
		if math.Hypot(relX, relY) > dynamicAvoidRadius {
			continue
		}
		relVX, relVY := pv.VX-v.VX, pv.VY-v.VY
		relSpeedSq := relVX*relVX + relVY*relVY
		if relSpeedSq < 1e-6 {
			continue
		}
		tca := -(relX*relVX + relY*relVY) / relSpeedSq
		if tca <= 0 {
			continue
		}
		closestX := relX + relVX*tca
		closestY := relY + relVY*tca
		if math.Hypot(closestX, closestY) >= approachThreshold {
			continue
		}
		// Escape perpendicular to the approach line, away from the player.
		escX, escY := -relY, relX
		if escX*closestX+escY*closestY < 0 {
			escX, escY = -escX, -escY
		}
		mag := math.Hypot(escX, escY)
		if mag == 0 {
			continue
		}
		s.add(escX/mag*maxSteerForce, escY/mag*maxSteerForce, weightDynamicAvoid)
	}
}

// addBoundaryForce pushes boids off the arena walls before they hit them,
// with look-ahead proportional to speed so fast boids turn earlier.
func addBoundaryForce(t Transform, v Velocity, bounds ArenaBounds, s *steer2D) {
	if bounds.Width <= 0 {
		return
	}
	margin := bounds.Margin * 3
	lookX := t.X + v.VX*boundaryLookAhead
	lookY := t.Y + v.VY*boundaryLookAhead

	if lookX < margin {
		s.add((margin-lookX)/margin*maxSteerForce, 0, weightBoundary)
	} else if lookX > bounds.Width-margin {
		s.add(-(lookX-(bounds.Width-margin))/margin*maxSteerForce, 0, weightBoundary)
	}
	if lookY < margin {
		s.add(0, (margin-lookY)/margin*maxSteerForce, weightBoundary)
	} else if lookY > bounds.Height-margin {
		s.add(0, -(lookY-(bounds.Height-margin))/margin*maxSteerForce, weightBoundary)
	}
}

// applyGroupBehavior adds the group-state-specific rally/retreat/hold force
// plus the drift toward this member's formation slot.
func applyGroupBehavior(w *World, e Entity, g *BoidGroup, rally *spatial.RallyFieldSet, t Transform, s *steer2D) {
	switch g.Behavior {
	case BehaviorPatrolling:
		if !g.Territory.Contains(t.X, t.Y) {
			s.add(g.Territory.CenterX-t.X, g.Territory.CenterY-t.Y, 0.6)
		}
	case BehaviorEngaging, BehaviorRetreating:
		if g.FlowFieldKey != "" {
			field := rally.Toward(g.FlowFieldKey, g.RallyX, g.RallyY)
			fx, fy := field.Steer(t.X, t.Y)
			s.add(fx*maxSteerForce, fy*maxSteerForce, 2.0)
		} else {
			s.add(g.RallyX-t.X, g.RallyY-t.Y, 1.0)
		}
	case BehaviorDefending:
		s.add(g.Territory.CenterX-t.X, g.Territory.CenterY-t.Y, 1.2)
	}

	slot := 0
	if m, err := w.GetBoidGroupMember(e); err == nil {
		slot = m.FormationSlot
	}
	ox, oy := FormationSlotOffset(g.Formation, slot, g.MemberCount)
	s.add(g.CenterX+ox-t.X, g.CenterY+oy-t.Y, weightFormation)
}

// SelectBoidTargets runs once per AI tick after shooter selection: each
// active shooter picks who to fire at. A boid that was hit in the last five
// seconds shoots back at its attacker if that player is still alive;
// otherwise it takes the nearest player inside aggression range.
func SelectBoidTargets(w *World, groups *GroupManager, players []Entity, tick uint64, physicsHz int) {
	const aggressionRange = 200.0
	grudgeTicks := uint64(5 * physicsHz)

	w.ForEach(CompBoid|CompBoidCombat|CompTransform, func(e Entity) bool {
		bc := &w.combats[e.Index]
		bc.ShouldShoot = false
		bc.HasTarget = false

		group, ok := groups.Get(w.boids[e.Index].GroupRef)
		if ok && !group.CanShoot(e) {
			return true
		}

		if bc.HasLastAttacker && tick-bc.LastAttackerTick <= grudgeTicks && w.Alive(bc.LastAttacker) {
			bc.Target = bc.LastAttacker
			bc.HasTarget = true
			bc.ShouldShoot = true
			return true
		}

		t := w.transforms[e.Index]
		nearest, dist := nearestEntity(w, t.X, t.Y, players)
		if !nearest.IsZero() && dist <= aggressionRange {
			bc.Target = nearest
			bc.HasTarget = true
			bc.ShouldShoot = true
		}
		return true
	})
}
