package simcore

import "math"

// velocityFromHeading converts a facing angle and scalar speed into a
// velocity vector.
func velocityFromHeading(theta, speed float64) Velocity {
	return Velocity{VX: math.Cos(theta) * speed, VY: math.Sin(theta) * speed}
}

// ProjectilePool hands out a bounded set of projectile entities, tagging
// each loan with a generation so a stale release (one arriving after the
// slot has already been reused) is rejected instead of corrupting state.
//
// A request past the pool's capacity falls back to an unpooled spawn: the
// caller still gets a projectile, it just isn't returned to the pool at
// despawn and the world frees its storage outright.
type ProjectilePool struct {
	world *World

	available []int  // free pool slot indices, LIFO
	owner     []Entity
	occupied  []bool
	slotGen   []uint32

	maxSlots      int
	initialActive int
	acquired      int // currently loaned-out slots
	fallbacks     uint64
	highWater     int
}

// NewProjectilePool creates a pool with maxSlots total capacity, pre-warming
// initialActive slots as immediately available (the rest grow in lazily so
// a quiet match doesn't pay for slots it never uses).
func NewProjectilePool(world *World, maxSlots, initialActive int) *ProjectilePool {
	if maxSlots <= 0 {
		maxSlots = 500
	}
	if initialActive <= 0 || initialActive > maxSlots {
		initialActive = 100
	}

	p := &ProjectilePool{
		world:         world,
		owner:         make([]Entity, maxSlots),
		occupied:      make([]bool, maxSlots),
		slotGen:       make([]uint32, maxSlots),
		maxSlots:      maxSlots,
		initialActive: initialActive,
	}
	p.available = make([]int, initialActive)
	for i := 0; i < initialActive; i++ {
		p.available[i] = initialActive - 1 - i
	}
	return p
}

// Utilization returns the fraction of total capacity currently loaned out.
func (p *ProjectilePool) Utilization() float64 {
	return float64(p.acquired) / float64(p.maxSlots)
}

// NearSaturation reports whether utilization has crossed the warning
// threshold (80%) at which the scheduler should emit a resource-pressure
// diagnostic.
func (p *ProjectilePool) NearSaturation() bool {
	return p.Utilization() >= 0.8
}

// Fallbacks returns the number of acquisitions that exceeded pool capacity
// and fell back to an unpooled spawn.
func (p *ProjectilePool) Fallbacks() uint64 {
	return p.fallbacks
}

// Acquire spawns a projectile entity, preferring a pooled slot. If every
// slot is occupied and the pool has room to grow (below maxSlots), a new
// slot is grown lazily. Only once maxSlots is fully exhausted does Acquire
// fall back to an unpooled spawn, reported via Fallbacks.
//
// tr.Theta is taken as the firing direction; the projectile's Velocity is
// derived from it and spec.Speed, so callers never hand-compute VX/VY.
func (p *ProjectilePool) Acquire(spec Projectile, tr Transform) Entity {
	vel := velocityFromHeading(tr.Theta, spec.Speed)

	if slot, ok := p.takeFreeSlot(); ok {
		e := p.world.Spawn()
		spec.HasPoolSlot = true
		spec.PoolSlot = slot
		spec.Generation = p.slotGen[slot]
		p.world.SetProjectile(e, spec)
		p.world.SetTransform(e, tr)
		p.world.SetVelocity(e, vel)
		p.world.SetPosition(e, Position{X: tr.X, Y: tr.Y})
		p.owner[slot] = e
		p.occupied[slot] = true
		p.acquired++
		if p.acquired > p.highWater {
			p.highWater = p.acquired
		}
		return e
	}

	p.fallbacks++
	e := p.world.Spawn()
	spec.HasPoolSlot = false
	p.world.SetProjectile(e, spec)
	p.world.SetTransform(e, tr)
	p.world.SetVelocity(e, vel)
	p.world.SetPosition(e, Position{X: tr.X, Y: tr.Y})
	return e
}

// takeFreeSlot returns a free slot, growing the pool by one lazily-allocated
// slot if none is free and capacity allows.
func (p *ProjectilePool) takeFreeSlot() (int, bool) {
	if n := len(p.available); n > 0 {
		slot := p.available[n-1]
		p.available = p.available[:n-1]
		return slot, true
	}
	nextSlot := p.acquired + len(p.available)
	if nextSlot < p.maxSlots {
		return nextSlot, true
	}
	return 0, false
}

// Release returns a pooled projectile's slot to the free list, bumping its
// generation so a second, stale Release call for the same former owner is a
// silent no-op. Releasing an entity that was never pool-owned is also a
// no-op (it was an unpooled fallback spawn; the world frees it directly).
func (p *ProjectilePool) Release(e Entity) {
	proj, err := p.world.GetProjectile(e)
	if err != nil || !proj.HasPoolSlot {
		return
	}
	slot := proj.PoolSlot
	if slot < 0 || slot >= p.maxSlots {
		return
	}
	if !p.occupied[slot] || p.owner[slot] != e {
		return // already released, or this wasn't the current occupant
	}
	p.occupied[slot] = false
	p.owner[slot] = Entity{}
	p.slotGen[slot]++
	p.available = append(p.available, slot)
	if p.acquired > 0 {
		p.acquired--
	}
}

// HighWater returns the largest number of concurrently loaned slots observed
// since the pool was created.
func (p *ProjectilePool) HighWater() int {
	return p.highWater
}
