package simcore

import (
	"math"
	"math/rand"
)

// muzzleOffset is how far ahead of the player's center a projectile spawns,
// so a shot never immediately overlaps its own shooter.
const muzzleOffset = 30.0

// Input is one connection's decoded command for a single tick. Movement and
// Aim are vectors of at most unit length and Thrust is a [0,1] throttle; the
// server never trusts client-reported magnitudes.
type Input struct {
	Seq      uint32
	MoveX    float64
	MoveY    float64
	AimX     float64
	AimY     float64
	Thrust   float64
	Shooting bool
	Dodge    bool
}

// inputMagnitudeSlack tolerates client float error on "unit length" vectors.
const inputMagnitudeSlack = 1.001

// ValidateInput reports whether a decoded input is within protocol bounds:
// every value finite, movement and aim at most unit length (plus float
// slack), thrust within [0,1]. A violating message is dropped whole and
// counts against the connection's protocol-violation budget.
func ValidateInput(in Input) bool {
	for _, v := range [...]float64{in.MoveX, in.MoveY, in.AimX, in.AimY, in.Thrust} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if math.Hypot(in.MoveX, in.MoveY) > inputMagnitudeSlack {
		return false
	}
	if math.Hypot(in.AimX, in.AimY) > inputMagnitudeSlack {
		return false
	}
	if in.Thrust < 0 || in.Thrust > 1 {
		return false
	}
	return true
}

// NormalizeInput clamps a validated input to server-trusted ranges: move and
// aim vectors longer than unit length are scaled down to unit length (and
// near-zero ones are zeroed) so a client cannot claim diagonal speed
// exceeding axis speed.
func NormalizeInput(in Input) Input {
	in.MoveX, in.MoveY = clampToUnit(in.MoveX, in.MoveY)
	in.AimX, in.AimY = clampToUnit(in.AimX, in.AimY)
	in.Thrust = clamp(in.Thrust, 0, 1)
	return in
}

func clampToUnit(x, y float64) (float64, float64) {
	length := math.Hypot(x, y)
	if length < 1e-9 {
		return 0, 0
	}
	if length > 1 {
		return x / length, y / length
	}
	return x, y
}

// rotateToward advances current toward target by at most maxStep radians,
// taking the shorter way around the circle.
func rotateToward(current, target, maxStep float64) float64 {
	diff := math.Mod(target-current+math.Pi, 2*math.Pi)
	if diff < 0 {
		diff += 2 * math.Pi
	}
	diff -= math.Pi
	if diff > maxStep {
		diff = maxStep
	} else if diff < -maxStep {
		diff = -maxStep
	}
	return current + diff
}

// ApplyPlayerInput is the Input stage's per-message step: it spends one of a
// connection's queued inputs to steer the player's Velocity and facing and,
// on shooting with cooldown elapsed, enqueues a projectile spawn command.
// A stale (out-of-order or already-seen) sequence number is dropped silently
// rather than applied twice, and a message that fails validation leaves the
// player's state exactly as it was.
func ApplyPlayerInput(w *World, e Entity, in Input, dt float64, pool *ProjectilePool, rng *rand.Rand) {
	if !ValidateInput(in) {
		return
	}
	player, err := w.GetPlayer(e)
	if err != nil {
		return
	}
	if in.Seq != 0 && in.Seq <= player.LastSeq {
		return
	}
	if in.Seq != 0 {
		player.LastSeq = in.Seq
	}

	in = NormalizeInput(in)
	t, _ := w.GetTransform(e)
	v, _ := w.GetVelocity(e)

	if in.MoveX != 0 || in.MoveY != 0 {
		accel := player.Thrust * in.Thrust
		fx, fy := math.Cos(player.Facing), math.Sin(player.Facing)
		// Moving the way you're facing earns the forward boost, scaled by
		// how aligned movement and facing actually are.
		if dot := in.MoveX*fx + in.MoveY*fy; dot > 0 {
			accel *= 1 + (player.FwdBoost-1)*dot
		}
		v.VX += in.MoveX * accel * dt
		v.VY += in.MoveY * accel * dt
	}

	if in.AimX != 0 || in.AimY != 0 {
		player.Facing = rotateToward(player.Facing, math.Atan2(in.AimY, in.AimX), player.TurnRate*dt)
	}

	if in.Dodge && player.Combat.CanDodge() {
		dir := player.Facing
		if in.MoveX != 0 || in.MoveY != 0 {
			dir = math.Atan2(in.MoveY, in.MoveX)
		}
		player.Combat.StartDodge(dir)
		burst := DodgeDistance / (float64(DodgeDurationTicks) * dt)
		v.VX += math.Cos(dir) * burst
		v.VY += math.Sin(dir) * burst
	}

	w.SetVelocity(e, v)

	if in.Shooting && player.CooldownTimer == 0 {
		stats := GetWeapon(player.Weapon)
		player.CooldownTimer = stats.CooldownTicks

		heading := player.Facing
		if in.AimX != 0 || in.AimY != 0 {
			heading = math.Atan2(in.AimY, in.AimX)
		}
		spawnX := t.X + math.Cos(player.Facing)*muzzleOffset
		spawnY := t.Y + math.Sin(player.Facing)*muzzleOffset

		dmg := stats.MinDamage
		if stats.MaxDamage > stats.MinDamage {
			dmg += rng.Intn(stats.MaxDamage - stats.MinDamage + 1)
		}
		weapon := player.Weapon

		w.EnqueueCommand(func(w *World) {
			pool.Acquire(Projectile{
				Damage:        dmg,
				Owner:         e,
				Weapon:        weapon,
				LifetimeTimer: stats.LifetimeTicks,
				Speed:         stats.ProjectileSpd,
				Radius:        stats.Radius,
			}, Transform{X: spawnX, Y: spawnY, Theta: heading})
		})
	}
}

// StepPlayers runs the per-tick player upkeep that must happen whether or
// not any input arrived this tick: weapon cooldown, dodge/combo timers, and
// out-of-combat health regeneration (2 HP/s starting 3 s after the last
// damage taken).
func StepPlayers(w *World, tick uint64, physicsHz int) {
	regenDelay := uint64(3 * physicsHz)
	regenInterval := uint64(physicsHz / 2) // 2 HP per second
	if regenInterval == 0 {
		regenInterval = 1
	}

	w.ForEach(CompPlayer, func(e Entity) bool {
		p := &w.players[e.Index]
		if p.CooldownTimer > 0 {
			p.CooldownTimer--
		}
		p.Combat.UpdateTimers()

		if p.Health > 0 && p.Health < p.MaxHealth {
			elapsed := tick - p.LastDamageAt
			if elapsed >= regenDelay && (elapsed-regenDelay)%regenInterval == 0 {
				p.Health++
			}
		}
		return true
	})
}

// SpawnPlayer creates a new player entity at a random point within the
// arena, with full health and the fists weapon, matching a fresh join.
func SpawnPlayer(w *World, connID, name string, arena ArenaBounds, rng *rand.Rand) Entity {
	e := w.Spawn()
	x := arena.Margin + rng.Float64()*(arena.Width-2*arena.Margin)
	y := arena.Margin + rng.Float64()*(arena.Height-2*arena.Margin)
	w.SetTransform(e, Transform{X: x, Y: y})
	w.SetVelocity(e, Velocity{})
	w.SetPosition(e, Position{X: x, Y: y})
	w.SetPlayer(e, Player{
		ConnID:    connID,
		Name:      name,
		Health:    100,
		MaxHealth: 100,
		Thrust:    900,
		TurnRate:  6.0,
		FwdBoost:  1.6,
		Weapon:    "fists",
		Combat:    CombatState{Stamina: MaxStamina},
	})
	return e
}
