package simcore

// Combat tuning constants, carried over from the stamina/combo/dodge model:
// a fixed stamina pool spent on dodges and regenerated over time, and a
// combo window that resets if the player waits too long between hits.
const (
	MaxStamina         = 100.0
	StaminaRegenRate   = 20.0 // per second
	DodgeStaminaCost   = 40.0
	DodgeDurationTicks = 6
	DodgeCooldownTicks = 20
	DodgeInvulnTicks   = 4
	DodgeDistance      = 120.0
	ComboWindowTicks   = 12
)

// ComboDefinition caps how many hits chain into a combo for a weapon, the
// tick window allowed between hits, and the damage multiplier applied as
// the combo advances.
type ComboDefinition struct {
	MaxHits     int
	WindowTicks int
	DamageScale float64
}

// DefaultComboDefinitions returns the per-weapon combo table.
func DefaultComboDefinitions() map[string]ComboDefinition {
	return map[string]ComboDefinition{
		"fists":  {MaxHits: 3, WindowTicks: ComboWindowTicks, DamageScale: 1.15},
		"knife":  {MaxHits: 3, WindowTicks: ComboWindowTicks, DamageScale: 1.2},
		"sword":  {MaxHits: 4, WindowTicks: ComboWindowTicks, DamageScale: 1.25},
		"axe":    {MaxHits: 2, WindowTicks: ComboWindowTicks, DamageScale: 1.3},
		"katana": {MaxHits: 5, WindowTicks: ComboWindowTicks, DamageScale: 1.2},
		"hammer": {MaxHits: 2, WindowTicks: ComboWindowTicks, DamageScale: 1.4},
		"scythe": {MaxHits: 4, WindowTicks: ComboWindowTicks, DamageScale: 1.3},
	}
}

// CombatState tracks a player's combo chain, dodge, and stamina-gated
// invulnerability frames. It advances by tick count, not wall-clock time, so
// it reproduces identically given the same input sequence.
type CombatState struct {
	ComboCount     int
	LastAttackTick uint64
	IsDodging      bool
	DodgeTimer     int
	DodgeCooldown  int
	DodgeDirection float64
	InvulnFrames   int
	Stamina        float64
}

// Reset clears combat state, used on respawn.
func (c *CombatState) Reset() {
	*c = CombatState{Stamina: MaxStamina}
}

// UpdateTimers decrements per-tick counters. Called once per player per tick
// before any input is applied.
func (c *CombatState) UpdateTimers() {
	if c.DodgeTimer > 0 {
		c.DodgeTimer--
		if c.DodgeTimer == 0 {
			c.IsDodging = false
		}
	}
	if c.DodgeCooldown > 0 {
		c.DodgeCooldown--
	}
	if c.InvulnFrames > 0 {
		c.InvulnFrames--
	}
	if c.Stamina < MaxStamina {
		c.Stamina += StaminaRegenRate / 60.0 // regen expressed per-tick at 60Hz baseline
		if c.Stamina > MaxStamina {
			c.Stamina = MaxStamina
		}
	}
}

// CanDodge reports whether stamina and cooldown allow starting a dodge.
func (c *CombatState) CanDodge() bool {
	return c.DodgeCooldown == 0 && c.Stamina >= DodgeStaminaCost && !c.IsDodging
}

// StartDodge begins a dodge in the given direction (radians), spending
// stamina and setting invulnerability frames.
func (c *CombatState) StartDodge(direction float64) {
	c.IsDodging = true
	c.DodgeTimer = DodgeDurationTicks
	c.DodgeCooldown = DodgeCooldownTicks
	c.DodgeDirection = direction
	c.InvulnFrames = DodgeInvulnTicks
	c.Stamina -= DodgeStaminaCost
}

// IsInvulnerable reports whether the player currently ignores incoming
// damage (dodge i-frames).
func (c *CombatState) IsInvulnerable() bool {
	return c.InvulnFrames > 0
}

// RegisterHit advances the combo chain for the given weapon and returns the
// damage scale to apply. A hit outside the combo window, or past MaxHits,
// resets the chain to its first hit.
func (c *CombatState) RegisterHit(currentTick uint64, combo ComboDefinition) float64 {
	withinWindow := currentTick-c.LastAttackTick <= uint64(combo.WindowTicks)
	if withinWindow && c.ComboCount < combo.MaxHits {
		c.ComboCount++
	} else {
		c.ComboCount = 1
	}
	c.LastAttackTick = currentTick

	scale := 1.0
	for i := 1; i < c.ComboCount; i++ {
		scale *= combo.DamageScale
	}
	return scale
}
