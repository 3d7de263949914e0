package simcore

// WeaponStats configures one weapon's projectile output. Unlike the
// melee-range weapon table this is derived from, every weapon here fires a
// Projectile entity; "range" becomes projectile lifetime via Speed and the
// pool's lifetime timer.
type WeaponStats struct {
	MinDamage     int
	MaxDamage     int
	CooldownTicks int
	ProjectileSpd float64 // world units/sec
	LifetimeTicks int
	Radius        float64
}

// Weapons is the canonical weapon table, keyed by the identifier carried on
// Player.Weapon and BoidCombat.Weapon.
var Weapons = map[string]WeaponStats{
	"fists":  {MinDamage: 8, MaxDamage: 15, CooldownTicks: 15, ProjectileSpd: 900, LifetimeTicks: 6, Radius: 10},
	"knife":  {MinDamage: 12, MaxDamage: 22, CooldownTicks: 10, ProjectileSpd: 950, LifetimeTicks: 8, Radius: 8},
	"sword":  {MinDamage: 18, MaxDamage: 35, CooldownTicks: 15, ProjectileSpd: 700, LifetimeTicks: 10, Radius: 10},
	"spear":  {MinDamage: 15, MaxDamage: 30, CooldownTicks: 18, ProjectileSpd: 800, LifetimeTicks: 14, Radius: 9},
	"axe":    {MinDamage: 30, MaxDamage: 50, CooldownTicks: 24, ProjectileSpd: 600, LifetimeTicks: 10, Radius: 12},
	"bow":    {MinDamage: 20, MaxDamage: 40, CooldownTicks: 30, ProjectileSpd: 1100, LifetimeTicks: 30, Radius: 6},
	"scythe": {MinDamage: 40, MaxDamage: 65, CooldownTicks: 21, ProjectileSpd: 650, LifetimeTicks: 12, Radius: 12},
	"katana": {MinDamage: 25, MaxDamage: 40, CooldownTicks: 9, ProjectileSpd: 1000, LifetimeTicks: 8, Radius: 8},
	"hammer": {MinDamage: 35, MaxDamage: 55, CooldownTicks: 27, ProjectileSpd: 550, LifetimeTicks: 10, Radius: 14},

	// blaster is the boid weapon: slow cadence, long-lived bolt.
	"blaster": {MinDamage: 5, MaxDamage: 8, CooldownTicks: 120, ProjectileSpd: 600, LifetimeTicks: 90, Radius: 6},
}

// GetWeapon returns a weapon's stats, falling back to fists for an unknown
// identifier rather than erroring: a client sending a bad weapon name should
// degrade, not desync the match.
func GetWeapon(id string) WeaponStats {
	if w, ok := Weapons[id]; ok {
		return w
	}
	return Weapons["fists"]
}
