package simcore

import "math"

// TrailType defines the visual style of weapon trails sent to clients as
// rendering hints.
type TrailType int

const (
	TrailNone       TrailType = iota
	TrailArc                  // curved swing (sword, axe, scythe)
	TrailLine                 // straight thrust (spear, katana)
	TrailRadial               // 360° burst (fists, hammer)
	TrailProjectile           // moving bolt (bow, blaster)
)

// WeaponAnimationConfig defines the feel of a weapon's hits, separated from
// damage/balance in weapons.go: how hard victims are shoved, how much the
// client should shake, what kind of trail to draw. Everything here is a
// rendering or reaction hint layered on top of the damage numbers.
type WeaponAnimationConfig struct {
	WeaponID string

	TrailType  TrailType
	TrailColor string
	TrailWidth float64 // arc width in radians, or line width in pixels

	ShakeIntensity float64 // screen shake on hit (0-8 scale)
	FlashRadius    float64 // impact flash size (pixels)

	KnockbackForce   float64 // velocity impulse applied to the victim
	AttackerPushback float64 // attacker slide-back after a hit

	StunDuration float64 // seconds the victim is slowed after a hit
}

// WeaponAnimations is the per-weapon feel table, keyed like Weapons.
var WeaponAnimations = map[string]WeaponAnimationConfig{
	"fists": {
		WeaponID: "fists", TrailType: TrailRadial, TrailWidth: math.Pi / 4,
		ShakeIntensity: 1.0, FlashRadius: 8, KnockbackForce: 40, AttackerPushback: 2,
	},
	"knife": {
		WeaponID: "knife", TrailType: TrailLine, TrailWidth: 2,
		ShakeIntensity: 1.0, FlashRadius: 8, KnockbackForce: 30,
	},
	"sword": {
		WeaponID: "sword", TrailType: TrailArc, TrailWidth: math.Pi / 3,
		ShakeIntensity: 2.5, FlashRadius: 14, KnockbackForce: 90, StunDuration: 0.1,
	},
	"spear": {
		WeaponID: "spear", TrailType: TrailLine, TrailWidth: 3,
		ShakeIntensity: 2.0, FlashRadius: 12, KnockbackForce: 110,
	},
	"axe": {
		WeaponID: "axe", TrailType: TrailArc, TrailWidth: math.Pi / 2,
		ShakeIntensity: 4.0, FlashRadius: 18, KnockbackForce: 160, StunDuration: 0.2,
	},
	"bow": {
		WeaponID: "bow", TrailType: TrailProjectile,
		ShakeIntensity: 1.5, FlashRadius: 10, KnockbackForce: 70,
	},
	"scythe": {
		WeaponID: "scythe", TrailType: TrailArc, TrailWidth: math.Pi * 0.6,
		ShakeIntensity: 3.5, FlashRadius: 16, KnockbackForce: 130, StunDuration: 0.15,
	},
	"katana": {
		WeaponID: "katana", TrailType: TrailLine, TrailWidth: 2,
		ShakeIntensity: 2.0, FlashRadius: 12, KnockbackForce: 60,
	},
	"hammer": {
		WeaponID: "hammer", TrailType: TrailRadial, TrailWidth: math.Pi,
		ShakeIntensity: 6.0, FlashRadius: 24, KnockbackForce: 220, StunDuration: 0.3,
	},
	"blaster": {
		WeaponID: "blaster", TrailType: TrailProjectile,
		ShakeIntensity: 0.5, FlashRadius: 6, KnockbackForce: 20,
	},
}
