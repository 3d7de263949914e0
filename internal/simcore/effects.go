package simcore

// Caps on live visual effects; a new effect past the cap is dropped rather
// than grown, keeping the replication payload bounded.
const (
	maxImpactFlashes = 32
	maxScreenShakes  = 8
	flashLifetime    = 10 // ticks
	shakeLifetime    = 12
)

// EffectHint is a cosmetic, client-rendering hint riding along with a state
// delta. Hints never feed back into gameplay state; dropping all of them
// changes nothing but what the client draws.
type EffectHint struct {
	Kind      string  `json:"kind"` // "flash" | "shake"
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Radius    float64 `json:"radius,omitempty"`
	Intensity float64 `json:"intensity,omitempty"`
}

type impactFlash struct {
	x, y, radius float64
	timer        int
}

type screenShake struct {
	x, y, intensity float64
	timer           int
}

// EffectsManager accumulates hit flashes and screen shakes emitted by the
// damage pipeline, ages them out, and snapshots the live set for the
// replication layer each network tick.
type EffectsManager struct {
	flashes []impactFlash
	shakes  []screenShake
}

// NewEffectsManager creates an empty effects buffer with capacity for the
// live-effect caps.
func NewEffectsManager() *EffectsManager {
	return &EffectsManager{
		flashes: make([]impactFlash, 0, maxImpactFlashes),
		shakes:  make([]screenShake, 0, maxScreenShakes),
	}
}

// AddHit registers the visual fallout of one damage event: an impact flash
// at the hit point, and a screen shake when the weapon warrants one.
func (em *EffectsManager) AddHit(x, y float64, weapon string) {
	anim, ok := WeaponAnimations[weapon]
	if !ok {
		return
	}
	if anim.FlashRadius > 0 && len(em.flashes) < maxImpactFlashes {
		em.flashes = append(em.flashes, impactFlash{x: x, y: y, radius: anim.FlashRadius, timer: flashLifetime})
	}
	if anim.ShakeIntensity >= 2 && len(em.shakes) < maxScreenShakes {
		em.shakes = append(em.shakes, screenShake{x: x, y: y, intensity: anim.ShakeIntensity, timer: shakeLifetime})
	}
}

// Step ages every live effect by one tick, dropping expired ones in place.
func (em *EffectsManager) Step() {
	keepF := em.flashes[:0]
	for _, f := range em.flashes {
		f.timer--
		if f.timer > 0 {
			keepF = append(keepF, f)
		}
	}
	em.flashes = keepF

	keepS := em.shakes[:0]
	for _, s := range em.shakes {
		s.timer--
		if s.timer > 0 {
			keepS = append(keepS, s)
		}
	}
	em.shakes = keepS
}

// Hints returns the current live effects as wire hints. The slice is fresh
// per call; callers may filter it by viewport before sending.
func (em *EffectsManager) Hints() []EffectHint {
	if len(em.flashes) == 0 && len(em.shakes) == 0 {
		return nil
	}
	out := make([]EffectHint, 0, len(em.flashes)+len(em.shakes))
	for _, f := range em.flashes {
		out = append(out, EffectHint{Kind: "flash", X: f.x, Y: f.y, Radius: f.radius})
	}
	for _, s := range em.shakes {
		out = append(out, EffectHint{Kind: "shake", X: s.x, Y: s.y, Intensity: s.intensity})
	}
	return out
}
