package simcore

import (
	"fmt"
	"math"
	"sort"
)

// GroupID identifies a boid group for the lifetime of a match. Group 0 is
// never allocated, so the zero value reads as "no group."
type GroupID uint32

// GroupArchetype is a group's tactical role, determining its default
// formation and how it behaves after a retreat ends.
type GroupArchetype int

const (
	GroupAssault GroupArchetype = iota
	GroupDefensive
	GroupRecon
)

func (a GroupArchetype) String() string {
	switch a {
	case GroupAssault:
		return "assault"
	case GroupDefensive:
		return "defensive"
	case GroupRecon:
		return "recon"
	default:
		return "unknown"
	}
}

// Formation names the slot layout a group's members are steered toward.
type Formation int

const (
	FormationVFormation Formation = iota
	FormationCircleDefense
	FormationSwarmAttack
	FormationPatrolLine
)

func (f Formation) String() string {
	switch f {
	case FormationVFormation:
		return "v_formation"
	case FormationCircleDefense:
		return "circle_defense"
	case FormationSwarmAttack:
		return "swarm_attack"
	case FormationPatrolLine:
		return "patrol_line"
	default:
		return "unknown"
	}
}

// FormationSlotOffset returns member slot's offset from the group center for
// the given formation and member count. Deterministic in (formation, slot,
// count) so every tick computes identical offsets without stored state.
func FormationSlotOffset(f Formation, slot, count int) (dx, dy float64) {
	if count <= 0 {
		return 0, 0
	}
	const spacing = 36.0
	switch f {
	case FormationVFormation:
		// Two wings trailing back from the point at slot 0.
		wing := float64((slot + 1) / 2)
		side := 1.0
		if slot%2 == 0 {
			side = -1.0
		}
		return side * wing * spacing, wing * spacing
	case FormationCircleDefense:
		angle := 2 * math.Pi * float64(slot) / float64(count)
		radius := spacing * math.Max(2, float64(count)/4)
		return math.Cos(angle) * radius, math.Sin(angle) * radius
	case FormationSwarmAttack:
		// Deterministic scatter: a cheap hash of the slot index fans members
		// out so the swarm reads as chaos without being random per tick.
		h := uint32(slot)*2654435761 + 12345
		angle := 2 * math.Pi * float64(h%360) / 360
		radius := spacing * (1 + float64((h>>8)%4))
		return math.Cos(angle) * radius, math.Sin(angle) * radius
	case FormationPatrolLine:
		return (float64(slot) - float64(count-1)/2) * spacing, 0
	default:
		return 0, 0
	}
}

// FormationFor maps a behavior state (and the group's tactical archetype)
// to the formation members drift toward while in that state.
func FormationFor(state BehaviorState, archetype GroupArchetype) Formation {
	switch state {
	case BehaviorEngaging:
		if archetype == GroupAssault {
			return FormationVFormation
		}
		return FormationSwarmAttack
	case BehaviorDefending:
		return FormationCircleDefense
	default:
		return FormationPatrolLine
	}
}

// BehaviorState is the group's coarse AI state machine state.
type BehaviorState int

const (
	BehaviorPatrolling BehaviorState = iota
	BehaviorEngaging
	BehaviorRetreating
	BehaviorDefending
)

func (s BehaviorState) String() string {
	switch s {
	case BehaviorPatrolling:
		return "patrolling"
	case BehaviorEngaging:
		return "engaging"
	case BehaviorRetreating:
		return "retreating"
	case BehaviorDefending:
		return "defending"
	default:
		return "unknown"
	}
}

// LODTier controls how often a group's AI re-evaluates steering, traded off
// against distance from the nearest player: far-away groups think less often.
type LODTier int

const (
	LODNear    LODTier = iota // every tick
	LODMedium                 // 100ms
	LODFar                    // 200ms
	LODDistant                // 1s
)

// LODInterval returns the re-evaluation period for a tier, in ticks, given
// the physics tick rate.
func LODInterval(tier LODTier, physicsHz int) int {
	var periodMillis int
	switch tier {
	case LODNear:
		periodMillis = 16
	case LODMedium:
		periodMillis = 100
	case LODFar:
		periodMillis = 200
	default:
		periodMillis = 1000
	}
	ticks := (periodMillis * physicsHz) / 1000
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// LODDistanceFor classifies a group's tier from its distance to the nearest
// player. Thresholds are in world units.
func LODDistanceFor(distance float64) LODTier {
	switch {
	case distance < 500:
		return LODNear
	case distance < 1500:
		return LODMedium
	case distance < 3000:
		return LODFar
	default:
		return LODDistant
	}
}

// Territory is the circular region a patrolling group defends or wanders
// within.
type Territory struct {
	CenterX, CenterY float64
	Radius           float64
}

// Contains reports whether (x, y) lies within the territory.
func (t Territory) Contains(x, y float64) bool {
	dx, dy := x-t.CenterX, y-t.CenterY
	return dx*dx+dy*dy <= t.Radius*t.Radius
}

// Group behavior tuning.
const (
	retreatHealthThreshold = 0.30  // aggregate HP fraction below which a group breaks off
	engageProximity        = 350.0 // nearest-player distance that provokes a group
	rallyArrivalRadius     = 80.0
	retreatSpeedMul        = 1.4
)

// BoidGroup is the shared state for one flock: its archetypes, territory,
// formation, behavior state, and which members are currently allowed to
// fire. Membership itself lives on each member's BoidGroupMember component,
// not here, so the group doesn't hold a live collection that must be kept
// in sync as boids spawn and despawn.
type BoidGroup struct {
	ID            GroupID
	Archetype     BoidArchetype
	Tactics       GroupArchetype
	Territory     Territory
	Formation     Formation
	Behavior      BehaviorState
	LOD           LODTier
	MaxShooters   int
	ActiveShooter map[Entity]bool
	MemberCount   int

	// Group center, recomputed each AI tick from live member transforms.
	CenterX, CenterY float64

	// Rally point members steer toward while Engaging (the threatening
	// player's position) or Retreating (the territory center).
	RallyX, RallyY float64
	FlowFieldKey   string

	// RetreatUntil bounds a retreat: past this tick with no fresh threat,
	// the group stands down instead of fleeing forever.
	RetreatUntil uint64

	// PrimaryTarget is the player the group is engaging, when any.
	PrimaryTarget    Entity
	HasPrimaryTarget bool
}

// MaxShootersFor computes ceil(0.2 * groupSize), the active-shooter cap.
func MaxShootersFor(groupSize int) int {
	if groupSize <= 0 {
		return 0
	}
	return int(math.Ceil(0.2 * float64(groupSize)))
}

// GroupManager owns every live BoidGroup and hands out GroupIDs. It is the
// registry a group-aware system consults to resolve a Boid's GroupRef; a
// missing entry means the group has been disbanded and callers must fall
// back to unaffiliated behavior rather than erroring.
type GroupManager struct {
	groups map[GroupID]*BoidGroup
	nextID GroupID
}

// NewGroupManager creates an empty group registry.
func NewGroupManager() *GroupManager {
	return &GroupManager{
		groups: make(map[GroupID]*BoidGroup),
		nextID: 1,
	}
}

// Create allocates a new group with the given archetypes and territory.
func (gm *GroupManager) Create(archetype BoidArchetype, tactics GroupArchetype, territory Territory) *BoidGroup {
	id := gm.nextID
	gm.nextID++
	g := &BoidGroup{
		ID:            id,
		Archetype:     archetype,
		Tactics:       tactics,
		Territory:     territory,
		Formation:     FormationPatrolLine,
		Behavior:      BehaviorPatrolling,
		LOD:           LODNear,
		ActiveShooter: make(map[Entity]bool),
		CenterX:       territory.CenterX,
		CenterY:       territory.CenterY,
	}
	gm.groups[id] = g
	return g
}

// Get resolves a GroupID. Returns (nil, false) for a disbanded or unknown
// group; callers must treat that as "no group" rather than an error.
func (gm *GroupManager) Get(id GroupID) (*BoidGroup, bool) {
	g, ok := gm.groups[id]
	return g, ok
}

// Disband removes a group. Members referencing it must tolerate the
// resulting dangling GroupRef.
func (gm *GroupManager) Disband(id GroupID) {
	delete(gm.groups, id)
}

// All returns every live group in ascending ID order, so the AI stage
// iterates groups deterministically tick after tick.
func (gm *GroupManager) All() []*BoidGroup {
	out := make([]*BoidGroup, 0, len(gm.groups))
	for _, g := range gm.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateCenter recomputes the group's center from its live members.
func (g *BoidGroup) UpdateCenter(w *World, members []Entity) {
	if len(members) == 0 {
		return
	}
	var sx, sy float64
	for _, m := range members {
		t := w.transforms[m.Index]
		sx += t.X
		sy += t.Y
	}
	g.CenterX = sx / float64(len(members))
	g.CenterY = sy / float64(len(members))
}

// EvaluateGroupBehavior advances the group state machine one AI tick:
//
//	threat near           -> Engaging (rally on the threat)
//	aggregate HP < 30%    -> Retreating (rally on territory center)
//	rally reached/expired -> Defending for Defensive groups, Patrolling
//	                         for Assault/Recon
//
// Formation is a function of the resulting state; members drift toward the
// new slots via the formation steering weight rather than snapping.
func EvaluateGroupBehavior(w *World, g *BoidGroup, members []Entity, players []Entity, tick uint64, physicsHz int) {
	g.UpdateCenter(w, members)

	nearest, nearestDist := nearestEntity(w, g.CenterX, g.CenterY, players)
	g.LOD = LODDistanceFor(nearestDist)

	totalHP, maxHP := 0, 0
	for _, m := range members {
		if h, err := w.GetHealth(m); err == nil {
			totalHP += h.Current
			maxHP += h.Max
		}
	}
	hurt := maxHP > 0 && float64(totalHP)/float64(maxHP) < retreatHealthThreshold

	prev := g.Behavior
	switch {
	case hurt:
		g.Behavior = BehaviorRetreating
		g.RallyX, g.RallyY = g.Territory.CenterX, g.Territory.CenterY
		g.RetreatUntil = tick + uint64(8*physicsHz)
		g.HasPrimaryTarget = false
		// The rally point is fixed, so members navigate it through a shared
		// flow field instead of each re-deriving a straight-line pull.
		g.FlowFieldKey = fmt.Sprintf("group-%d-rally", g.ID)
	case !nearest.IsZero() && nearestDist < engageProximity:
		g.Behavior = BehaviorEngaging
		g.PrimaryTarget = nearest
		g.HasPrimaryTarget = true
		if pt, err := w.GetTransform(nearest); err == nil {
			g.RallyX, g.RallyY = pt.X, pt.Y
		}
	case g.Behavior == BehaviorRetreating:
		dx, dy := g.CenterX-g.RallyX, g.CenterY-g.RallyY
		arrived := math.Hypot(dx, dy) < rallyArrivalRadius
		if arrived || tick >= g.RetreatUntil {
			if g.Tactics == GroupDefensive {
				g.Behavior = BehaviorDefending
			} else {
				g.Behavior = BehaviorPatrolling
			}
			g.FlowFieldKey = ""
		}
	case g.Behavior == BehaviorEngaging:
		// Threat gone: stand down where the chase ended.
		g.HasPrimaryTarget = false
		if g.Tactics == GroupDefensive {
			g.Behavior = BehaviorDefending
		} else {
			g.Behavior = BehaviorPatrolling
		}
	}

	if g.Behavior != prev {
		g.Formation = FormationFor(g.Behavior, g.Tactics)
	}
}

// nearestEntity returns the closest of candidates to (x, y) and its
// distance, or (zero, +Inf) when candidates is empty.
func nearestEntity(w *World, x, y float64, candidates []Entity) (Entity, float64) {
	best := Entity{}
	bestDist := math.Inf(1)
	for _, c := range candidates {
		if !w.Alive(c) {
			continue
		}
		t, err := w.GetTransform(c)
		if err != nil {
			continue
		}
		d := math.Hypot(t.X-x, t.Y-y)
		if d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best, bestDist
}

// SelectActiveShooters recomputes which members may fire, capped at
// g.MaxShooters, scored by how well-placed each member is to shoot the
// group's primary target: facing angle, distance, and remaining health all
// count. Ties break by slot order, keeping selection deterministic.
func (g *BoidGroup) SelectActiveShooters(w *World, members []Entity) {
	for e := range g.ActiveShooter {
		delete(g.ActiveShooter, e)
	}
	if g.MaxShooters == 0 || len(members) == 0 {
		return
	}

	var tx, ty float64
	haveTarget := false
	if g.HasPrimaryTarget {
		if t, err := w.GetTransform(g.PrimaryTarget); err == nil {
			tx, ty, haveTarget = t.X, t.Y, true
		}
	}

	type scored struct {
		e     Entity
		score float64
	}
	ranked := make([]scored, 0, len(members))
	for _, m := range members {
		sc := 0.0
		t := w.transforms[m.Index]
		v := w.velocities[m.Index]
		if haveTarget {
			dx, dy := tx-t.X, ty-t.Y
			dist := math.Hypot(dx, dy)
			sc += 400 / (1 + dist) // closer is better

			heading := math.Atan2(v.VY, v.VX)
			want := math.Atan2(dy, dx)
			angleOff := math.Abs(math.Mod(want-heading+3*math.Pi, 2*math.Pi) - math.Pi)
			sc += (math.Pi - angleOff) * 20 // already pointed at the target is better
		}
		if h, err := w.GetHealth(m); err == nil && h.Max > 0 {
			sc += 50 * float64(h.Current) / float64(h.Max)
		}
		ranked = append(ranked, scored{e: m, score: sc})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	limit := g.MaxShooters
	if limit > len(ranked) {
		limit = len(ranked)
	}
	for i := 0; i < limit; i++ {
		g.ActiveShooter[ranked[i].e] = true
	}
}

// CanShoot reports whether e is one of the group's currently active
// shooters.
func (g *BoidGroup) CanShoot(e Entity) bool {
	return g.ActiveShooter[e]
}

// SpawnBoidGroup creates a group and count member boids scattered through
// its territory, each with health per the boid archetype and a blaster with
// a staggered initial cooldown so a fresh group doesn't volley as one.
func SpawnBoidGroup(w *World, gm *GroupManager, archetype BoidArchetype, tactics GroupArchetype, count int, territory Territory) *BoidGroup {
	g := gm.Create(archetype, tactics, territory)
	g.MemberCount = count
	g.MaxShooters = MaxShootersFor(count)

	for i := 0; i < count; i++ {
		e := w.Spawn()
		angle := 2 * math.Pi * float64(i) / float64(count)
		r := territory.Radius * 0.5 * (0.3 + 0.7*float64(i%7)/7)
		x := territory.CenterX + math.Cos(angle)*r
		y := territory.CenterY + math.Sin(angle)*r

		w.SetTransform(e, Transform{X: x, Y: y})
		w.SetVelocity(e, Velocity{})
		w.SetPosition(e, Position{X: x, Y: y})
		hp := BoidArchetypeMaxHP(archetype)
		w.SetHealth(e, Health{Current: hp, Max: hp})
		w.SetBoid(e, Boid{Archetype: archetype, GroupRef: g.ID})
		w.SetBoidGroupMember(e, BoidGroupMember{GroupRef: g.ID, FormationSlot: i, Role: "member"})
		w.SetBoidCombat(e, BoidCombat{
			Weapon:        "blaster",
			CooldownTimer: (i * 7) % 60,
		})
	}
	return g
}
