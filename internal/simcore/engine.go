package simcore

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"boidarena/internal/simcore/spatial"
)

// InputSource hands the Input stage a connection's queued commands for this
// tick. Implementations drain a per-connection lock-free queue.
type InputSource interface {
	// Drain returns every queued Input for a connection, oldest first, and
	// removes them from the queue.
	Drain(connID string) []Input
}

// NetworkPublisher is called once every network tick with the current tick
// number, so a replication layer can diff and send deltas.
type NetworkPublisher interface {
	Publish(tick uint64, w *World)
}

// Engine is the fixed-timestep simulation core: it owns the World and every
// subsystem's shared state, and advances them in lockstep at PhysicsHz.
//
// Stage order within a tick is fixed and deterministic: Input, AI, Movement,
// Combat, Collision, ResourceManagement, CoordinateSync, NetworkSync — with
// the command buffer drained between stages so each stage observes the
// previous stage's mutations fully applied. NetworkSync only actually emits
// every Nth tick, where N = physics rate / network rate.
type Engine struct {
	World       *World
	Groups      *GroupManager
	Pool        *ProjectilePool
	Grid        *spatial.SpatialGrid
	Flow        *spatial.RallyFieldSet
	Bounds      ArenaBounds
	Leaderboard *Leaderboard
	Effects     *EffectsManager
	Events      *EventLog

	coord *CoordSync
	rng   *rand.Rand
	sweep *spatial.ProjectileSweep

	physicsHz int
	networkHz int
	netEveryN int

	tick     uint64
	ticker   *time.Ticker
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	lastTick time.Duration

	inputs    InputSource
	publisher NetworkPublisher

	players map[string]Entity // connID -> player entity

	onDamage func(DamageEvent)
}

// EngineConfig bundles the fixed-tick scheduler's construction parameters.
type EngineConfig struct {
	PhysicsHz     int
	NetworkHz     int
	ArenaWidth    float64
	ArenaHeight   float64
	GridCellSize  float64
	FlowCellSize  float64
	MaxPoolSlots  int
	InitialPool   int
	MaxPlayers    int
	MaxProjectile int
	MaxBoids      int
	Seed          int64
}

// NewEngine constructs an Engine from cfg. NetworkHz must evenly divide
// PhysicsHz; callers are expected to have validated this at config-load time
// (see internal/config), but NewEngine defends against a bad value by
// rounding netEveryN up to at least 1.
func NewEngine(cfg EngineConfig, inputs InputSource, publisher NetworkPublisher) *Engine {
	world := NewWorld(cfg.MaxPlayers, cfg.MaxProjectile, cfg.MaxBoids)
	netEveryN := 1
	if cfg.NetworkHz > 0 && cfg.PhysicsHz > cfg.NetworkHz {
		netEveryN = cfg.PhysicsHz / cfg.NetworkHz
		if netEveryN < 1 {
			netEveryN = 1
		}
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}

	return &Engine{
		World:       world,
		Groups:      NewGroupManager(),
		Pool:        NewProjectilePool(world, cfg.MaxPoolSlots, cfg.InitialPool),
		Grid:        spatial.NewSpatialGrid(cfg.ArenaWidth, cfg.ArenaHeight, cfg.GridCellSize, cfg.MaxPlayers+cfg.MaxBoids),
		Flow:        spatial.NewRallyFieldSet(cfg.ArenaWidth, cfg.ArenaHeight, cfg.FlowCellSize),
		Bounds:      ArenaBounds{Width: cfg.ArenaWidth, Height: cfg.ArenaHeight, Margin: 24},
		Leaderboard: NewLeaderboard(),
		Effects:     NewEffectsManager(),
		coord:       NewCoordSync(),
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		sweep:       spatial.NewProjectileSweep(cfg.MaxPlayers + cfg.MaxBoids + cfg.MaxPoolSlots),
		physicsHz:   cfg.PhysicsHz,
		networkHz:   cfg.NetworkHz,
		netEveryN:   netEveryN,
		inputs:      inputs,
		publisher:   publisher,
		players:     make(map[string]Entity),
		stopCh:      make(chan struct{}),
	}
}

// SetDamageCallback registers a hook invoked for every damage event applied
// during the Collision stage, used by the API layer for death broadcasts.
func (e *Engine) SetDamageCallback(fn func(DamageEvent)) {
	e.onDamage = fn
}

// SetEventLog attaches a match event log; nil disables event emission.
func (e *Engine) SetEventLog(el *EventLog) {
	e.Events = el
}

// Start launches the tick goroutine. It returns immediately; call Stop to
// halt it.
func (e *Engine) Start() {
	e.ticker = time.NewTicker(time.Second / time.Duration(e.physicsHz))
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.ticker.C:
				start := time.Now()
				e.Step()
				e.mu.Lock()
				e.lastTick = time.Since(start)
				e.mu.Unlock()
			case <-e.stopCh:
				return
			}
		}
	}()
	log.Printf("🚀 simulation engine started at %d Hz (network %d Hz)", e.physicsHz, e.networkHz)
}

// Stop halts the tick goroutine and waits for it to exit.
func (e *Engine) Stop() {
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopCh)
	e.wg.Wait()
	log.Printf("🛑 simulation engine stopped at tick %d", e.tick)
}

// Tick returns the current tick count, for diagnostics and tests.
func (e *Engine) Tick() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tick
}

// LastTickDuration reports how long the most recent tick took, for the
// observability gauges.
func (e *Engine) LastTickDuration() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastTick
}

// Step runs one full pass of the 8-stage pipeline. Exported so tests can
// drive deterministic ticks without a real-time ticker.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()

	dt := 1.0 / float64(e.physicsHz)
	e.tick++

	// Input
	e.runInputStage(dt)
	e.World.FlushCommands()

	// AI
	e.runAIStage(dt)
	e.World.FlushCommands()

	// Movement
	StepMovement(e.World, e.Bounds, dt)
	expired := StepProjectiles(e.World, e.Bounds, dt)
	e.World.FlushCommands()

	// Combat (boid firing; player firing happened with their input)
	e.runCombatStage()
	e.World.FlushCommands()

	// Collision & damage
	e.runCollisionStage()
	for _, pe := range expired {
		e.Pool.Release(pe)
		e.World.Despawn(pe)
	}
	e.World.FlushCommands()

	// Resource management
	e.runResourceManagementStage()
	e.World.FlushCommands()

	// Coordinate sync
	e.coord.Sync(e.World)
	e.Effects.Step()

	// Network sync
	if e.tick%uint64(e.netEveryN) == 0 && e.publisher != nil {
		e.publisher.Publish(e.tick, e.World)
	}

	released := e.World.ReleaseDespawned()
	e.coord.Forget(released)
}

// sortedConnIDs returns the connected players' IDs in stable order, so the
// Input stage applies per-connection input deterministically tick to tick.
func (e *Engine) sortedConnIDs() []string {
	ids := make([]string, 0, len(e.players))
	for id := range e.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) runInputStage(dt float64) {
	StepPlayers(e.World, e.tick, e.physicsHz)
	if e.inputs == nil {
		return
	}
	for _, connID := range e.sortedConnIDs() {
		pe := e.players[connID]
		for _, in := range e.inputs.Drain(connID) {
			ApplyPlayerInput(e.World, pe, in, dt, e.Pool, e.rng)
		}
	}
}

// livePlayers returns the player entities still alive, in connID order.
func (e *Engine) livePlayers() []Entity {
	var out []Entity
	for _, connID := range e.sortedConnIDs() {
		if pe := e.players[connID]; e.World.Alive(pe) {
			out = append(out, pe)
		}
	}
	return out
}

func (e *Engine) runAIStage(dt float64) {
	e.Grid.Clear()
	e.World.ForEach(CompBoid|CompTransform, func(b Entity) bool {
		t := e.World.transforms[b.Index]
		e.Grid.Insert(b.Index, t.X, t.Y)
		return true
	})

	players := e.livePlayers()

	// One pass building each group's member list, instead of one world scan
	// per group.
	membersByGroup := make(map[GroupID][]Entity)
	e.World.ForEach(CompBoidGroupMember, func(m Entity) bool {
		ref := e.World.members[m.Index].GroupRef
		membersByGroup[ref] = append(membersByGroup[ref], m)
		return true
	})

	shooterInterval := uint64(e.physicsHz / 2) // reselect every ~0.5s
	if shooterInterval == 0 {
		shooterInterval = 1
	}

	for _, g := range e.Groups.All() {
		members := membersByGroup[g.ID]
		g.MemberCount = len(members)
		g.MaxShooters = MaxShootersFor(len(members))

		interval := uint64(LODInterval(g.LOD, e.physicsHz))
		if interval < 1 {
			interval = 1
		}
		prev := g.Behavior
		if e.tick%interval == 0 {
			EvaluateGroupBehavior(e.World, g, members, players, e.tick, e.physicsHz)
		}
		if g.Behavior != prev {
			if prev == BehaviorRetreating {
				// Rally over; drop the group's shared navigation field.
				e.Flow.Release(fmt.Sprintf("group-%d-rally", g.ID))
			}
			if e.Events != nil {
				e.Events.Emit(Event{
					Type: EventGroupState, Tick: e.tick,
					Detail: fmt.Sprintf("group %d: %s -> %s", g.ID, prev, g.Behavior),
				})
			}
		}
		if e.tick%shooterInterval == 0 {
			g.SelectActiveShooters(e.World, members)
		}
	}

	SelectBoidTargets(e.World, e.Groups, players, e.tick, e.physicsHz)
	StepFlocking(e.World, e.Groups, e.Grid, e.Flow, players, e.Bounds, dt, e.tick, e.physicsHz)
}

// boidSpreadRadians is the random cone applied to each boid shot (±15°).
const boidSpreadRadians = 15 * math.Pi / 180

func (e *Engine) runCombatStage() {
	e.World.ForEach(CompBoidCombat, func(b Entity) bool {
		bc := &e.World.combats[b.Index]
		if bc.CooldownTimer > 0 {
			bc.CooldownTimer--
		}
		if !bc.ShouldShoot || bc.CooldownTimer > 0 || !bc.HasTarget {
			return true
		}
		stats := GetWeapon(bc.Weapon)
		bc.CooldownTimer = stats.CooldownTicks
		bt := e.World.transforms[b.Index]
		tt, err := e.World.GetTransform(bc.Target)
		if err != nil {
			return true
		}
		dx, dy := tt.X-bt.X, tt.Y-bt.Y
		if dx == 0 && dy == 0 {
			return true
		}
		heading := math.Atan2(dy, dx) + (e.rng.Float64()*2-1)*boidSpreadRadians
		owner := b
		weapon := bc.Weapon
		e.World.EnqueueCommand(func(w *World) {
			e.Pool.Acquire(Projectile{
				Damage:        stats.MinDamage,
				Owner:         owner,
				Weapon:        weapon,
				LifetimeTimer: stats.LifetimeTicks,
				Speed:         stats.ProjectileSpd,
				Radius:        stats.Radius,
			}, Transform{X: bt.X, Y: bt.Y, Theta: heading})
		})
		return true
	})
}

func (e *Engine) runCollisionStage() {
	ResolveObstacleCollisions(e.World, 24)

	targets := e.livePlayers()
	e.World.ForEach(CompBoid, func(b Entity) bool {
		targets = append(targets, b)
		return true
	})

	hits := DetectProjectileHits(e.World, e.sweep, targets, 24, 8)
	events := ResolveProjectileHits(e.World, e.Pool, hits, e.tick)
	for _, ev := range events {
		weapon := ""
		if ap, err := e.World.GetPlayer(ev.Attacker); err == nil {
			weapon = ap.Weapon
		} else if bc, err := e.World.GetBoidCombat(ev.Attacker); err == nil {
			weapon = bc.Weapon
		}
		e.Effects.AddHit(ev.X, ev.Y, weapon)

		if ev.Killed {
			killerID, victimID := "", ""
			if ap, err := e.World.GetPlayer(ev.Attacker); err == nil {
				killerID = ap.ConnID
			}
			if vp, err := e.World.GetPlayer(ev.Target); err == nil {
				victimID = vp.ConnID
			}
			e.Leaderboard.RecordKill(killerID, victimID)
			if e.Events != nil {
				e.Events.Emit(Event{Type: EventKill, Tick: e.tick, PlayerID: killerID, TargetID: victimID, Amount: ev.Amount})
			}
		} else if e.Events != nil {
			e.Events.Emit(Event{Type: EventDamage, Tick: e.tick, Amount: ev.Amount})
		}

		if e.onDamage != nil {
			e.onDamage(ev)
		}
	}
}

func (e *Engine) runResourceManagementStage() {
	if e.Pool.NearSaturation() {
		log.Printf("⚠️ projectile pool at %.0f%% utilization", e.Pool.Utilization()*100)
		if e.Events != nil {
			e.Events.Emit(Event{Type: EventPoolWarning, Tick: e.tick, Amount: e.Pool.HighWater()})
		}
	}
}

// AddPlayer spawns a new player for a connection and registers it for input
// routing. Returns the entity handle.
func (e *Engine) AddPlayer(connID, name string) Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	pe := SpawnPlayer(e.World, connID, name, e.Bounds, e.rng)
	e.players[connID] = pe
	if e.Events != nil {
		e.Events.Emit(Event{Type: EventPlayerJoin, Tick: e.tick, PlayerID: connID})
	}
	log.Printf("👤 player %q joined as entity %d/%d", name, pe.Index, pe.Generation)
	return pe
}

// RemovePlayer despawns a connection's player and stops routing its input.
// The entity is marked Despawning immediately and its slot is released at
// the end of the next Step; clients that had it in view receive its Despawn
// on the next network tick.
func (e *Engine) RemovePlayer(connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pe, ok := e.players[connID]; ok {
		e.World.Despawn(pe)
		delete(e.players, connID)
		e.Leaderboard.Remove(connID)
		if e.Events != nil {
			e.Events.Emit(Event{Type: EventPlayerLeave, Tick: e.tick, PlayerID: connID})
		}
	}
}

// PlayerEntity resolves a connection's player entity.
func (e *Engine) PlayerEntity(connID string) (Entity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pe, ok := e.players[connID]
	return pe, ok
}

// PlayerCount returns the number of registered connections.
func (e *Engine) PlayerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.players)
}

// SpawnObstacle places a static rectangular collider in the arena.
func (e *Engine) SpawnObstacle(x, y, halfX, halfY float64) Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	o := e.World.Spawn()
	e.World.SetTransform(o, Transform{X: x, Y: y})
	e.World.SetPosition(o, Position{X: x, Y: y})
	e.World.SetObstacle(o, Obstacle{HalfExtentX: halfX, HalfExtentY: halfY})
	e.Flow.AddObstacle(x, y, halfX, halfY)
	return o
}

// SpawnGroup creates a boid group inside the engine's world.
func (e *Engine) SpawnGroup(archetype BoidArchetype, tactics GroupArchetype, count int, territory Territory) *BoidGroup {
	e.mu.Lock()
	defer e.mu.Unlock()
	return SpawnBoidGroup(e.World, e.Groups, archetype, tactics, count, territory)
}

// EngineStats is a point-in-time operational snapshot for the API layer.
type EngineStats struct {
	Tick            uint64  `json:"tick"`
	Players         int     `json:"players"`
	Boids           int     `json:"boids"`
	Projectiles     int     `json:"projectiles"`
	Groups          int     `json:"groups"`
	PoolUtilization float64 `json:"pool_utilization"`
	PoolFallbacks   uint64  `json:"pool_fallbacks"`
	PoolHighWater   int     `json:"pool_high_water"`
	TickMillis      float64 `json:"tick_millis"`
}

// Stats assembles the current operational snapshot.
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return EngineStats{
		Tick:            e.tick,
		Players:         len(e.players),
		Boids:           e.World.Count(CompBoid),
		Projectiles:     e.World.Count(CompProjectile),
		Groups:          len(e.Groups.groups),
		PoolUtilization: e.Pool.Utilization(),
		PoolFallbacks:   e.Pool.Fallbacks(),
		PoolHighWater:   e.Pool.HighWater(),
		TickMillis:      e.lastTick.Seconds() * 1000,
	}
}
