// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all simulation and server
// settings.
//
// Configuration is read once at startup from environment variables and is
// immutable for the lifetime of the match; there is no hot reload. A
// configuration that fails validation exits the process non-zero.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// =============================================================================
// ARENA & SIMULATION
// =============================================================================

// SimulationConfig holds the fixed-tick simulation parameters.
type SimulationConfig struct {
	ArenaWidth  float64 // world units
	ArenaHeight float64
	SpawnX      float64 // read from SPAWN_X; not passed to the engine, which always spawns players at a random arena point
	SpawnY      float64

	PhysicsHz int // simulation ticks per second
	NetworkHz int // replication ticks per second; must divide PhysicsHz

	MaxPlayers int
	Seed       int64 // deterministic RNG seed (0 = fixed default)

	GridCellSize float64 // spatial grid cell size
	FlowCellSize float64 // flow field cell size (smaller = smoother paths)
}

// DefaultSimulation returns the default simulation configuration.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		ArenaWidth:   1200,
		ArenaHeight:  900,
		PhysicsHz:    60,
		NetworkHz:    20,
		MaxPlayers:   64,
		GridCellSize: 100,
		FlowCellSize: 50,
	}
}

// SimulationFromEnv returns simulation configuration with environment
// variable overrides.
func SimulationFromEnv() SimulationConfig {
	cfg := DefaultSimulation()

	if v := getEnvFloat("ARENA_WIDTH", 0); v > 0 {
		cfg.ArenaWidth = v
	}
	if v := getEnvFloat("ARENA_HEIGHT", 0); v > 0 {
		cfg.ArenaHeight = v
	}
	if v := getEnvFloat("SPAWN_X", 0); v > 0 {
		cfg.SpawnX = v
	}
	if v := getEnvFloat("SPAWN_Y", 0); v > 0 {
		cfg.SpawnY = v
	}
	if v := getEnvInt("PHYSICS_HZ", 0); v > 0 {
		cfg.PhysicsHz = v
	}
	if v := getEnvInt("NETWORK_HZ", 0); v > 0 {
		cfg.NetworkHz = v
	}
	if v := getEnvInt("MAX_PLAYERS", 0); v > 0 {
		cfg.MaxPlayers = v
	}
	if v := getEnvInt("SIM_SEED", 0); v != 0 {
		cfg.Seed = int64(v)
	}
	if v := getEnvFloat("GRID_CELL_SIZE", 0); v > 0 {
		cfg.GridCellSize = v
	}

	return cfg
}

// =============================================================================
// PROJECTILE POOL
// =============================================================================

// PoolConfig bounds the projectile pool.
type PoolConfig struct {
	MaxSlots    int // hard cap on pooled projectiles
	InitialPool int // slots pre-warmed at match start
}

// DefaultPool returns the default pool configuration.
func DefaultPool() PoolConfig {
	return PoolConfig{
		MaxSlots:    500,
		InitialPool: 100,
	}
}

// PoolFromEnv returns pool configuration with environment overrides.
func PoolFromEnv() PoolConfig {
	cfg := DefaultPool()
	if v := getEnvInt("POOL_MAX", 0); v > 0 {
		cfg.MaxSlots = v
	}
	if v := getEnvInt("POOL_INITIAL", 0); v > 0 {
		cfg.InitialPool = v
	}
	return cfg
}

// =============================================================================
// BOID POPULATION
// =============================================================================

// BoidConfig sizes the AI population spawned at match start.
type BoidConfig struct {
	GroupCount    int
	BoidsPerGroup int
	MaxBoids      int // world-store reservation ceiling
}

// DefaultBoids returns the default boid population.
func DefaultBoids() BoidConfig {
	return BoidConfig{
		GroupCount:    6,
		BoidsPerGroup: 24,
		MaxBoids:      10_000,
	}
}

// BoidsFromEnv returns boid configuration with environment overrides.
func BoidsFromEnv() BoidConfig {
	cfg := DefaultBoids()
	if v := getEnvInt("BOID_GROUPS", 0); v > 0 {
		cfg.GroupCount = v
	}
	if v := getEnvInt("BOIDS_PER_GROUP", 0); v > 0 {
		cfg.BoidsPerGroup = v
	}
	if v := getEnvInt("MAX_BOIDS", 0); v > 0 {
		cfg.MaxBoids = v
	}
	return cfg
}

// =============================================================================
// REPLICATION
// =============================================================================

// ReplicationConfig shapes per-connection interest filtering.
type ReplicationConfig struct {
	ViewportWidth  float64 // interest window, larger than the client screen
	ViewportHeight float64
	Margin         float64
}

// DefaultReplication returns the default replication configuration.
func DefaultReplication() ReplicationConfig {
	return ReplicationConfig{
		ViewportWidth:  1600,
		ViewportHeight: 1200,
		Margin:         100,
	}
}

// ReplicationFromEnv returns replication configuration with environment
// overrides.
func ReplicationFromEnv() ReplicationConfig {
	cfg := DefaultReplication()
	if v := getEnvFloat("VIEWPORT_WIDTH", 0); v > 0 {
		cfg.ViewportWidth = v
	}
	if v := getEnvFloat("VIEWPORT_HEIGHT", 0); v > 0 {
		cfg.ViewportHeight = v
	}
	if v := getEnvFloat("VIEWPORT_MARGIN", 0); v > 0 {
		cfg.Margin = v
	}
	return cfg
}

// =============================================================================
// SERVER
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	GameOrigin   string // extra allowed origin for CORS/WebSocket
	EventLogPath string // empty = log events to stderr
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 3000,
	}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	cfg.GameOrigin = os.Getenv("GAME_ORIGIN")
	cfg.EventLogPath = os.Getenv("EVENT_LOG_PATH")
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Simulation  SimulationConfig
	Pool        PoolConfig
	Boids       BoidConfig
	Replication ReplicationConfig
	Server      ServerConfig
}

// Load returns the complete configuration with environment overrides,
// validated. A non-nil error means the process must not start.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		Simulation:  SimulationFromEnv(),
		Pool:        PoolFromEnv(),
		Boids:       BoidsFromEnv(),
		Replication: ReplicationFromEnv(),
		Server:      ServerFromEnv(),
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate enforces the cross-field constraints the simulation assumes.
func (c AppConfig) Validate() error {
	s := c.Simulation
	if s.ArenaWidth <= 0 || s.ArenaHeight <= 0 {
		return fmt.Errorf("config: arena %gx%g must be positive", s.ArenaWidth, s.ArenaHeight)
	}
	if s.PhysicsHz <= 0 {
		return fmt.Errorf("config: physics rate %d Hz must be positive", s.PhysicsHz)
	}
	if s.NetworkHz <= 0 {
		return fmt.Errorf("config: network rate %d Hz must be positive", s.NetworkHz)
	}
	if s.PhysicsHz%s.NetworkHz != 0 {
		return fmt.Errorf("config: network rate %d Hz must evenly divide physics rate %d Hz", s.NetworkHz, s.PhysicsHz)
	}
	if s.MaxPlayers <= 0 {
		return fmt.Errorf("config: max players %d must be positive", s.MaxPlayers)
	}
	if s.GridCellSize <= 0 {
		return fmt.Errorf("config: grid cell size %g must be positive", s.GridCellSize)
	}
	if c.Pool.MaxSlots <= 0 {
		return fmt.Errorf("config: pool max %d must be positive", c.Pool.MaxSlots)
	}
	if c.Pool.InitialPool <= 0 || c.Pool.InitialPool > c.Pool.MaxSlots {
		return fmt.Errorf("config: initial pool %d must be in 1..%d", c.Pool.InitialPool, c.Pool.MaxSlots)
	}
	if c.Boids.GroupCount < 0 || c.Boids.BoidsPerGroup < 0 {
		return fmt.Errorf("config: boid population must be non-negative")
	}
	if c.Replication.ViewportWidth <= 0 || c.Replication.ViewportHeight <= 0 {
		return fmt.Errorf("config: viewport %gx%g must be positive", c.Replication.ViewportWidth, c.Replication.ViewportHeight)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
