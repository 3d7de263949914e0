package main

import (
	"context"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boidarena/internal/api"
	"boidarena/internal/config"
	"boidarena/internal/replication"
	"boidarena/internal/simcore"
)

func main() {
	log.Println("🚀 Boid Arena server starting")

	cfg, err := config.Load()
	if err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}

	hub := replication.NewHub(
		cfg.Replication.ViewportWidth/2+cfg.Replication.Margin,
		cfg.Replication.ViewportHeight/2+cfg.Replication.Margin,
	)

	engine := simcore.NewEngine(simcore.EngineConfig{
		PhysicsHz:     cfg.Simulation.PhysicsHz,
		NetworkHz:     cfg.Simulation.NetworkHz,
		ArenaWidth:    cfg.Simulation.ArenaWidth,
		ArenaHeight:   cfg.Simulation.ArenaHeight,
		GridCellSize:  cfg.Simulation.GridCellSize,
		FlowCellSize:  cfg.Simulation.FlowCellSize,
		MaxPoolSlots:  cfg.Pool.MaxSlots,
		InitialPool:   cfg.Pool.InitialPool,
		MaxPlayers:    cfg.Simulation.MaxPlayers,
		MaxProjectile: cfg.Simulation.MaxPlayers*4 + cfg.Pool.MaxSlots,
		MaxBoids:      cfg.Boids.MaxBoids,
		Seed:          cfg.Simulation.Seed,
	}, hub, hub)

	hub.SetEffectsSource(engine.Effects.Hints)

	events := simcore.NewEventLog()
	if err := events.Start(cfg.Server.EventLogPath); err != nil {
		log.Printf("❌ event log: %v", err)
		os.Exit(1)
	}
	engine.SetEventLog(events)

	// Deaths go out on the reliable event channel to everyone.
	engine.SetDamageCallback(func(ev simcore.DamageEvent) {
		if !ev.Killed {
			return
		}
		hub.Broadcast("player_died", map[string]interface{}{
			"id":  ev.Target.Index,
			"gen": ev.Target.Generation,
		})
	})

	seedWorld(engine, cfg)

	api.AddAllowedOrigin(cfg.Server.GameOrigin)
	if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
		log.Printf("❌ debug server: %v", err)
		os.Exit(1)
	}

	server := api.NewServer(
		engine, hub,
		cfg.Server.Port,
		cfg.Simulation.PhysicsHz,
		cfg.Simulation.NetworkHz,
		[]string{cfg.Server.GameOrigin},
	)

	ctx, cancel := context.WithCancel(context.Background())
	go server.StartMetricsPump(ctx, events)

	engine.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("🛑 received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Printf("❌ listener: %v", err)
			cancel()
			engine.Stop()
			events.Stop()
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ shutdown: %v", err)
	}
	cancel()
	engine.Stop()
	events.Stop()
	log.Println("👋 clean shutdown")
}

// seedWorld populates the arena: a few static obstacles and the configured
// boid groups, spread evenly with alternating archetypes.
func seedWorld(engine *simcore.Engine, cfg config.AppConfig) {
	w, h := cfg.Simulation.ArenaWidth, cfg.Simulation.ArenaHeight

	engine.SpawnObstacle(w*0.5, h*0.5, 60, 30)
	engine.SpawnObstacle(w*0.25, h*0.3, 40, 40)
	engine.SpawnObstacle(w*0.75, h*0.7, 40, 40)

	boidArchetypes := []simcore.BoidArchetype{
		simcore.ArchetypeScout, simcore.ArchetypeStandard, simcore.ArchetypeHeavy,
	}
	tactics := []simcore.GroupArchetype{
		simcore.GroupAssault, simcore.GroupDefensive, simcore.GroupRecon,
	}

	for i := 0; i < cfg.Boids.GroupCount; i++ {
		angle := 2 * math.Pi * float64(i) / float64(cfg.Boids.GroupCount)
		territory := simcore.Territory{
			CenterX: w/2 + math.Cos(angle)*w*0.3,
			CenterY: h/2 + math.Sin(angle)*h*0.3,
			Radius:  math.Min(w, h) * 0.15,
		}
		engine.SpawnGroup(
			boidArchetypes[i%len(boidArchetypes)],
			tactics[i%len(tactics)],
			cfg.Boids.BoidsPerGroup,
			territory,
		)
	}

	log.Printf("🌍 arena %gx%g seeded: %d groups × %d boids",
		w, h, cfg.Boids.GroupCount, cfg.Boids.BoidsPerGroup)
}
