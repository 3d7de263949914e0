package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"boidarena/internal/replication"
	"boidarena/internal/simcore"
)

// Server wraps the public HTTP listener around the router.
type Server struct {
	engine *simcore.Engine
	hub    *replication.Hub
	http   *http.Server
}

// NewServer creates the public API server on the given port.
func NewServer(engine *simcore.Engine, hub *replication.Hub, port, tickHz, networkHz int, extraOrigins []string) *Server {
	router := NewRouter(RouterConfig{
		Engine:       engine,
		Hub:          hub,
		TickRateHz:   tickHz,
		NetworkHz:    networkHz,
		ExtraOrigins: extraOrigins,
	})

	return &Server{
		engine: engine,
		hub:    hub,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // WebSocket sessions stay open indefinitely
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	log.Printf("🌐 API server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// StartMetricsPump periodically copies engine/event-log stats into the
// Prometheus gauges until ctx is done. Run it in its own goroutine.
func (s *Server) StartMetricsPump(ctx context.Context, events *simcore.EventLog) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.engine.Stats()
			UpdateEntityCounts(stats.Players, stats.Boids, stats.Projectiles)
			UpdatePoolStats(stats.PoolUtilization, stats.PoolFallbacks)
			RecordTick(s.engine.LastTickDuration())
			if events != nil {
				total, dropped := events.Stats()
				UpdateEventLogStats(total, dropped)
			}
		}
	}
}
