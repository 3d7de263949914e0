// Package api exposes the server's HTTP surface: the WebSocket endpoint
// carrying the game protocol, read-only match endpoints (stats,
// leaderboard, weapons), health checks, and Prometheus metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"boidarena/internal/replication"
	"boidarena/internal/simcore"
)

// RouterConfig contains all dependencies needed to construct the HTTP
// router. Designed for dependency injection: tests hand in a bare engine
// and hub without opening a listener.
type RouterConfig struct {
	Engine *simcore.Engine
	Hub    *replication.Hub

	TickRateHz int
	NetworkHz  int

	// RateLimitConfig overrides the default per-IP HTTP rate limits when
	// non-nil.
	RateLimitConfig *RateLimitConfig

	// ExtraOrigins are appended to the CORS allowlist (the deployed site).
	ExtraOrigins []string
}

// NewRouter builds the chi router for the public listener.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metricsMiddleware)

	allowed := append([]string{"http://localhost:3000", "http://localhost:8080"}, cfg.ExtraOrigins...)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	rlCfg := DefaultRateLimitConfig
	if cfg.RateLimitConfig != nil {
		rlCfg = *cfg.RateLimitConfig
	}
	limiter := NewIPRateLimiter(rlCfg)

	handlers := NewHandlers(cfg.Engine, cfg.Hub)
	ws := NewWSHandler(cfg.Engine, cfg.Hub, cfg.TickRateHz, cfg.NetworkHz)

	// The WebSocket upgrade skips the HTTP rate limiter: connection count is
	// bounded separately per IP inside the handler.
	r.Handle("/ws", ws)

	r.Get("/healthz", handlers.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(limiter.Middleware)
		api.Get("/stats", handlers.Stats)
		api.Get("/leaderboard", handlers.Leaderboard)
		api.Get("/weapons", handlers.Weapons)
	})

	return r
}

// metricsMiddleware records request latency/counts with bounded labels.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		RecordRequest(r.Method, pattern, ww.Status(), time.Since(start))
	})
}
