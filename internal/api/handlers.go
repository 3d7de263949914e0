package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"boidarena/internal/replication"
	"boidarena/internal/simcore"
)

// Handlers bundles the read-only match endpoints.
type Handlers struct {
	engine *simcore.Engine
	hub    *replication.Hub
}

// NewHandlers creates the handler set over the live engine and hub.
func NewHandlers(engine *simcore.Engine, hub *replication.Hub) *Handlers {
	return &Handlers{engine: engine, hub: hub}
}

// Health reports liveness plus a couple of cheap vitals.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":      "ok",
		"tick":        h.engine.Tick(),
		"players":     h.engine.PlayerCount(),
		"connections": h.hub.ConnCount(),
	})
}

// Stats returns the engine's operational snapshot.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Stats())
}

// Leaderboard returns the top N players (default 10, capped at 100).
func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	n := 10
	if s := r.URL.Query().Get("n"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			n = v
		}
	}
	if n > 100 {
		n = 100
	}
	writeJSON(w, h.engine.Leaderboard.Top(n))
}

// Weapons returns the weapon balance table, so clients render accurate
// tooltips without hardcoding numbers.
func (h *Handlers) Weapons(w http.ResponseWriter, r *http.Request) {
	type weaponInfo struct {
		ID            string  `json:"id"`
		MinDamage     int     `json:"min_damage"`
		MaxDamage     int     `json:"max_damage"`
		CooldownTicks int     `json:"cooldown_ticks"`
		ProjectileSpd float64 `json:"projectile_speed"`
		LifetimeTicks int     `json:"lifetime_ticks"`
	}
	out := make([]weaponInfo, 0, len(simcore.Weapons))
	for id, stats := range simcore.Weapons {
		out = append(out, weaponInfo{
			ID:            id,
			MinDamage:     stats.MinDamage,
			MaxDamage:     stats.MaxDamage,
			CooldownTicks: stats.CooldownTicks,
			ProjectileSpd: stats.ProjectileSpd,
			LifetimeTicks: stats.LifetimeTicks,
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}
