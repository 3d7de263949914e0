package replication

import (
	"log"
	"sync"

	"boidarena/internal/simcore"
)

// inputQueueCapacity is rounded up to a power of 2 by the input ring; 256
// in-flight inputs comfortably absorbs a client sending at 60Hz between two
// 20Hz network ticks.
const inputQueueCapacity = 256

// connConn is anything the hub can push an outbound JSON message to. A
// *websocket.Conn satisfies this with a thin adapter at the transport edge,
// keeping this package free of a gorilla/websocket import.
type connConn interface {
	WriteJSON(v interface{}) error
}

type connection struct {
	id     string
	conn   connConn
	player simcore.Entity
	input  *InputQueue
}

// Hub owns every connected client's input queue and outbound socket, and
// publishes interest-filtered StateDeltas once per network tick. It
// replaces a broadcast-identical-state-to-everyone loop: each connection
// gets only the entities inside its own viewport.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*connection
	interest *InterestSet

	viewportHalfWidth, viewportHalfHeight float64

	// effects supplies cosmetic hints attached to deltas; nil means none.
	effects func() []simcore.EffectHint
}

// NewHub creates an empty hub. viewportHalfWidth/Height set the default
// interest window around each connection's player.
func NewHub(viewportHalfWidth, viewportHalfHeight float64) *Hub {
	return &Hub{
		conns:              make(map[string]*connection),
		interest:           NewInterestSet(),
		viewportHalfWidth:  viewportHalfWidth,
		viewportHalfHeight: viewportHalfHeight,
	}
}

// SetEffectsSource attaches a provider of visual-effect hints, sampled once
// per network tick and filtered per viewport.
func (h *Hub) SetEffectsSource(fn func() []simcore.EffectHint) {
	h.effects = fn
}

// Register adds a connection, giving it its own bounded input queue.
func (h *Hub) Register(connID string, player simcore.Entity, sock connConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connID] = &connection{
		id:     connID,
		conn:   sock,
		player: player,
		input:  NewInputQueue(inputQueueCapacity),
	}
}

// Unregister removes a connection and drops its interest-set bookkeeping.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	h.interest.Forget(connID)
}

// PushInput is called from a WebSocket reader goroutine; it never blocks.
// A full queue (a client spamming faster than the simulation drains) drops
// the input rather than stalling the reader.
func (h *Hub) PushInput(connID string, in simcore.Input) bool {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.input.TryPush(in)
}

// Drain implements simcore.InputSource: called once per physics tick from
// the simulation's single consumer goroutine.
func (h *Hub) Drain(connID string) []simcore.Input {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return c.input.Drain(nil)
}

// ConnIDs returns every currently registered connection ID.
func (h *Hub) ConnIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	return ids
}

// ConnCount returns the number of registered connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Send pushes one control/event message to a single connection.
func (h *Hub) Send(connID, event string, data interface{}) bool {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if err := c.conn.WriteJSON(wireEnvelope{Event: event, Data: data}); err != nil {
		log.Printf("replication: send %s to %s failed: %v", event, connID, err)
		return false
	}
	return true
}

// Broadcast pushes one event message to every connection, used for reliable
// match events like player deaths.
func (h *Hub) Broadcast(event string, data interface{}) {
	h.mu.RLock()
	snapshot := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		if err := c.conn.WriteJSON(wireEnvelope{Event: event, Data: data}); err != nil {
			log.Printf("replication: broadcast %s to %s failed: %v", event, c.id, err)
		}
	}
}

// Publish implements simcore.NetworkPublisher: for every connected client,
// compute its viewport-filtered delta and send it. Called only on network
// ticks (every netEveryN physics ticks), never every physics tick.
func (h *Hub) Publish(tick uint64, w *simcore.World) {
	h.mu.RLock()
	snapshot := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	var hints []simcore.EffectHint
	if h.effects != nil {
		hints = h.effects()
	}

	for _, c := range snapshot {
		pos, err := w.GetPosition(c.player)
		if err != nil {
			continue // player despawned since last tick; next Unregister will clean up
		}
		vp := Viewport{
			CenterX: pos.X, CenterY: pos.Y,
			HalfWidth: h.viewportHalfWidth, HalfHeight: h.viewportHalfHeight,
		}
		delta := h.interest.BuildDelta(w, c.id, vp, tick)
		for _, hint := range hints {
			if vp.Contains(hint.X, hint.Y) {
				delta.Effects = append(delta.Effects, hint)
			}
		}
		if len(delta.Added) == 0 && len(delta.Removed) == 0 && len(delta.Updated) == 0 && len(delta.Effects) == 0 {
			continue
		}
		if err := c.conn.WriteJSON(wireEnvelope{Event: "state_delta", Data: delta}); err != nil {
			log.Printf("replication: write to %s failed: %v", c.id, err)
		}
	}
}

// wireEnvelope is the outer {event, data} shape every outbound message is
// wrapped in.
type wireEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
