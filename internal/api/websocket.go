package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"boidarena/internal/replication"
	"boidarena/internal/simcore"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed.
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP.
	MaxWSConnectionsPerIP = 10

	// maxProtocolViolations closes a connection that keeps sending malformed
	// or out-of-range messages.
	maxProtocolViolations = 50

	// inputRatePerSecond bounds how many input messages per second a single
	// connection may deliver (clients send at their frame rate, so 120/s is
	// generous).
	inputRatePerSecond = 120

	writeTimeout = 5 * time.Second
	readLimit    = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// wsConn adapts a *websocket.Conn to the replication hub's write interface,
// serializing writes because gorilla connections allow only one concurrent
// writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// inbound is the {event, data} envelope clients send.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// helloMsg opens a session.
type helloMsg struct {
	Name          string `json:"name"`
	ClientVersion string `json:"client_version"`
}

// welcomeMsg answers a hello with everything the client needs to interpret
// the replication stream.
type welcomeMsg struct {
	PlayerID    uint32  `json:"player_id"`
	PlayerGen   uint32  `json:"player_gen"`
	ArenaWidth  float64 `json:"arena_width"`
	ArenaHeight float64 `json:"arena_height"`
	TickRateHz  int     `json:"tick_rate_hz"`
	NetworkHz   int     `json:"network_hz"`
}

// inputMsg is the raw wire shape of one input sample; validated and
// re-normalized server-side before it touches the simulation.
type inputMsg struct {
	Seq      uint32     `json:"seq"`
	Movement [2]float64 `json:"movement"`
	Aim      [2]float64 `json:"aim"`
	Thrust   float64    `json:"thrust"`
	Shooting bool       `json:"shooting"`
	Dodge    bool       `json:"dodge"`
}

// WSHandler upgrades connections and runs the control/input protocol:
// Hello -> Welcome, then a stream of Input messages until Disconnect or
// transport close. State deltas flow the other way via the replication hub.
type WSHandler struct {
	engine    *simcore.Engine
	hub       *replication.Hub
	limiter   *WebSocketRateLimiter
	tickHz    int
	networkHz int

	nextConnID uint64
	total      int64 // atomic count of open sockets
}

// NewWSHandler wires the WebSocket endpoint to the simulation and hub.
func NewWSHandler(engine *simcore.Engine, hub *replication.Hub, tickHz, networkHz int) *WSHandler {
	return &WSHandler{
		engine:    engine,
		hub:       hub,
		limiter:   NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
		tickHz:    tickHz,
		networkHz: networkHz,
	}
}

// ServeHTTP handles one WebSocket session for its whole lifetime.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if int(atomic.LoadInt64(&h.total)) >= MaxWSConnectionsTotal {
		RecordConnectionRejected("ws_limit")
		http.Error(w, "server full", http.StatusServiceUnavailable)
		return
	}

	ip := GetClientIP(r)
	if !h.limiter.Allow(ip) {
		RecordConnectionRejected("ws_limit")
		http.Error(w, "too many connections from this address", http.StatusTooManyRequests)
		return
	}

	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.limiter.Release(ip)
		return
	}
	atomic.AddInt64(&h.total, 1)
	UpdateWSConnections(int(atomic.LoadInt64(&h.total)))

	go h.session(sock, ip)
}

// session runs the read loop for one connection.
func (h *WSHandler) session(sock *websocket.Conn, ip string) {
	connID := fmt.Sprintf("conn-%d", atomic.AddUint64(&h.nextConnID, 1))
	conn := &wsConn{conn: sock}
	sock.SetReadLimit(readLimit)

	inputLimiter := rate.NewLimiter(inputRatePerSecond, inputRatePerSecond/4)
	violations := 0
	joined := false

	defer func() {
		if joined {
			h.engine.RemovePlayer(connID)
			h.hub.Unregister(connID)
		}
		sock.Close()
		h.limiter.Release(ip)
		UpdateWSConnections(int(atomic.AddInt64(&h.total, -1)))
		log.Printf("🔌 %s closed (%d violations)", connID, violations)
	}()

	for {
		var msg inbound
		if err := sock.ReadJSON(&msg); err != nil {
			return
		}
		IncrementWSMessages()

		switch msg.Event {
		case "hello":
			if joined {
				violations++
				break
			}
			var hello helloMsg
			if err := json.Unmarshal(msg.Data, &hello); err != nil {
				violations++
				break
			}
			name := hello.Name
			if name == "" {
				name = connID
			}
			pe := h.engine.AddPlayer(connID, name)
			h.hub.Register(connID, pe, conn)
			joined = true
			conn.WriteJSON(map[string]interface{}{
				"event": "welcome",
				"data": welcomeMsg{
					PlayerID:    pe.Index,
					PlayerGen:   pe.Generation,
					ArenaWidth:  h.engine.Bounds.Width,
					ArenaHeight: h.engine.Bounds.Height,
					TickRateHz:  h.tickHz,
					NetworkHz:   h.networkHz,
				},
			})

		case "input":
			if !joined {
				violations++
				break
			}
			if !inputLimiter.Allow() {
				// Flooding input is a protocol violation, not a free retry.
				violations++
				break
			}
			var raw inputMsg
			if err := json.Unmarshal(msg.Data, &raw); err != nil {
				violations++
				break
			}
			in := simcore.Input{
				Seq:      raw.Seq,
				MoveX:    raw.Movement[0],
				MoveY:    raw.Movement[1],
				AimX:     raw.Aim[0],
				AimY:     raw.Aim[1],
				Thrust:   raw.Thrust,
				Shooting: raw.Shooting,
				Dodge:    raw.Dodge,
			}
			if !simcore.ValidateInput(in) {
				violations++
				RecordProtocolViolation()
				break
			}
			h.hub.PushInput(connID, in)

		case "disconnect":
			return

		default:
			violations++
		}

		if violations >= maxProtocolViolations {
			log.Printf("⚠️ %s exceeded protocol violation budget, closing", connID)
			RecordConnectionRejected("invalid")
			return
		}
	}
}
