// Package recommend — WebSocket hub for real-time mandi price broadcasting.
package recommend

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agrianalytics/mandi-engine/internal/metrics"
)

// PriceUpdate is a JSON message sent to WebSocket clients when a fresh
// modal price is observed for a (commodity, mandi) pair.
type PriceUpdate struct {
	Type        string `json:"type"`
	CommodityID int64  `json:"commodity_id"`
	MandiID     int64  `json:"mandi_id"`
	Price       string `json:"price"`
	Forecast    string `json:"forecast,omitempty"`
	Trend       string `json:"trend,omitempty"`
	AsOfDate    string `json:"as_of_date"`
}

// PriceHub manages WebSocket connections and broadcasts price updates
// to all connected clients.
type PriceHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewPriceHub creates a new WebSocket hub.
func NewPriceHub() *PriceHub {
	return &PriceHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *PriceHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			slog.Info("ws client connected", "total", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))

		case msg := <-h.broadcast:
			// Write lock: failed writes evict the client inline.
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastPriceUpdate sends a price update to all connected clients.
func (h *PriceHub) BroadcastPriceUpdate(msg PriceUpdate) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop if buffer full to avoid blocking the ingest path.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *PriceHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- conn

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if !h.ping(conn) {
				return
			}
		}
	}()
}

// ping writes a ping frame while holding the read lock, so it can
// never interleave with the broadcast loop's writes on the same
// connection (gorilla/websocket forbids concurrent writers). Returns
// false once the client is gone or the write fails.
func (h *PriceHub) ping(conn *websocket.Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[conn]; !ok {
		return false
	}
	return conn.WriteMessage(websocket.PingMessage, nil) == nil
}
