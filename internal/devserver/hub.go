package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/salvacomida/miniapp/internal/observability/logger"
)

// Hub mantiene las conexiones websocket agrupadas en rooms. Un room se
// identifica como "<tipo>:<id>" (ej: "seller:7", "user:42"). El primer
// frame del cliente es el subscribe; después el servidor solo empuja.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*websocket.Conn]bool

	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Stub de desarrollo: acepta cualquier origen.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

type subscribeFrame struct {
	SubscriberType string `json:"subscriber_type"`
	SubscriberID   string `json:"subscriber_id"`
}

// ServeWS upgradea la conexión, lee el frame de suscripción y deja la
// conexión registrada en su room hasta que el peer cierre.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn("ws upgrade falló", logger.Err(err))
		return
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var sub subscribeFrame
	if err := conn.ReadJSON(&sub); err != nil || sub.SubscriberType == "" || sub.SubscriberID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "subscribe esperado"))
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	room := RoomKey(sub.SubscriberType, sub.SubscriberID)
	h.join(room, conn)
	logger.L().Info("suscriptor conectado", zap.String("room", room))

	// Drenar frames entrantes (pings del cliente) hasta el cierre.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.leave(room, conn)
	conn.Close()
	logger.L().Info("suscriptor desconectado", zap.String("room", room))
}

// RoomKey normaliza el identificador de room.
func RoomKey(subscriberType, subscriberID string) string {
	return fmt.Sprintf("%s:%s", subscriberType, subscriberID)
}

func (h *Hub) join(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*websocket.Conn]bool)
	}
	h.rooms[room][conn] = true
}

func (h *Hub) leave(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], conn)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast serializa v como JSON y lo envía a todas las conexiones del
// room. Las conexiones que fallan al escribir se expulsan.
func (h *Hub) Broadcast(room string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.L().Error("broadcast marshal", zap.String("room", room), logger.Err(err))
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.leave(room, c)
			c.Close()
		}
	}
}

// Subscribers devuelve cuántas conexiones hay en un room.
func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close cierra todas las conexiones registradas.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, conns := range h.rooms {
		for c := range conns {
			c.Close()
		}
		delete(h.rooms, room)
	}
}
