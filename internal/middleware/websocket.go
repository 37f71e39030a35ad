package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"procman/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	// broadcastBacklog keeps the monitor's tick publishing non-blocking
	// while the hub drains slow clients.
	broadcastBacklog = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dashboard; origin checks handled by auth layer
	},
}

// Hub fans snapshot payloads out to connected dashboard clients.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
	logger     *utils.Logger
}

func NewHub(logger *utils.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBacklog),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case conn := <-h.register:
			h.mutex.Lock()
			h.clients[conn] = true
			h.mutex.Unlock()
			h.logf("WebSocket client connected")

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()
			h.logf("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.writeToClients(websocket.TextMessage, message)

		case <-pingTicker.C:
			h.writePingToClients()
		}
	}
}

func (h *Hub) writeToClients(messageType int, payload []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			h.logf("WebSocket set write deadline error: %v", err)
		}
		if err := conn.WriteMessage(messageType, payload); err != nil {
			h.logf("WebSocket write error: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) writePingToClients() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		deadline := time.Now().Add(writeWait)
		if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			h.logf("WebSocket ping error: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Broadcast queues a payload for delivery to all clients. When the backlog
// is full the payload is dropped; the next tick supersedes it anyway.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logf("WebSocket broadcast backlog full, dropping payload")
	}
}

func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) HandleWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logf("WebSocket upgrade error: %v", err)
			return
		}

		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		h.register <- conn

		defer func() {
			h.unregister <- conn
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
					h.logf("WebSocket error: %v", err)
				}
				break
			}
		}
	}
}

func (h *Hub) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if h.logger != nil {
		h.logger.Write(msg)
		return
	}
	utils.NewLogger("").Write(msg)
}
