package notify

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"facemark/internal/observability"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard may be served from another origin
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes notifications to connected dashboard WebSocket clients. It
// implements Sink. The clients map is owned by the Run goroutine; all
// mutation goes through the channels.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
}

// NewHub creates a hub; call Run in a goroutine before serving connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

var _ Sink = (*Hub)(nil)

// Run is the hub event loop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			observability.WSConnections.Inc()

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				observability.WSConnections.Dec()
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// client buffer full, disconnect
					delete(h.clients, c)
					close(c.send)
					observability.WSConnections.Dec()
				}
			}
		}
	}
}

// Publish broadcasts a notification to every connected client.
func (h *Hub) Publish(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal ws notification: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// broadcast buffer full; drop rather than block the notifier
	}
}

// HandleWS upgrades the request and registers the client.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, 64)}
	h.register <- cl

	go cl.writePump()
	go cl.readPump(h)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		// clients don't send anything; the loop exists to detect disconnects
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
