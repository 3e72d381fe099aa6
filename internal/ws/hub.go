package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"whatsapp-crm/internal/models"
	"whatsapp-crm/internal/phone"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard runs on a different origin
	},
}

// Client is a connected dashboard socket. A client may subscribe to a
// single conversation by passing ?telefone=; with no filter it receives
// every event.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	telefone string
}

type event struct {
	payload  []byte
	telefone string
}

// Hub maintains the set of active clients and fans events out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan event
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan event),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Println("WebSocket client registered")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Println("WebSocket client unregistered")
		case ev := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.telefone != "" && ev.telefone != "" && client.telefone != ev.telefone {
					continue
				}
				select {
				case client.send <- ev.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

type WSEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// BroadcastEvent delivers an event to every client. Pass a non-empty
// telefone to restrict delivery to that conversation's subscribers.
func (h *Hub) BroadcastEvent(eventType string, data any, telefone string) {
	payload, err := json.Marshal(WSEvent{Type: eventType, Data: data})
	if err != nil {
		log.Printf("Error marshaling WS event: %v", err)
		return
	}
	h.broadcast <- event{payload: payload, telefone: telefone}
}

// NotifyMessage pushes a persisted message to the dashboard.
func (h *Hub) NotifyMessage(msg models.Message) {
	h.BroadcastEvent("new_message", msg, msg.Telefone)
}

// NotifyLead pushes a lead create/update to the dashboard.
func (h *Hub) NotifyLead(lead *models.Lead) {
	h.BroadcastEvent("lead_update", lead, "")
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		telefone: phone.Normalize(r.URL.Query().Get("telefone")),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		// Clients only listen; reads exist to detect the close.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
