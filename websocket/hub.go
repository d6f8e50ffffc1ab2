package websocket

import (
	"encoding/json"
	"sync"

	"citifix/models"

	"github.com/apex/log"
)

// Hub fans complaint lifecycle events out to connected dashboard clients.
type Hub struct {
	clients map[*Client]bool

	broadcast chan []byte

	Register   chan *Client
	Unregister chan *Client

	mutex sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			log.Infof("Feed client connected. Total clients: %d", total)

		case client := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			log.Infof("Feed client disconnected. Total clients: %d", total)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Publish broadcasts one complaint event to every connected client. A slow
// client is dropped rather than allowed to back up the feed.
func (h *Hub) Publish(event models.ComplaintEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Errorf("Failed to marshal complaint event: %v", err)
		return
	}
	h.broadcast <- data
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
