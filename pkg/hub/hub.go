// Package hub provides a thread-safe websocket broadcast hub
// using the channel-based fan-out pattern. The control loop pushes
// status and trial-event frames in; every connected dashboard gets
// a copy, and slow consumers are dropped rather than allowed to
// stall the broadcast.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/walklab/go-quadwalk/internal/log"
)

// Hub maintains the set of active clients and broadcasts frames to them.
type Hub struct {
	name string

	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex
}

// New creates a hub. Run must be started in a goroutine before clients
// attach.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It owns the client set; all mutation goes
// through the channels. Returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("hub client connected", "hub", h.name, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("hub client disconnected", "hub", h.name, "clients", count)

		case frame := <-h.broadcast:
			// Write lock: the slow-client branch mutates the map, and
			// ClientCount may be reading it from another goroutine.
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					// Client's buffer is full, they're too slow.
					close(client.send)
					delete(h.clients, client)
					log.Warn("dropped slow hub client", "hub", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends the Run loop. Clients still attached unwind on their own when
// their connections close.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast queues a frame for every connected client. If the broadcast
// queue is full the frame is dropped; status frames are periodic and the
// next one supersedes it anyway.
func (h *Hub) Broadcast(frame []byte) {
	select {
	case h.broadcast <- frame:
	default:
		log.Warn("hub broadcast queue full, dropping frame", "hub", h.name)
	}
}

// BroadcastJSON encodes and broadcasts a JSON frame.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
