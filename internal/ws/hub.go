package ws

import (
	"FunnelRouter/entity"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Event represents a WebSocket event sent to monitoring clients.
type Event struct {
	Type string      `json:"type"` // "pipeline"
	Data interface{} `json:"data"`
}

type broadcastItem struct {
	event *Event
	ev    entity.PipelineEvent
}

// Hub maintains the set of active WebSocket clients and broadcasts pipeline events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan broadcastItem
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	log        *slog.Logger
}

// NewHub creates a new Hub instance.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan broadcastItem, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's event loop until ctx is done. Should be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case item := <-h.broadcast:
			data, err := json.Marshal(item.event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				if !client.filter.match(item.ev) {
					continue
				}
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues a pipeline event for all matching clients. It never blocks the
// pipeline: events are dropped while the buffer is full.
func (h *Hub) Broadcast(ev entity.PipelineEvent) {
	select {
	case h.broadcast <- broadcastItem{event: &Event{Type: "pipeline", Data: ev}, ev: ev}:
	default:
		if h.log != nil {
			h.log.Debug("ws broadcast buffer full, event dropped", slog.String("key", ev.Key))
		}
	}
}
