package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

type Client struct {
	ID   string
	Send chan []byte
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:   id,
		Send: make(chan []byte, bufferSize),
	}
}

// Event is pushed to every connected client.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

const EventNetworkRebuilt = "network_rebuilt"

type NetworkRebuiltPayload struct {
	Version  string `json:"version"`
	Stations int    `json:"stations"`
	Edges    int    `json:"edges"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []byte, 64),
		logger:     logger.With("component", "hub"),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", total)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.fanout(msg)
		}
	}
}

// Broadcast queues an event for every client. Events are dropped when the
// queue is full.
func (h *Hub) Broadcast(e Event) {
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("failed to encode event", "type", e.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "type", e.Type)
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) fanout(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Send <- msg:
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
}
