package ws

import (
	"FrappeBot/entity"
	"FrappeBot/internal/lib/sl"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

const clientActionTimeout = 5 * time.Second

// ClientMessageHandler handles actions sent by dashboard clients.
type ClientMessageHandler interface {
	ResetConversation(ctx context.Context, phone string) error
}

// Event represents a WebSocket event sent to dashboard clients.
type Event struct {
	Type string      `json:"type"` // "new_message", "order_completed", "order_status_changed"
	Data interface{} `json:"data"`
}

// Hub maintains the set of active WebSocket clients and broadcasts events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	handler    ClientMessageHandler
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With(sl.Module("ws.hub")),
	}
}

func (h *Hub) SetHandler(handler ClientMessageHandler) {
	h.handler = handler
}

// Run starts the hub's event loop until ctx is done. Should be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
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

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
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

// publish drops the event when the buffer is full so message handling never waits on the dashboard.
func (h *Hub) publish(event *Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.With(slog.String("event", event.Type)).Warn("ws broadcast buffer full, event dropped")
	}
}

// BroadcastMessage sends a new_message event to all connected clients.
func (h *Hub) BroadcastMessage(msg entity.ChatMessage) {
	h.publish(&Event{
		Type: "new_message",
		Data: msg,
	})
}

// BroadcastOrder sends an order event to all connected clients.
func (h *Hub) BroadcastOrder(eventType string, order *entity.Order) {
	h.publish(&Event{
		Type: eventType,
		Data: order,
	})
}

// clientEvent represents an incoming WebSocket message from a dashboard client.
type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleClientMessage parses and dispatches an incoming message from a client.
func (h *Hub) HandleClientMessage(username string, raw []byte) {
	if h.handler == nil {
		return
	}

	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.log.With(sl.Err(err)).Warn("failed to parse client ws message")
		return
	}

	switch event.Type {
	case "reset_conversation":
		var data struct {
			Phone string `json:"phone"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil {
			h.log.With(sl.Err(err)).Warn("failed to parse reset_conversation data")
			return
		}
		if data.Phone == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), clientActionTimeout)
		defer cancel()
		if err := h.handler.ResetConversation(ctx, data.Phone); err != nil {
			h.log.With(
				slog.String("username", username),
				slog.String("phone", data.Phone),
				sl.Err(err),
			).Error("failed to handle reset_conversation")
		}
	}
}
