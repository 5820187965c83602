package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/brokerhub/gamification/internal/domain"
)

// Message types
const (
	MessageTypeRankingUpdate = "ranking_update"
	MessageTypeNotification  = "notification"
	MessageTypeSubscribe     = "subscribe"
	MessageTypeUnsubscribe   = "unsubscribe"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeError         = "error"
)

// ChannelRanking is the broadcast channel for live ranking updates
const ChannelRanking = "ranking"

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// RankingUpdate carries the current weekly ranking for broadcast
type RankingUpdate struct {
	Entries []domain.RankingEntry `json:"entries"`
}

// Hub maintains the set of active clients. Ranking updates fan out to
// clients subscribed to the ranking channel; notifications go only to
// the connections of the addressed user. The hub implements the
// scoring engine's notification sink.
type Hub struct {
	// Registered clients by channel
	channels map[string]map[*Client]bool

	// Connected clients by user ID
	userClients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Outbound messages
	broadcast chan *Message

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client  *Client
	channel string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		channels:    make(map[string]map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			if client.userID != "" {
				if _, ok := h.userClients[client.userID]; !ok {
					h.userClients[client.userID] = make(map[*Client]bool)
				}
				h.userClients[client.userID][client] = true
			}
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id, "user_id", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for channel, clients := range h.channels {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.channels, channel)
						}
					}
				}
				if clients, ok := h.userClients[client.userID]; ok {
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.userClients, client.userID)
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.channels[req.channel]; !ok {
				h.channels[req.channel] = make(map[*Client]bool)
			}
			h.channels[req.channel][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "channel", req.channel)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.channels[req.channel]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.channels, req.channel)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "channel", req.channel)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to all clients on its channel, or to
// every client when no channel is set
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	if message.Channel != "" {
		if clients, ok := h.channels[message.Channel]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Client's buffer is full, skip
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

// BroadcastRankingUpdate fans the current weekly ranking out to all
// clients subscribed to the ranking channel
func (h *Hub) BroadcastRankingUpdate(entries []domain.RankingEntry) {
	message := &Message{
		Type:      MessageTypeRankingUpdate,
		Channel:   ChannelRanking,
		Data:      RankingUpdate{Entries: entries},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Notify delivers a notification to the connections of its addressed
// user. Users without an open connection simply miss it; delivery is
// best-effort and never blocks the caller.
func (h *Hub) Notify(notification domain.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.userClients[notification.UserID]
	if !ok {
		return
	}

	message := Message{
		Type:      MessageTypeNotification,
		Data:      notification,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal notification", "error", err)
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping notification", "client_id", client.id)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a channel
func (h *Hub) Subscribe(client *Client, channel string) {
	h.subscribe <- &subscriptionRequest{
		client:  client,
		channel: channel,
	}
}

// Unsubscribe removes a client from a channel
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.unsubscribe <- &subscriptionRequest{
		client:  client,
		channel: channel,
	}
}

// GetSubscriberCount returns the number of subscribers for a channel
func (h *Hub) GetSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.channels[channel]; ok {
		return len(clients)
	}
	return 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
