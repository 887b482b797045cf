// Package notifications provides real-time event delivery and presence.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"peloton/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	hubName = "events"

	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// Hub is a websocket hub that maps userID -> list of Clients.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	shutdown   chan struct{}
	done       chan struct{}
	presence   *PresenceTracker
}

// NewHub creates a new Hub. Redis may be nil; presence then degrades to
// local-only tracking. lastSeenTTL of zero uses the package default.
func NewHub(rdb *redis.Client, lastSeenTTL time.Duration) *Hub {
	presence := NewPresenceTracker(rdb, PresenceOptions{
		LastSeenTTL: lastSeenTTL,
	})

	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		presence: presence,
	}
}

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}

	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	client.OnActivity = func(uid uint) {
		h.presence.Touch(context.Background(), uid)
	}

	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	observability.PresenceOnlineUsers.Set(float64(len(h.conns)))
	h.mu.Unlock()

	h.presence.Register(context.Background(), userID)

	return client, nil
}

// UnregisterClient removes a client from the hub and updates presence.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removedClient := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			observability.WebSocketConnectionsTotal.Dec()
			removedClient = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	observability.PresenceOnlineUsers.Set(float64(len(h.conns)))
	h.mu.Unlock()

	if removedClient {
		h.presence.Unregister(context.Background(), client.UserID)
	}
}

// SetPresenceCallbacks registers hooks for online/offline transitions.
func (h *Hub) SetPresenceCallbacks(onOnline, onOffline func(userID uint)) {
	h.presence.SetCallbacks(onOnline, onOffline)
}

// TouchPresence refreshes the user's last-seen marker, e.g. on a heartbeat
// event.
func (h *Hub) TouchPresence(ctx context.Context, userID uint) {
	h.presence.Touch(ctx, userID)
}

// Broadcast sends message to all connections for userID. Returns whether at
// least one local client received it.
func (h *Hub) Broadcast(userID uint, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.conns[userID]
	if !ok || len(clients) == 0 {
		return false
	}
	for c := range clients {
		c.TrySend(message)
	}
	return true
}

// BroadcastEvent marshals and delivers an event to all of a user's local
// connections.
func (h *Hub) BroadcastEvent(userID uint, event Event) bool {
	return h.Broadcast(userID, event.Encode())
}

// BroadcastAll sends message to every connected websocket client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(message)
		}
	}
}

// IsOnline reports whether a user is online, consulting Redis presence when
// available so cross-instance connections count.
func (h *Hub) IsOnline(userID uint) bool {
	return h.presence.IsOnline(context.Background(), userID)
}

// OnlineUserIDs returns all users currently online.
func (h *Hub) OnlineUserIDs(ctx context.Context) []uint {
	return h.presence.OnlineIDs(ctx)
}

// EnablePresenceReaper toggles the background sweep for stale presence
// entries.
func (h *Hub) EnablePresenceReaper(enabled bool) {
	h.presence.SetReaperEnabled(enabled)
}

// StartWiring connects the Notifier to this hub: it subscribes to the Redis
// event pattern and forwards messages to matching userID connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == broadcastChannel {
			h.BroadcastAll([]byte(payload))
			return
		}
		if !strings.HasPrefix(channel, userChannelPrefix) {
			log.Printf("invalid event channel: %s", channel)
			return
		}
		var userID uint
		_, err := fmt.Sscanf(channel, userChannelPrefix+"%d", &userID)
		if err != nil {
			log.Printf("invalid event channel: %s", channel)
			return
		}
		h.Broadcast(userID, []byte(payload))
	})
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	close(h.shutdown)

	h.presence.Stop()

	h.mu.Lock()
	for userID, userConns := range h.conns {
		for client := range userConns {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	close(h.done)

	return nil
}
