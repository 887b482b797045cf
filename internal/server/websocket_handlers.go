package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"peloton/internal/middleware"
	"peloton/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const typingRateLimit = 20 // events per 10s per user

// WebsocketHandler upgrades the connection and attaches it to the hub. The
// route is guarded by AuthRequired, which resolves the ticket to a userID.
func (s *Server) WebsocketHandler() fiber.Handler {
	wsHandler := websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register rejected",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			_ = conn.Close()
			return
		}

		client.IncomingHandler = s.handleIncomingWS

		welcome := notifications.Event{
			Type:    "connected",
			Payload: fiber.Map{"user_id": userID},
		}
		client.TrySend(welcome.Encode())

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			// Locals set by AuthRequired survive into the upgraded conn.
			return wsHandler(c)
		}
		return fiber.ErrUpgradeRequired
	}
}

type inboundWSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// handleIncomingWS processes client-to-server frames: heartbeats keep the
// presence entry fresh, typing indicators are relayed to the peer.
func (s *Server) handleIncomingWS(client *notifications.Client, raw []byte) {
	var msg inboundWSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch msg.Type {
	case notifications.EventHeartbeat:
		s.hub.TouchPresence(ctx, client.UserID)

	case notifications.EventTypingStart, notifications.EventTypingStop:
		s.relayTyping(ctx, client, msg)
	}
}

// relayTyping forwards a typing indicator to the target conversation: the
// peer of a direct chat, or every member of a group chat except the sender.
func (s *Server) relayTyping(ctx context.Context, client *notifications.Client, msg inboundWSMessage) {
	if !s.featureFlags.Enabled("typing_indicators", client.UserID) {
		return
	}
	if s.redis != nil {
		allowed, err := middleware.CheckRateLimit(ctx, s.redis, "ws_typing",
			fmt.Sprintf("%d", client.UserID), typingRateLimit, 10*time.Second)
		if err == nil && !allowed {
			return
		}
	}

	var payload struct {
		ToUserID uint `json:"to_user_id"`
		GroupID  uint `json:"group_id"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}

	event := notifications.Event{
		Type: msg.Type,
		Payload: notifications.TypingPayload{
			UserID:  client.UserID,
			GroupID: payload.GroupID,
		},
	}

	if payload.GroupID != 0 {
		member, err := s.groupService.IsMember(ctx, payload.GroupID, client.UserID)
		if err != nil || !member {
			return
		}
		memberIDs, err := s.groupRepo.MemberIDs(ctx, payload.GroupID)
		if err != nil {
			return
		}
		for _, id := range memberIDs {
			if id == client.UserID {
				continue
			}
			s.emitRealtime(ctx, id, event)
		}
		return
	}

	if payload.ToUserID == 0 || payload.ToUserID == client.UserID {
		return
	}
	friends, err := s.friendRepo.AreFriends(ctx, client.UserID, payload.ToUserID)
	if err != nil || !friends {
		return
	}
	s.emitRealtime(ctx, payload.ToUserID, event)
}

// emitRealtime delivers an event locally and, when the recipient is connected
// to another instance, via the Redis fan-out channel.
func (s *Server) emitRealtime(ctx context.Context, userID uint, event notifications.Event) {
	s.hub.BroadcastEvent(userID, event)
	if s.notifier != nil {
		if err := s.notifier.PublishUserEvent(ctx, userID, event); err != nil {
			middleware.Logger.Warn("realtime publish failed",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
		}
	}
}
