package server

import (
	"strings"

	"peloton/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications lists the caller's notifications, newest first. Pass
// ?unread=true to restrict to unread ones.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	limit, offset := parsePagination(c)
	unreadOnly := c.QueryBool("unread", false)

	notifications, err := s.notificationService.List(c.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, notifications)
}

// GetUnreadNotificationCount returns the caller's unread notification count.
func (s *Server) GetUnreadNotificationCount(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	count, err := s.notificationService.UnreadCount(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"unread_count": count})
}

// MarkNotificationRead marks one of the caller's notifications as read.
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notificationService.MarkRead(c.Context(), id, userID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Marked read"})
}

// MarkAllNotificationsRead marks every unread notification as read.
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	updated, err := s.notificationService.MarkAllRead(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"marked_read": updated})
}

// DeleteNotification removes one of the caller's notifications.
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notificationService.Delete(c.Context(), id, userID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Notification deleted"})
}

// GetPushPublicKey returns the VAPID public key the service worker needs to
// subscribe. Empty when push is not configured.
func (s *Server) GetPushPublicKey(c *fiber.Ctx) error {
	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{
		"public_key": s.config.VAPIDPublicKey,
		"enabled":    s.config.PushEnabled(),
	})
}

type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// SubscribePush registers a browser push subscription for the caller.
// Re-subscribing the same endpoint updates its keys.
func (s *Server) SubscribePush(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req pushSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("endpoint, p256dh and auth are required"))
	}

	sub := &models.PushSubscription{
		UserID:   userID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := s.notificationService.Subscribe(c.Context(), sub); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusCreated, fiber.Map{"message": "Subscribed"})
}

// UnsubscribePush removes the caller's push subscription for an endpoint.
func (s *Server) UnsubscribePush(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if strings.TrimSpace(req.Endpoint) == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("endpoint is required"))
	}

	if err := s.notificationService.Unsubscribe(c.Context(), userID, req.Endpoint); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Unsubscribed"})
}
