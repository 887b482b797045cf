package server

import (
	"peloton/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SendFriendRequest creates a pending friend request to another rider.
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	addresseeID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	request, err := s.friendService.SendRequest(c.Context(), userID, addresseeID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusCreated, request)
}

// GetPendingRequests lists friend requests awaiting the user's decision.
func (s *Server) GetPendingRequests(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	requests, err := s.friendService.PendingRequests(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, requests)
}

// GetSentRequests lists pending requests the user has sent.
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	requests, err := s.friendService.SentRequests(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, requests)
}

// AcceptFriendRequest accepts a pending request addressed to the user.
func (s *Server) AcceptFriendRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	requestID, err := parseID(c, "requestId")
	if err != nil {
		return nil
	}

	request, err := s.friendService.AcceptRequest(c.Context(), requestID, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, request)
}

// RejectFriendRequest declines a pending request addressed to the user.
func (s *Server) RejectFriendRequest(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	requestID, err := parseID(c, "requestId")
	if err != nil {
		return nil
	}

	if err := s.friendService.RejectRequest(c.Context(), requestID, userID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Request rejected"})
}

// GetFriends lists the user's friends with their online status.
func (s *Server) GetFriends(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	friends, err := s.friendService.Friends(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	type friendWithPresence struct {
		models.User
		Online bool `json:"online"`
	}
	out := make([]friendWithPresence, 0, len(friends))
	for _, f := range friends {
		out = append(out, friendWithPresence{User: f, Online: s.hub.IsOnline(f.ID)})
	}

	return models.RespondWithData(c, fiber.StatusOK, out)
}

// GetFriendshipStatus reports whether the user and another rider are friends.
func (s *Server) GetFriendshipStatus(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	otherID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	friends, err := s.friendService.AreFriends(c.Context(), userID, otherID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"friends": friends})
}

// RemoveFriend dissolves a friendship.
func (s *Server) RemoveFriend(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	friendID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.friendService.Unfriend(c.Context(), userID, friendID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Friend removed"})
}
