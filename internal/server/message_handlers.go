package server

import (
	"peloton/internal/models"

	"github.com/gofiber/fiber/v2"
)

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage sends a direct message to a friend.
func (s *Server) SendMessage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	receiverID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.messageService.Send(c.Context(), userID, receiverID, req.Content)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusCreated, message)
}

// GetConversation returns the message history with another rider.
func (s *Server) GetConversation(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	peerID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	limit, offset := parsePagination(c)

	messages, err := s.messageService.Conversation(c.Context(), userID, peerID, limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, messages)
}

// MarkConversationRead marks every message from a peer as read.
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	peerID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	updated, err := s.messageService.MarkConversationRead(c.Context(), userID, peerID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"marked_read": updated})
}

// GetUnreadMessageCount returns the user's total unread direct messages.
func (s *Server) GetUnreadMessageCount(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	count, err := s.messageService.UnreadCount(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"unread_count": count})
}

// GetConversationPartners lists riders the user has exchanged messages with.
func (s *Server) GetConversationPartners(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	partners, err := s.messageService.ConversationPartners(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, partners)
}

// SendGroupMessage posts a message to a group's chat.
func (s *Server) SendGroupMessage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.messageService.SendToGroup(c.Context(), groupID, userID, req.Content)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusCreated, message)
}

// GetGroupMessages returns a group's chat history. Members only.
func (s *Server) GetGroupMessages(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	limit, offset := parsePagination(c)

	messages, err := s.messageService.GroupMessages(c.Context(), groupID, userID, limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, messages)
}

// MarkGroupMessageRead records a read receipt for one group message. Members
// only.
func (s *Server) MarkGroupMessageRead(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	messageID, err := parseID(c, "messageId")
	if err != nil {
		return nil
	}

	if err := s.messageService.MarkGroupMessageRead(c.Context(), groupID, messageID, userID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Marked read"})
}

// GetGroupUnreadCount returns how many group messages the user has not read.
func (s *Server) GetGroupUnreadCount(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	count, err := s.messageService.GroupUnreadCount(c.Context(), groupID, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"unread_count": count})
}
