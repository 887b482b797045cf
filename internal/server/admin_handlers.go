package server

import (
	"peloton/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AdminListUsers lists all accounts, including banned ones.
func (s *Server) AdminListUsers(c *fiber.Ctx) error {
	limit, offset := parsePagination(c)

	users, err := s.userService.List(c.Context(), limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, users)
}

// BanUser suspends an account. Banned users cannot authenticate and disappear
// from profiles and search.
func (s *Server) BanUser(c *fiber.Ctx) error {
	adminID := c.Locals("userID").(uint)
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if targetID == adminID {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("cannot ban yourself"))
	}

	if err := s.userService.SetBanned(c.Context(), targetID, true); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "User banned"})
}

// UnbanUser lifts an account suspension.
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userService.SetBanned(c.Context(), targetID, false); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "User unbanned"})
}

// AdminDeletePost removes any post regardless of author.
func (s *Server) AdminDeletePost(c *fiber.Ctx) error {
	adminID := c.Locals("userID").(uint)
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.Delete(c.Context(), postID, adminID, true); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Post deleted"})
}

// AdminDeleteGroup removes any group regardless of membership or role.
func (s *Server) AdminDeleteGroup(c *fiber.Ctx) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.groupService.AdminDelete(c.Context(), groupID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Group deleted"})
}

// GetFeatureFlags returns the raw flag configuration plus the flags as
// evaluated for the requesting admin.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
