package server

import (
	"strings"

	"peloton/internal/models"
	"peloton/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile returns the authenticated user's full profile.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userService.Get(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, user)
}

// UpdateMyProfile applies partial updates to the authenticated user's profile.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var input service.UpdateProfileInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.Context(), userID, input)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, user)
}

// ChangeMyPassword rotates the authenticated user's password.
func (s *Server) ChangeMyPassword(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.userService.ChangePassword(c.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Password updated"})
}

// DeleteMyAccount soft-deletes the authenticated user's account.
func (s *Server) DeleteMyAccount(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	if err := s.userService.Delete(c.Context(), userID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Account deleted"})
}

// SearchUsers finds riders by username, city or riding level.
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	city := strings.TrimSpace(c.Query("city"))
	level := models.RidingLevel(c.Query("level"))
	limit, offset := parsePagination(c)

	users, err := s.userService.Search(c.Context(), query, city, level, limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, users)
}

// GetUserProfile returns another rider's public profile.
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetProfile(c.Context(), id, 5)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, user)
}

// GetUserPosts lists a rider's posts, newest first.
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	limit, offset := parsePagination(c)

	// 404 for banned or missing users, same as the profile endpoint.
	if _, err := s.userService.GetProfile(c.Context(), id, 0); err != nil {
		return respondServiceError(c, err)
	}

	posts, err := s.postService.List(c.Context(), nil, &id, limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, posts)
}
