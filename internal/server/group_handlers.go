package server

import (
	"peloton/internal/models"
	"peloton/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateGroup creates a riding group with the caller as its first admin.
func (s *Server) CreateGroup(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var input service.CreateGroupInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	group, err := s.groupService.Create(c.Context(), userID, input)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusCreated, group)
}

// GetGroups lists groups, filterable by type and city.
func (s *Server) GetGroups(c *fiber.Ctx) error {
	groupType := models.GroupType(c.Query("type"))
	city := c.Query("city")
	limit, offset := parsePagination(c)

	groups, err := s.groupService.List(c.Context(), groupType, city, limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, groups)
}

// GetMyGroups lists the groups the caller belongs to.
func (s *Server) GetMyGroups(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	groups, err := s.groupService.ListForUser(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, groups)
}

// GetGroup returns a single group with its images.
func (s *Server) GetGroup(c *fiber.Ctx) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	group, err := s.groupService.Get(c.Context(), groupID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, group)
}

// UpdateGroup edits a group. Group admins only.
func (s *Server) UpdateGroup(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var input service.UpdateGroupInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	group, err := s.groupService.Update(c.Context(), groupID, userID, input)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, group)
}

// DeleteGroup removes a group. Group admins only.
func (s *Server) DeleteGroup(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.groupService.Delete(c.Context(), groupID, userID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Group deleted"})
}

// JoinGroup adds the caller to a group as a regular member.
func (s *Server) JoinGroup(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.groupService.Join(c.Context(), groupID, userID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Joined group"})
}

// LeaveGroup removes the caller from a group. The last admin cannot leave.
func (s *Server) LeaveGroup(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.groupService.Leave(c.Context(), groupID, userID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Left group"})
}

// GetGroupMembers lists a group's members with their roles.
func (s *Server) GetGroupMembers(c *fiber.Ctx) error {
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	members, err := s.groupService.Members(c.Context(), groupID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, members)
}

// KickGroupMember removes a regular member from a group. Group admins only.
func (s *Server) KickGroupMember(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.groupService.KickMember(c.Context(), groupID, userID, targetID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Member removed"})
}

// SetGroupMemberRole promotes or demotes a group member. Group admins only.
func (s *Server) SetGroupMemberRole(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	groupID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		Role models.GroupMemberRole `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.groupService.SetMemberRole(c.Context(), groupID, userID, targetID, req.Role); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Role updated"})
}
