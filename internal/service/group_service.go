package service

import (
	"context"

	"peloton/internal/models"
	"peloton/internal/repository"
	"peloton/internal/validation"
)

// GroupService owns riding groups, membership and group images.
type GroupService struct {
	groupRepo repository.GroupRepository
}

// NewGroupService returns a new GroupService.
func NewGroupService(groupRepo repository.GroupRepository) *GroupService {
	return &GroupService{groupRepo: groupRepo}
}

// CreateGroupInput is the payload for creating a group.
type CreateGroupInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Type        models.GroupType `json:"type"`
	City        string           `json:"city"`
	Lat         *float64         `json:"lat"`
	Lng         *float64         `json:"lng"`
	ImageURLs   []string         `json:"image_urls"`
}

// Create creates a group and enrolls the creator as its first admin.
// Location groups require a city and coordinates.
func (s *GroupService) Create(ctx context.Context, creatorID uint, input CreateGroupInput) (*models.Group, error) {
	if err := validation.ValidateGroupName(input.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if input.Type == "" {
		input.Type = models.GroupTypeGeneral
	}
	if !models.ValidGroupType(input.Type) {
		return nil, models.NewValidationError("unknown group type")
	}
	if input.Type == models.GroupTypeLocation {
		if input.City == "" || input.Lat == nil || input.Lng == nil {
			return nil, models.NewValidationError("location groups require city, lat and lng")
		}
		if err := validation.ValidateCoordinates(*input.Lat, *input.Lng); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	group := &models.Group{
		Name:        input.Name,
		Description: input.Description,
		Type:        input.Type,
		City:        input.City,
		Lat:         input.Lat,
		Lng:         input.Lng,
		CreatedBy:   creatorID,
	}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, err
	}

	member := &models.GroupMember{
		GroupID: group.ID,
		UserID:  creatorID,
		Role:    models.GroupMemberRoleAdmin,
	}
	if err := s.groupRepo.AddMember(ctx, member); err != nil {
		return nil, err
	}

	if len(input.ImageURLs) > 0 {
		if err := s.setImages(ctx, group.ID, input.ImageURLs); err != nil {
			return nil, err
		}
	}
	return s.groupRepo.GetByID(ctx, group.ID)
}

// Get returns a group with members and images.
func (s *GroupService) Get(ctx context.Context, id uint) (*models.Group, error) {
	return s.groupRepo.GetByID(ctx, id)
}

// List returns groups filtered by type and city.
func (s *GroupService) List(ctx context.Context, groupType models.GroupType, city string, limit, offset int) ([]models.Group, error) {
	if groupType != "" && !models.ValidGroupType(groupType) {
		return nil, models.NewValidationError("unknown group type")
	}
	return s.groupRepo.List(ctx, groupType, city, limit, offset)
}

// ListForUser returns the groups the user belongs to.
func (s *GroupService) ListForUser(ctx context.Context, userID uint) ([]models.Group, error) {
	return s.groupRepo.ListForUser(ctx, userID)
}

// UpdateGroupInput carries editable group fields. Nil means unchanged.
type UpdateGroupInput struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	City        *string  `json:"city"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	ImageURLs   []string `json:"image_urls"`
}

// Update edits a group. Admin role required.
func (s *GroupService) Update(ctx context.Context, groupID, userID uint, input UpdateGroupInput) (*models.Group, error) {
	if err := s.requireAdmin(ctx, groupID, userID); err != nil {
		return nil, err
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if err := validation.ValidateGroupName(*input.Name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		group.Name = *input.Name
	}
	if input.Description != nil {
		group.Description = *input.Description
	}
	if input.City != nil {
		if group.Type == models.GroupTypeLocation && *input.City == "" {
			return nil, models.NewValidationError("location groups require a city")
		}
		group.City = *input.City
	}
	if input.Lat != nil || input.Lng != nil {
		if input.Lat == nil || input.Lng == nil {
			return nil, models.NewValidationError("lat and lng must be set together")
		}
		if err := validation.ValidateCoordinates(*input.Lat, *input.Lng); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		group.Lat = input.Lat
		group.Lng = input.Lng
	}

	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, err
	}
	if input.ImageURLs != nil {
		if err := s.setImages(ctx, groupID, input.ImageURLs); err != nil {
			return nil, err
		}
	}
	return s.groupRepo.GetByID(ctx, groupID)
}

// Delete removes a group. Admin role required.
func (s *GroupService) Delete(ctx context.Context, groupID, userID uint) error {
	if err := s.requireAdmin(ctx, groupID, userID); err != nil {
		return err
	}
	return s.groupRepo.Delete(ctx, groupID)
}

// AdminDelete removes a group without a membership check. Site moderation
// only; regular deletion goes through Delete.
func (s *GroupService) AdminDelete(ctx context.Context, groupID uint) error {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return err
	}
	return s.groupRepo.Delete(ctx, groupID)
}

// Join adds the user as a member. Joining twice is a no-op.
func (s *GroupService) Join(ctx context.Context, groupID, userID uint) error {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return err
	}
	return s.groupRepo.AddMember(ctx, &models.GroupMember{
		GroupID: groupID,
		UserID:  userID,
		Role:    models.GroupMemberRoleMember,
	})
}

// Leave removes the user from the group. The last admin cannot leave without
// promoting someone first.
func (s *GroupService) Leave(ctx context.Context, groupID, userID uint) error {
	member, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return models.NewNotFoundError("group membership", groupID)
	}
	if member.Role == models.GroupMemberRoleAdmin {
		admins, err := s.groupRepo.CountAdmins(ctx, groupID)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return models.NewConflictError("promote another admin before leaving the group")
		}
	}
	return s.groupRepo.RemoveMember(ctx, groupID, userID)
}

// KickMember removes another member. Admin role required; admins cannot be
// kicked.
func (s *GroupService) KickMember(ctx context.Context, groupID, adminID, targetID uint) error {
	if err := s.requireAdmin(ctx, groupID, adminID); err != nil {
		return err
	}
	if adminID == targetID {
		return models.NewValidationError("use leave to remove yourself")
	}
	target, err := s.groupRepo.GetMember(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return models.NewNotFoundError("group membership", targetID)
	}
	if target.Role == models.GroupMemberRoleAdmin {
		return models.NewConflictError("admins cannot be kicked; demote them first")
	}
	return s.groupRepo.RemoveMember(ctx, groupID, targetID)
}

// SetMemberRole promotes or demotes a member. Admin role required; the last
// admin cannot demote themself.
func (s *GroupService) SetMemberRole(ctx context.Context, groupID, adminID, targetID uint, role models.GroupMemberRole) error {
	if role != models.GroupMemberRoleAdmin && role != models.GroupMemberRoleMember {
		return models.NewValidationError("unknown member role")
	}
	if err := s.requireAdmin(ctx, groupID, adminID); err != nil {
		return err
	}
	if adminID == targetID && role == models.GroupMemberRoleMember {
		admins, err := s.groupRepo.CountAdmins(ctx, groupID)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return models.NewConflictError("promote another admin before stepping down")
		}
	}
	return s.groupRepo.UpdateMemberRole(ctx, groupID, targetID, role)
}

// Members lists the group's members with profiles.
func (s *GroupService) Members(ctx context.Context, groupID uint) ([]models.GroupMember, error) {
	return s.groupRepo.GetMembers(ctx, groupID)
}

// IsMember reports membership; used by the message and post layers.
func (s *GroupService) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	member, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return member != nil, nil
}

func (s *GroupService) requireAdmin(ctx context.Context, groupID, userID uint) error {
	member, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member == nil || member.Role != models.GroupMemberRoleAdmin {
		return models.NewUnauthorizedError("group admin role required")
	}
	return nil
}

func (s *GroupService) setImages(ctx context.Context, groupID uint, urls []string) error {
	images := make([]models.GroupImage, 0, len(urls))
	for _, url := range urls {
		if url == "" {
			return models.NewValidationError("image url cannot be empty")
		}
		images = append(images, models.GroupImage{GroupID: groupID, URL: url})
	}
	return s.groupRepo.ReplaceImages(ctx, groupID, images)
}
