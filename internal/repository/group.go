package repository

import (
	"context"
	"errors"

	"peloton/internal/cache"
	"peloton/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroupRepository defines persistence operations for groups, their members
// and images.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id uint) (*models.Group, error)
	List(ctx context.Context, groupType models.GroupType, city string, limit, offset int) ([]models.Group, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Group, error)
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id uint) error

	AddMember(ctx context.Context, member *models.GroupMember) error
	RemoveMember(ctx context.Context, groupID, userID uint) error
	UpdateMemberRole(ctx context.Context, groupID, userID uint, role models.GroupMemberRole) error
	GetMembers(ctx context.Context, groupID uint) ([]models.GroupMember, error)
	GetMember(ctx context.Context, groupID, userID uint) (*models.GroupMember, error)
	CountAdmins(ctx context.Context, groupID uint) (int64, error)
	MemberIDs(ctx context.Context, groupID uint) ([]uint, error)

	ReplaceImages(ctx context.Context, groupID uint, images []models.GroupImage) error
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository returns a new GroupRepository implementation.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("group name already taken")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// GetByID loads the group aggregate with ordered images and members. Cached
// under the group key; every group and membership write invalidates it.
func (r *groupRepository) GetByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	key := cache.GroupKey(id)

	err := cache.Aside(ctx, key, &group, cache.GroupTTL, func() error {
		if err := r.db.WithContext(ctx).
			Preload("Images", func(db *gorm.DB) *gorm.DB {
				return db.Order("position ASC")
			}).
			Preload("Members.User").
			First(&group, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Group", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	group.MemberCount = len(group.Members)
	return &group, nil
}

func (r *groupRepository) List(ctx context.Context, groupType models.GroupType, city string, limit, offset int) ([]models.Group, error) {
	var groups []models.Group
	tx := r.db.WithContext(ctx).Model(&models.Group{})
	if groupType != "" {
		tx = tx.Where("type = ?", groupType)
	}
	if city != "" {
		tx = tx.Where("city = ?", city)
	}
	if err := tx.
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&groups).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return groups, nil
}

func (r *groupRepository) ListForUser(ctx context.Context, userID uint) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).
		Joins("JOIN group_members gm ON gm.group_id = groups.id").
		Where("gm.user_id = ?", userID).
		Order("groups.name ASC").
		Find(&groups).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return groups, nil
}

// Update persists the group's own columns. Members and images have dedicated
// write paths and never ride along, so a loaded aggregate can be saved back
// without touching its associations.
func (r *groupRepository) Update(ctx context.Context, group *models.Group) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(group).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("group name already taken")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateGroup(ctx, group.ID)
	return nil
}

func (r *groupRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Group{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateGroup(ctx, id)
	return nil
}

func (r *groupRepository) AddMember(ctx context.Context, member *models.GroupMember) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(member).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateGroup(ctx, member.GroupID)
	return nil
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("GroupMember", userID)
	}
	cache.InvalidateGroup(ctx, groupID)
	return nil
}

func (r *groupRepository) UpdateMemberRole(ctx context.Context, groupID, userID uint, role models.GroupMemberRole) error {
	res := r.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("role", role)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("GroupMember", userID)
	}
	cache.InvalidateGroup(ctx, groupID)
	return nil
}

func (r *groupRepository) GetMembers(ctx context.Context, groupID uint) ([]models.GroupMember, error) {
	var members []models.GroupMember
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Preload("User").
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}

// GetMember returns nil when the user is not a member.
func (r *groupRepository) GetMember(ctx context.Context, groupID, userID uint) (*models.GroupMember, error) {
	var member models.GroupMember
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &member, nil
}

func (r *groupRepository) CountAdmins(ctx context.Context, groupID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id = ? AND role = ?", groupID, models.GroupMemberRoleAdmin).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// MemberIDs returns the user ids of all members, used for group fan-out.
func (r *groupRepository) MemberIDs(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// ReplaceImages swaps the group's image set in one transaction, preserving
// the caller-supplied ordering.
func (r *groupRepository) ReplaceImages(ctx context.Context, groupID uint, images []models.GroupImage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupImage{}).Error; err != nil {
			return err
		}
		if len(images) == 0 {
			return nil
		}
		for i := range images {
			images[i].GroupID = groupID
			images[i].Position = i
		}
		return tx.Create(&images).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateGroup(ctx, groupID)
	return nil
}
