package repository

import (
	"context"
	"errors"

	"peloton/internal/cache"
	"peloton/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FriendRepository defines persistence operations for friend requests and
// friendships.
type FriendRepository interface {
	CreateRequest(ctx context.Context, req *models.FriendRequest) error
	GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	GetPendingRequestBetween(ctx context.Context, userID1, userID2 uint) (*models.FriendRequest, error)
	GetPendingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	GetSentRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	MarkRequestAccepted(ctx context.Context, requestID uint) (bool, error)
	MarkRequestRejected(ctx context.Context, requestID uint) (bool, error)
	CreateFriendshipPair(ctx context.Context, userID1, userID2 uint) error
	AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error)
	GetFriends(ctx context.Context, userID uint) ([]models.User, error)
	RemoveFriendship(ctx context.Context, userID1, userID2 uint) error
}

type friendRepository struct {
	db *gorm.DB
}

// NewFriendRepository returns a new FriendRepository implementation.
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

func (r *friendRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("friend request already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).
		Preload("Requester").
		Preload("Addressee").
		First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("FriendRequest", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

// GetPendingRequestBetween finds a pending request in either direction.
// Returns nil when none exists.
func (r *friendRepository) GetPendingRequestBetween(ctx context.Context, userID1, userID2 uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).
		Where("status = ? AND ((requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?))",
			models.FriendRequestStatusPending, userID1, userID2, userID2, userID1).
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *friendRepository) GetPendingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	if err := r.db.WithContext(ctx).
		Where("addressee_id = ? AND status = ?", userID, models.FriendRequestStatusPending).
		Preload("Requester").
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *friendRepository) GetSentRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	if err := r.db.WithContext(ctx).
		Where("requester_id = ? AND status = ?", userID, models.FriendRequestStatusPending).
		Preload("Addressee").
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

// MarkRequestAccepted flips a pending request to accepted. The status guard in
// the WHERE clause makes a retried accept a no-op; the bool reports whether
// this call performed the transition.
func (r *friendRepository) MarkRequestAccepted(ctx context.Context, requestID uint) (bool, error) {
	return r.transitionRequest(ctx, requestID, models.FriendRequestStatusAccepted)
}

// MarkRequestRejected flips a pending request to rejected.
func (r *friendRepository) MarkRequestRejected(ctx context.Context, requestID uint) (bool, error) {
	return r.transitionRequest(ctx, requestID, models.FriendRequestStatusRejected)
}

func (r *friendRepository) transitionRequest(ctx context.Context, requestID uint, to models.FriendRequestStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FriendRequest{}).
		Where("id = ? AND status = ?", requestID, models.FriendRequestStatusPending).
		Update("status", to)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CreateFriendshipPair inserts both directed friendship rows in one
// transaction. ON CONFLICT DO NOTHING makes the insert idempotent, so a
// replayed accept never produces duplicate rows.
func (r *friendRepository) CreateFriendshipPair(ctx context.Context, userID1, userID2 uint) error {
	rows := []models.Friendship{
		{UserID: userID1, FriendID: userID2},
		{UserID: userID2, FriendID: userID1},
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, userID1)
	cache.InvalidateUser(ctx, userID2)
	return nil
}

func (r *friendRepository) AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userID1, userID2).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// GetFriends returns the user's friends ordered by interaction score. The
// list is cached briefly; friendship writes invalidate it for both sides.
func (r *friendRepository) GetFriends(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	key := cache.FriendListKey(userID)

	err := cache.Aside(ctx, key, &users, cache.FriendListTTL, func() error {
		if err := r.db.WithContext(ctx).
			Table("users").
			Joins("JOIN friendships f ON users.id = f.friend_id").
			Where("f.user_id = ? AND users.deleted_at IS NULL", userID).
			Order("users.interaction_score DESC").
			Find(&users).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// RemoveFriendship deletes both directions of the pair. Removing an already
// removed friendship is a no-op.
func (r *friendRepository) RemoveFriendship(ctx context.Context, userID1, userID2 uint) error {
	if err := r.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID1, userID2, userID2, userID1).
		Delete(&models.Friendship{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, userID1)
	cache.InvalidateUser(ctx, userID2)
	return nil
}
