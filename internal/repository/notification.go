package repository

import (
	"context"
	"errors"

	"peloton/internal/cache"
	"peloton/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id, userID uint) (bool, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	Delete(ctx context.Context, id, userID uint) error
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository returns a new NotificationRepository implementation.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateNotificationCount(ctx, n.RecipientID)
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).Preload("Actor").First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Notification", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &n, nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	var ns []models.Notification
	tx := r.db.WithContext(ctx).Where("recipient_id = ?", userID)
	if unreadOnly {
		tx = tx.Where("is_read = ?", false)
	}
	if err := tx.
		Preload("Actor").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&ns).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ns, nil
}

// UnreadCount returns the badge count. Cached for a minute; every
// notification write for the recipient invalidates it.
func (r *notificationRepository) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	key := cache.NotificationCountKey(userID)

	err := cache.Aside(ctx, key, &count, cache.NotificationCntTTL, func() error {
		if err := r.db.WithContext(ctx).
			Model(&models.Notification{}).
			Where("recipient_id = ? AND is_read = ?", userID, false).
			Count(&count).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead flips a single notification owned by userID. The bool reports
// whether a row actually changed.
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ? AND is_read = ?", id, userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		cache.InvalidateNotificationCount(ctx, userID)
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	cache.InvalidateNotificationCount(ctx, userID)
	return res.RowsAffected, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id, userID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	cache.InvalidateNotificationCount(ctx, userID)
	return nil
}
