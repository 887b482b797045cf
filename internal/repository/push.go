package repository

import (
	"context"

	"peloton/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PushSubscriptionRepository defines persistence operations for Web Push
// subscriptions.
type PushSubscriptionRepository interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) error
	GetForUser(ctx context.Context, userID uint) ([]models.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	DeleteForUser(ctx context.Context, userID uint, endpoint string) error
}

type pushSubscriptionRepository struct {
	db *gorm.DB
}

// NewPushSubscriptionRepository returns a new PushSubscriptionRepository implementation.
func NewPushSubscriptionRepository(db *gorm.DB) PushSubscriptionRepository {
	return &pushSubscriptionRepository{db: db}
}

// Upsert stores the subscription, refreshing the keys and owner when the
// endpoint is already registered. Browsers rotate keys on re-subscribe, so
// the last write wins.
func (r *pushSubscriptionRepository) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
		}).
		Create(sub).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *pushSubscriptionRepository) GetForUser(ctx context.Context, userID uint) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&subs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return subs, nil
}

// DeleteByEndpoint removes the single subscription for the endpoint; used
// when the push service reports it gone. Deleting an unknown endpoint is a
// no-op.
func (r *pushSubscriptionRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	if err := r.db.WithContext(ctx).
		Where("endpoint = ?", endpoint).
		Delete(&models.PushSubscription{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// DeleteForUser removes a user's own subscription by endpoint.
func (r *pushSubscriptionRepository) DeleteForUser(ctx context.Context, userID uint, endpoint string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&models.PushSubscription{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("PushSubscription", endpoint)
	}
	return nil
}
