package repository

import (
	"context"
	"errors"
	"time"

	"peloton/internal/cache"
	"peloton/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDWithPosts(ctx context.Context, id uint, limit int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Search(ctx context.Context, query, city string, level models.RidingLevel, limit, offset int) ([]models.User, error)
	TouchActivity(ctx context.Context, id uint, column string, at time.Time, score float64) error
	SetBanned(ctx context.Context, id uint, banned bool) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// cachedUser carries the password hash alongside the model. The model's
// json:"-" tag keeps the hash out of API responses, but the cache round-trips
// through JSON too: without the explicit field a cache hit would come back
// with an empty hash, and a later Save would persist it.
type cachedUser struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var entry cachedUser
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &entry, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&entry.User, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		entry.PasswordHash = entry.User.Password
		return nil
	})

	if err != nil {
		return nil, err
	}

	user := entry.User
	user.Password = entry.PasswordHash
	return &user, nil
}

func (r *userRepository) GetByIDWithPosts(ctx context.Context, id uint, limit int) (*models.User, error) {
	var user models.User
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	if err := r.db.WithContext(ctx).
		Preload("Posts", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Limit(limit)
		}).
		First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("username or email already taken")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("username or email already taken")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.User{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Limit(limit).Offset(offset).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// Search filters riders by username substring, city, and riding level.
// Empty filters are skipped. Results are ordered by interaction score so the
// most active riders surface first.
func (r *userRepository) Search(ctx context.Context, query, city string, level models.RidingLevel, limit, offset int) ([]models.User, error) {
	var users []models.User
	tx := r.db.WithContext(ctx).Model(&models.User{}).Where("is_banned = ?", false)

	if query != "" {
		tx = tx.Where("username LIKE ?", "%"+query+"%")
	}
	if city != "" {
		tx = tx.Where("city = ?", city)
	}
	if level != "" {
		tx = tx.Where("level = ?", level)
	}

	if err := tx.Order("interaction_score DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// TouchActivity stamps one of the activity timestamp columns and stores the
// freshly computed interaction score in the same update.
func (r *userRepository) TouchActivity(ctx context.Context, id uint, column string, at time.Time, score float64) error {
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			column:              at,
			"interaction_score": score,
		}).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) SetBanned(ctx context.Context, id uint, banned bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("is_banned", banned)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}
