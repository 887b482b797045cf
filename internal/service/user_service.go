package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"peloton/internal/models"
	"peloton/internal/repository"
	"peloton/internal/validation"
)

// UserService owns rider accounts and profiles.
type UserService struct {
	userRepo repository.UserRepository
	activity *ActivityTracker
}

// NewUserService returns a new UserService. activity may be nil in tests.
func NewUserService(userRepo repository.UserRepository, activity *ActivityTracker) *UserService {
	return &UserService{userRepo: userRepo, activity: activity}
}

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	City     string `json:"city"`
}

// Register creates a new rider account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if err := validation.ValidateUsername(input.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(input.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(input.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateCity(input.City); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: string(hashed),
		City:     input.City,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials and stamps login activity. Banned accounts
// and bad credentials get the same answer: the caller learns nothing about
// which part failed.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.IsBanned {
		return nil, models.NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("invalid credentials")
	}

	if s.activity != nil {
		s.activity.Record(ctx, user.ID, ActivityLogin)
	}
	return user, nil
}

// Get returns a rider by ID.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetProfile returns a rider with their recent posts attached.
func (s *UserService) GetProfile(ctx context.Context, id uint, postsLimit int) (*models.User, error) {
	user, err := s.userRepo.GetByIDWithPosts(ctx, id, postsLimit)
	if err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, models.NewNotFoundError("user", id)
	}
	return user, nil
}

// UpdateProfileInput carries the editable profile fields. Nil pointers mean
// "leave unchanged".
type UpdateProfileInput struct {
	Bio      *string             `json:"bio"`
	Avatar   *string             `json:"avatar"`
	Level    *models.RidingLevel `json:"level"`
	BikeType *models.BikeType    `json:"bike_type"`
	City     *string             `json:"city"`
	Lat      *float64            `json:"lat"`
	Lng      *float64            `json:"lng"`
}

// UpdateProfile applies the non-nil fields of input to the user's profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Bio != nil {
		if err := validation.ValidateBio(*input.Bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Bio = *input.Bio
	}
	if input.Avatar != nil {
		user.Avatar = *input.Avatar
	}
	if input.Level != nil {
		if !models.ValidRidingLevel(*input.Level) {
			return nil, models.NewValidationError("unknown riding level")
		}
		user.Level = *input.Level
	}
	if input.BikeType != nil {
		if !models.ValidBikeType(*input.BikeType) {
			return nil, models.NewValidationError("unknown bike type")
		}
		user.BikeType = *input.BikeType
	}
	if input.City != nil {
		if err := validation.ValidateCity(*input.City); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.City = *input.City
	}
	if input.Lat != nil || input.Lng != nil {
		if input.Lat == nil || input.Lng == nil {
			return nil, models.NewValidationError("lat and lng must be set together")
		}
		if err := validation.ValidateCoordinates(*input.Lat, *input.Lng); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Lat = input.Lat
		user.Lng = input.Lng
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *UserService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return models.NewUnauthorizedError("current password is incorrect")
	}
	if err := validation.ValidatePassword(next); err != nil {
		return models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	user.Password = string(hashed)
	return s.userRepo.Update(ctx, user)
}

// Search finds riders by free text, city and level, ordered by interaction
// score. Banned riders never appear.
func (s *UserService) Search(ctx context.Context, query, city string, level models.RidingLevel, limit, offset int) ([]models.User, error) {
	if level != "" && !models.ValidRidingLevel(level) {
		return nil, models.NewValidationError("unknown riding level")
	}
	return s.userRepo.Search(ctx, query, city, level, limit, offset)
}

// List returns riders paginated, for admin views.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

// Delete removes the rider's account.
func (s *UserService) Delete(ctx context.Context, userID uint) error {
	return s.userRepo.Delete(ctx, userID)
}

// SetBanned flips a rider's ban flag. Admin only; enforced by the caller.
func (s *UserService) SetBanned(ctx context.Context, userID uint, banned bool) error {
	return s.userRepo.SetBanned(ctx, userID, banned)
}
