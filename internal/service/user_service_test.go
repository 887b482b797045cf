package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"peloton/internal/models"
)

type stubUserRepo struct {
	GetByIDFunc          func(ctx context.Context, id uint) (*models.User, error)
	GetByIDWithPostsFunc func(ctx context.Context, id uint, limit int) (*models.User, error)
	GetByEmailFunc       func(ctx context.Context, email string) (*models.User, error)
	GetByUsernameFunc    func(ctx context.Context, username string) (*models.User, error)
	CreateFunc           func(ctx context.Context, user *models.User) error
	UpdateFunc           func(ctx context.Context, user *models.User) error
	DeleteFunc           func(ctx context.Context, id uint) error
	ListFunc             func(ctx context.Context, limit, offset int) ([]models.User, error)
	SearchFunc           func(ctx context.Context, query, city string, level models.RidingLevel, limit, offset int) ([]models.User, error)
	TouchActivityFunc    func(ctx context.Context, id uint, column string, at time.Time, score float64) error
	SetBannedFunc        func(ctx context.Context, id uint, banned bool) error
}

func (s *stubUserRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.GetByIDFunc(ctx, id)
}

func (s *stubUserRepo) GetByIDWithPosts(ctx context.Context, id uint, limit int) (*models.User, error) {
	return s.GetByIDWithPostsFunc(ctx, id, limit)
}

func (s *stubUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.GetByEmailFunc(ctx, email)
}

func (s *stubUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.GetByUsernameFunc(ctx, username)
}

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	return s.CreateFunc(ctx, user)
}

func (s *stubUserRepo) Update(ctx context.Context, user *models.User) error {
	return s.UpdateFunc(ctx, user)
}

func (s *stubUserRepo) Delete(ctx context.Context, id uint) error {
	return s.DeleteFunc(ctx, id)
}

func (s *stubUserRepo) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.ListFunc(ctx, limit, offset)
}

func (s *stubUserRepo) Search(ctx context.Context, query, city string, level models.RidingLevel, limit, offset int) ([]models.User, error) {
	return s.SearchFunc(ctx, query, city, level, limit, offset)
}

func (s *stubUserRepo) TouchActivity(ctx context.Context, id uint, column string, at time.Time, score float64) error {
	return s.TouchActivityFunc(ctx, id, column, at, score)
}

func (s *stubUserRepo) SetBanned(ctx context.Context, id uint, banned bool) error {
	return s.SetBannedFunc(ctx, id, banned)
}

func TestRegisterValidatesInput(t *testing.T) {
	repo := &stubUserRepo{
		CreateFunc: func(_ context.Context, _ *models.User) error {
			t.Fatal("Create should not be called")
			return nil
		},
	}
	svc := NewUserService(repo, nil)

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"Short Username", RegisterInput{Username: "ab", Email: "a@example.com", Password: "SecurePass12!@"}},
		{"Bad Email", RegisterInput{Username: "rider", Email: "nope", Password: "SecurePass12!@"}},
		{"Weak Password", RegisterInput{Username: "rider", Email: "a@example.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.input)
			assertAppErrCode(t, err, models.ErrCodeValidation)
		})
	}
}

func TestRegisterHashesAndNormalizes(t *testing.T) {
	var created *models.User
	repo := &stubUserRepo{
		CreateFunc: func(_ context.Context, user *models.User) error {
			user.ID = 10
			created = user
			return nil
		},
	}
	svc := NewUserService(repo, nil)

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "rider_42",
		Email:    "  Rider@Example.COM ",
		Password: "SecurePass12!@",
		City:     "Girona",
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "rider@example.com", user.Email)
	assert.NotEqual(t, "SecurePass12!@", user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("SecurePass12!@")))
}

func TestAuthenticateWrongPassword(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("SecurePass12!@"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubUserRepo{
		GetByEmailFunc: func(_ context.Context, _ string) (*models.User, error) {
			return &models.User{ID: 1, Password: string(hashed)}, nil
		},
	}
	svc := NewUserService(repo, nil)

	_, err = svc.Authenticate(context.Background(), "a@example.com", "WrongPass12!@")
	assertAppErrCode(t, err, models.ErrCodeUnauthorized)
}

func TestAuthenticateBannedLooksLikeBadCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("SecurePass12!@"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubUserRepo{
		GetByEmailFunc: func(_ context.Context, _ string) (*models.User, error) {
			return &models.User{ID: 1, Password: string(hashed), IsBanned: true}, nil
		},
	}
	svc := NewUserService(repo, nil)

	_, err = svc.Authenticate(context.Background(), "a@example.com", "SecurePass12!@")
	assertAppErrCode(t, err, models.ErrCodeUnauthorized)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	repo := &stubUserRepo{
		GetByEmailFunc: func(_ context.Context, _ string) (*models.User, error) {
			return nil, nil
		},
	}
	svc := NewUserService(repo, nil)

	_, err := svc.Authenticate(context.Background(), "ghost@example.com", "whatever")
	assertAppErrCode(t, err, models.ErrCodeUnauthorized)
}

func TestUpdateProfilePartial(t *testing.T) {
	stored := &models.User{ID: 1, Bio: "old", City: "Girona", Level: models.RidingLevelBeginner}
	repo := &stubUserRepo{
		GetByIDFunc: func(_ context.Context, _ uint) (*models.User, error) {
			copy := *stored
			return &copy, nil
		},
		UpdateFunc: func(_ context.Context, user *models.User) error {
			stored = user
			return nil
		},
	}
	svc := NewUserService(repo, nil)

	bio := "chasing KOMs"
	updated, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "chasing KOMs", updated.Bio)
	assert.Equal(t, "Girona", updated.City)
}

func TestUpdateProfileRejectsLoneCoordinate(t *testing.T) {
	repo := &stubUserRepo{
		GetByIDFunc: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
	}
	svc := NewUserService(repo, nil)

	lat := 59.33
	_, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{Lat: &lat})
	assertAppErrCode(t, err, models.ErrCodeValidation)
}

func TestUpdateProfileRejectsUnknownLevel(t *testing.T) {
	repo := &stubUserRepo{
		GetByIDFunc: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
	}
	svc := NewUserService(repo, nil)

	level := models.RidingLevel("legendary")
	_, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{Level: &level})
	assertAppErrCode(t, err, models.ErrCodeValidation)
}

func TestGetProfileHidesBanned(t *testing.T) {
	repo := &stubUserRepo{
		GetByIDWithPostsFunc: func(_ context.Context, id uint, _ int) (*models.User, error) {
			return &models.User{ID: id, IsBanned: true}, nil
		},
	}
	svc := NewUserService(repo, nil)

	_, err := svc.GetProfile(context.Background(), 4, 10)
	assertAppErrCode(t, err, models.ErrCodeNotFound)
}

func TestSearchRejectsUnknownLevel(t *testing.T) {
	svc := NewUserService(&stubUserRepo{}, nil)

	_, err := svc.Search(context.Background(), "", "", models.RidingLevel("legendary"), 20, 0)
	assertAppErrCode(t, err, models.ErrCodeValidation)
}
