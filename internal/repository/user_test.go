package repository

import (
	"context"
	"testing"
	"time"

	"peloton/internal/models"
	"peloton/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CRUD(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	user := newTestUser(t, "ur")

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Username, got.Username)
	})

	t.Run("missing user is a not-found error", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 999999)
		require.Error(t, err)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.ErrCodeNotFound, appErr.Code)
	})

	t.Run("lookup by email and username return nil when absent", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "nobody@peloton.test")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = repo.GetByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate username is a conflict", func(t *testing.T) {
		dup := &models.User{
			Username: user.Username,
			Email:    "different@peloton.test",
			Password: "hashed",
		}
		err := repo.Create(ctx, dup)
		require.Error(t, err)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.ErrCodeConflict, appErr.Code)
	})
}

func TestUserRepository_TouchActivity(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	user := newTestUser(t, "ur_touch")
	now := time.Now()

	updated := *user
	updated.LastLoginAt = &now
	score := scoring.InteractionScore(&updated, now)

	require.NoError(t, repo.TouchActivity(ctx, user.ID, "last_login_at", now, score))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.InDelta(t, score, got.InteractionScore, 1e-9)
	assert.Greater(t, got.InteractionScore, 0.0)
}

func TestUserRepository_SearchAndBan(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	rider := newTestUser(t, "ur_search")
	testDB.Model(&models.User{}).Where("id = ?", rider.ID).
		Updates(map[string]interface{}{"city": "Ghent", "level": models.RidingLevelAdvanced})

	t.Run("search by city and level", func(t *testing.T) {
		users, err := repo.Search(ctx, "ur_search", "Ghent", models.RidingLevelAdvanced, 10, 0)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, rider.ID, users[0].ID)
	})

	t.Run("banned users drop out of search", func(t *testing.T) {
		require.NoError(t, repo.SetBanned(ctx, rider.ID, true))

		users, err := repo.Search(ctx, "ur_search", "Ghent", models.RidingLevelAdvanced, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, users)

		require.NoError(t, repo.SetBanned(ctx, rider.ID, false))
	})

	t.Run("banning a missing user is a not-found error", func(t *testing.T) {
		err := repo.SetBanned(ctx, 999999, true)
		require.Error(t, err)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, models.ErrCodeNotFound, appErr.Code)
	})
}
