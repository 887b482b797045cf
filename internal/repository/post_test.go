package repository

import (
	"context"
	"testing"

	"peloton/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_RepliesAndViews(t *testing.T) {
	repo := NewPostRepository(testDB)
	ctx := context.Background()

	author := newTestUser(t, "post_a")
	viewer := newTestUser(t, "post_v")

	post := &models.Post{
		Title:   "Col du Test ride report",
		Content: "brutal headwind on the descent",
		UserID:  author.ID,
	}
	require.NoError(t, repo.Create(ctx, post))

	require.NoError(t, repo.CreateReply(ctx, &models.PostReply{
		PostID: post.ID, UserID: viewer.ID, Content: "nice one",
	}))
	require.NoError(t, repo.CreateReply(ctx, &models.PostReply{
		PostID: post.ID, UserID: viewer.ID, Content: "what gearing?",
	}))

	t.Run("reply count computed on fetch", func(t *testing.T) {
		got, err := repo.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.ReplyCount)
	})

	t.Run("all replies are new before first view", func(t *testing.T) {
		posts, err := repo.ListForViewer(ctx, viewer.ID, nil, 50, 0)
		require.NoError(t, err)
		found := findPost(t, posts, post.ID)
		assert.Equal(t, 2, found.NewReplies)
	})

	t.Run("view resets the new-reply badge", func(t *testing.T) {
		require.NoError(t, repo.RecordView(ctx, viewer.ID, post.ID, 2))

		posts, err := repo.ListForViewer(ctx, viewer.ID, nil, 50, 0)
		require.NoError(t, err)
		found := findPost(t, posts, post.ID)
		assert.Equal(t, 0, found.NewReplies)
	})

	t.Run("later replies raise the badge again", func(t *testing.T) {
		require.NoError(t, repo.CreateReply(ctx, &models.PostReply{
			PostID: post.ID, UserID: author.ID, Content: "34x32",
		}))

		posts, err := repo.ListForViewer(ctx, viewer.ID, nil, 50, 0)
		require.NoError(t, err)
		found := findPost(t, posts, post.ID)
		assert.Equal(t, 1, found.NewReplies)
	})

	t.Run("view upsert keeps one row per user and post", func(t *testing.T) {
		require.NoError(t, repo.RecordView(ctx, viewer.ID, post.ID, 3))

		var rows int64
		testDB.Model(&models.PostView{}).
			Where("user_id = ? AND post_id = ?", viewer.ID, post.ID).
			Count(&rows)
		assert.EqualValues(t, 1, rows)

		var view models.PostView
		require.NoError(t, testDB.
			Where("user_id = ? AND post_id = ?", viewer.ID, post.ID).
			First(&view).Error)
		assert.Equal(t, 3, view.SeenReplyCount)
	})
}

func TestPostRepository_Images(t *testing.T) {
	repo := NewPostRepository(testDB)
	ctx := context.Background()

	author := newTestUser(t, "post_img")
	post := &models.Post{Title: "photo dump", Content: "gravel weekend", UserID: author.ID}
	require.NoError(t, repo.Create(ctx, post))

	require.NoError(t, repo.ReplaceImages(ctx, post.ID, []models.PostImage{
		{URL: "https://cdn.peloton.test/a.jpg"},
		{URL: "https://cdn.peloton.test/b.jpg"},
	}))

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 2)
	assert.Equal(t, 0, got.Images[0].Position)
	assert.Equal(t, 1, got.Images[1].Position)

	// Replacement drops the old set.
	require.NoError(t, repo.ReplaceImages(ctx, post.ID, []models.PostImage{
		{URL: "https://cdn.peloton.test/c.jpg"},
	}))
	got, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 1)
	assert.Equal(t, "https://cdn.peloton.test/c.jpg", got.Images[0].URL)
}

func findPost(t *testing.T, posts []models.Post, id uint) *models.Post {
	t.Helper()
	for i := range posts {
		if posts[i].ID == id {
			return &posts[i]
		}
	}
	t.Fatalf("post %d not in result set", id)
	return nil
}
