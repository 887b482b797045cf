package repository

import (
	"context"
	"errors"

	"peloton/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines persistence operations for posts, replies, images
// and per-user view tracking.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, groupID *uint, authorID *uint, limit, offset int) ([]models.Post, error)
	ListForViewer(ctx context.Context, viewerID uint, groupID *uint, limit, offset int) ([]models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error

	CreateReply(ctx context.Context, reply *models.PostReply) error
	ListReplies(ctx context.Context, postID uint, limit, offset int) ([]models.PostReply, error)
	CountReplies(ctx context.Context, postID uint) (int64, error)
	DeleteReply(ctx context.Context, replyID uint) error

	ReplaceImages(ctx context.Context, postID uint, images []models.PostImage) error

	RecordView(ctx context.Context, userID, postID uint, seenReplyCount int) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}

	count, err := r.CountReplies(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.ReplyCount = int(count)
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, groupID *uint, authorID *uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	tx := r.db.WithContext(ctx).Model(&models.Post{})
	if groupID != nil {
		tx = tx.Where("group_id = ?", *groupID)
	}
	if authorID != nil {
		tx = tx.Where("user_id = ?", *authorID)
	}
	if err := tx.
		Preload("User").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.fillReplyCounts(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ListForViewer lists posts with reply counts and, per post, how many replies
// arrived since the viewer's last recorded view.
func (r *postRepository) ListForViewer(ctx context.Context, viewerID uint, groupID *uint, limit, offset int) ([]models.Post, error) {
	posts, err := r.List(ctx, groupID, nil, limit, offset)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return posts, nil
	}

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	var views []models.PostView
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Find(&views).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	seen := make(map[uint]int, len(views))
	for _, v := range views {
		seen[v.PostID] = v.SeenReplyCount
	}
	for i := range posts {
		posts[i].NewReplies = posts[i].ReplyCount - seen[posts[i].ID]
		if posts[i].NewReplies < 0 {
			posts[i].NewReplies = 0
		}
	}
	return posts, nil
}

func (r *postRepository) fillReplyCounts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	type replyCount struct {
		PostID uint
		N      int
	}
	var counts []replyCount
	if err := r.db.WithContext(ctx).
		Model(&models.PostReply{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&counts).Error; err != nil {
		return models.NewInternalError(err)
	}

	byPost := make(map[uint]int, len(counts))
	for _, c := range counts {
		byPost[c.PostID] = c.N
	}
	for i := range posts {
		posts[i].ReplyCount = byPost[posts[i].ID]
	}
	return nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) CreateReply(ctx context.Context, reply *models.PostReply) error {
	if err := r.db.WithContext(ctx).Create(reply).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) ListReplies(ctx context.Context, postID uint, limit, offset int) ([]models.PostReply, error) {
	var replies []models.PostReply
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Preload("User").
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&replies).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return replies, nil
}

func (r *postRepository) CountReplies(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PostReply{}).
		Where("post_id = ?", postID).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *postRepository) DeleteReply(ctx context.Context, replyID uint) error {
	res := r.db.WithContext(ctx).Delete(&models.PostReply{}, replyID)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("PostReply", replyID)
	}
	return nil
}

// ReplaceImages swaps the post's image set in one transaction, preserving
// the caller-supplied ordering.
func (r *postRepository) ReplaceImages(ctx context.Context, postID uint, images []models.PostImage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostImage{}).Error; err != nil {
			return err
		}
		if len(images) == 0 {
			return nil
		}
		for i := range images {
			images[i].PostID = postID
			images[i].Position = i
		}
		return tx.Create(&images).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// RecordView upserts the viewer's last-seen reply count for the post.
func (r *postRepository) RecordView(ctx context.Context, userID, postID uint, seenReplyCount int) error {
	view := models.PostView{
		UserID:         userID,
		PostID:         postID,
		SeenReplyCount: seenReplyCount,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"seen_reply_count", "viewed_at"}),
		}).
		Create(&view).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
