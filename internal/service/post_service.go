package service

import (
	"context"
	"log/slog"

	"peloton/internal/middleware"
	"peloton/internal/models"
	"peloton/internal/repository"
	"peloton/internal/validation"
)

// PostService owns posts, replies, images and per-viewer view tracking.
type PostService struct {
	postRepo      repository.PostRepository
	groupRepo     repository.GroupRepository
	friendRepo    repository.FriendRepository
	notifications *NotificationService
	activity      *ActivityTracker
}

// NewPostService returns a new PostService. notifications and activity may
// be nil in tests.
func NewPostService(
	postRepo repository.PostRepository,
	groupRepo repository.GroupRepository,
	friendRepo repository.FriendRepository,
	notifications *NotificationService,
	activity *ActivityTracker,
) *PostService {
	return &PostService{
		postRepo:      postRepo,
		groupRepo:     groupRepo,
		friendRepo:    friendRepo,
		notifications: notifications,
		activity:      activity,
	}
}

// CreatePostInput is the payload for publishing a post.
type CreatePostInput struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	GroupID   *uint    `json:"group_id"`
	ImageURLs []string `json:"image_urls"`
}

// Create publishes a post. Group posts require membership. Friends of the
// author (or the group's members) are notified.
func (s *PostService) Create(ctx context.Context, authorID uint, input CreatePostInput) (*models.Post, error) {
	if err := validation.ValidateTitle(input.Title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateContent(input.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if input.GroupID != nil {
		member, err := s.groupRepo.GetMember(ctx, *input.GroupID, authorID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, models.NewUnauthorizedError("group membership required to post")
		}
	}

	post := &models.Post{
		Title:   input.Title,
		Content: input.Content,
		UserID:  authorID,
		GroupID: input.GroupID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	if len(input.ImageURLs) > 0 {
		if err := s.setImages(ctx, post.ID, input.ImageURLs); err != nil {
			return nil, err
		}
	}

	if s.activity != nil {
		s.activity.Record(ctx, authorID, ActivityPost)
	}
	s.notifyNewPost(ctx, post)

	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) notifyNewPost(ctx context.Context, post *models.Post) {
	if s.notifications == nil {
		return
	}

	var (
		recipients []uint
		err        error
	)
	if post.GroupID != nil {
		recipients, err = s.groupRepo.MemberIDs(ctx, *post.GroupID)
	} else {
		var friends []models.User
		friends, err = s.friendRepo.GetFriends(ctx, post.UserID)
		for _, f := range friends {
			recipients = append(recipients, f.ID)
		}
	}
	if err != nil {
		middleware.Logger.Warn("post fan-out: list recipients failed",
			slog.Uint64("post_id", uint64(post.ID)), slog.String("error", err.Error()))
		return
	}

	loaded, lerr := s.postRepo.GetByID(ctx, post.ID)
	if lerr == nil && loaded != nil {
		post = loaded
	}
	s.notifications.NewPost(ctx, post, recipients)
}

// Get returns a post with images and reply count. When viewerID is non-zero
// the view is recorded, resetting the viewer's new-reply badge.
func (s *PostService) Get(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewerID != 0 {
		if err := s.postRepo.RecordView(ctx, viewerID, id, post.ReplyCount); err != nil {
			middleware.Logger.Warn("record view failed",
				slog.Uint64("post_id", uint64(id)), slog.String("error", err.Error()))
		}
	}
	return post, nil
}

// Feed returns posts for a viewer with new-reply badges computed against the
// viewer's last recorded views.
func (s *PostService) Feed(ctx context.Context, viewerID uint, groupID *uint, limit, offset int) ([]models.Post, error) {
	return s.postRepo.ListForViewer(ctx, viewerID, groupID, limit, offset)
}

// List returns posts filtered by group or author without view tracking.
func (s *PostService) List(ctx context.Context, groupID, authorID *uint, limit, offset int) ([]models.Post, error) {
	return s.postRepo.List(ctx, groupID, authorID, limit, offset)
}

// UpdatePostInput carries editable post fields. Nil means unchanged.
type UpdatePostInput struct {
	Title     *string  `json:"title"`
	Content   *string  `json:"content"`
	ImageURLs []string `json:"image_urls"`
}

// Update edits a post. Author only.
func (s *PostService) Update(ctx context.Context, postID, userID uint, input UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, models.NewUnauthorizedError("only the author can edit a post")
	}

	if input.Title != nil {
		if err := validation.ValidateTitle(*input.Title); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		post.Title = *input.Title
	}
	if input.Content != nil {
		if err := validation.ValidateContent(*input.Content); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		post.Content = *input.Content
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	if input.ImageURLs != nil {
		if err := s.setImages(ctx, postID, input.ImageURLs); err != nil {
			return nil, err
		}
	}
	return s.postRepo.GetByID(ctx, postID)
}

// Delete removes a post. Allowed for the author or a site admin.
func (s *PostService) Delete(ctx context.Context, postID, userID uint, isAdmin bool) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID && !isAdmin {
		return models.NewUnauthorizedError("only the author can delete a post")
	}
	return s.postRepo.Delete(ctx, postID)
}

// Reply adds a reply to a post and notifies its author.
func (s *PostService) Reply(ctx context.Context, postID, userID uint, content string) (*models.PostReply, error) {
	if err := validation.ValidateContent(content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.GroupID != nil {
		member, err := s.groupRepo.GetMember(ctx, *post.GroupID, userID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, models.NewUnauthorizedError("group membership required to reply")
		}
	}

	reply := &models.PostReply{
		PostID:  postID,
		UserID:  userID,
		Content: content,
	}
	if err := s.postRepo.CreateReply(ctx, reply); err != nil {
		return nil, err
	}

	if s.notifications != nil {
		s.notifications.NewReply(ctx, reply, post.UserID)
	}
	return reply, nil
}

// Replies lists a post's replies, oldest first.
func (s *PostService) Replies(ctx context.Context, postID uint, limit, offset int) ([]models.PostReply, error) {
	return s.postRepo.ListReplies(ctx, postID, limit, offset)
}

// DeleteReply removes a reply. Allowed for the reply author, the post
// author, or a site admin.
func (s *PostService) DeleteReply(ctx context.Context, postID, replyID, userID uint, isAdmin bool) error {
	replies, err := s.postRepo.ListReplies(ctx, postID, -1, 0)
	if err != nil {
		return err
	}
	var reply *models.PostReply
	for i := range replies {
		if replies[i].ID == replyID {
			reply = &replies[i]
			break
		}
	}
	if reply == nil {
		return models.NewNotFoundError("reply", replyID)
	}

	if reply.UserID != userID && !isAdmin {
		post, err := s.postRepo.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		if post.UserID != userID {
			return models.NewUnauthorizedError("not allowed to delete this reply")
		}
	}
	return s.postRepo.DeleteReply(ctx, replyID)
}

// MarkViewed records that the viewer has seen the post's current replies.
func (s *PostService) MarkViewed(ctx context.Context, postID, viewerID uint) error {
	count, err := s.postRepo.CountReplies(ctx, postID)
	if err != nil {
		return err
	}
	return s.postRepo.RecordView(ctx, viewerID, postID, int(count))
}

func (s *PostService) setImages(ctx context.Context, postID uint, urls []string) error {
	images := make([]models.PostImage, 0, len(urls))
	for _, url := range urls {
		if url == "" {
			return models.NewValidationError("image url cannot be empty")
		}
		images = append(images, models.PostImage{PostID: postID, URL: url})
	}
	return s.postRepo.ReplaceImages(ctx, postID, images)
}
