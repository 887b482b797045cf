package server

import (
	"peloton/internal/models"
	"peloton/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost publishes a post to the feed or to a group.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var input service.CreatePostInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.Create(c.Context(), userID, input)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusCreated, post)
}

// GetFeed returns posts for the caller, each annotated with the number of
// replies added since the caller last viewed it.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	limit, offset := parsePagination(c)

	var groupID *uint
	if gid := uint(c.QueryInt("group_id", 0)); gid != 0 {
		groupID = &gid
	}

	posts, err := s.postService.Feed(c.Context(), userID, groupID, limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, posts)
}

// GetPost returns a single post and records the view for the caller.
func (s *Server) GetPost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Get(c.Context(), postID, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, post)
}

// UpdatePost edits a post. Author only.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var input service.UpdatePostInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.Update(c.Context(), postID, userID, input)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, post)
}

// DeletePost removes a post. Author only; admins use the admin route.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.Delete(c.Context(), postID, userID, false); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Post deleted"})
}

// CreateReply adds a reply to a post and notifies the post's author.
func (s *Server) CreateReply(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	reply, err := s.postService.Reply(c.Context(), postID, userID, req.Content)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusCreated, reply)
}

// GetReplies lists a post's replies, oldest first.
func (s *Server) GetReplies(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	limit, offset := parsePagination(c)

	replies, err := s.postService.Replies(c.Context(), postID, limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, replies)
}

// DeleteReply removes a reply. Allowed for the reply's author and the post's
// author.
func (s *Server) DeleteReply(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	replyID, err := parseID(c, "replyId")
	if err != nil {
		return nil
	}

	if err := s.postService.DeleteReply(c.Context(), postID, replyID, userID, false); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Reply deleted"})
}

// MarkPostViewed records that the caller has seen the post's current replies,
// clearing its new-reply badge.
func (s *Server) MarkPostViewed(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.MarkViewed(c.Context(), postID, userID); err != nil {
		return respondServiceError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Post marked viewed"})
}
