package server

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"peloton/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPaginationLimit = 20
	maxPaginationLimit     = 100
)

// errResponseWritten signals that a handler helper already wrote the error
// response to the client; the caller should just return it.
var errResponseWritten = fiber.NewError(fiber.StatusTeapot, "response already written")

// parsePagination reads limit/offset query params with sane bounds.
func parsePagination(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", defaultPaginationLimit)
	if limit < 1 {
		limit = defaultPaginationLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// parseID parses a positive uint route parameter. On failure it writes a 400
// response and returns errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	raw := c.Params(param)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam turns a route param name like "replyId" into "reply ID".
func humanizeParam(param string) string {
	words := splitCamel(param)
	for i, w := range words {
		if strings.EqualFold(w, "id") {
			words[i] = "ID"
		} else {
			words[i] = strings.ToLower(w)
		}
	}
	return strings.Join(words, " ")
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// respondServiceError maps a service-layer error onto the HTTP envelope.
func respondServiceError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusForError(err), err)
}

// isAdminByUserID checks the admin flag without loading the full profile.
func (s *Server) isAdminByUserID(ctx context.Context, userID uint) (bool, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("is_admin").First(&user, userID).Error; err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

// isBannedByUserID checks the ban flag without loading the full profile.
func (s *Server) isBannedByUserID(ctx context.Context, userID uint) (bool, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("is_banned").First(&user, userID).Error; err != nil {
		return false, err
	}
	return user.IsBanned, nil
}
