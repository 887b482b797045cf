// Package service contains the business logic between handlers and repositories.
package service

import (
	"context"
	"log/slog"
	"time"

	"peloton/internal/middleware"
	"peloton/internal/repository"
	"peloton/internal/scoring"
)

// ActivityKind names a score-qualifying user action.
type ActivityKind string

const (
	ActivityLogin          ActivityKind = "login"
	ActivityMessage        ActivityKind = "message"
	ActivityPost           ActivityKind = "post"
	ActivityFriendAccepted ActivityKind = "friend_accepted"
)

var activityColumns = map[ActivityKind]string{
	ActivityLogin:          "last_login_at",
	ActivityMessage:        "last_message_at",
	ActivityPost:           "last_post_at",
	ActivityFriendAccepted: "last_friend_accepted_at",
}

// ActivityTracker recomputes a user's interaction score after each
// qualifying write. Failures are logged, never propagated: scoring must not
// break the action that triggered it.
type ActivityTracker struct {
	userRepo repository.UserRepository
}

// NewActivityTracker returns a new ActivityTracker.
func NewActivityTracker(userRepo repository.UserRepository) *ActivityTracker {
	return &ActivityTracker{userRepo: userRepo}
}

// Record stamps the activity timestamp for the kind and persists the freshly
// computed score.
func (t *ActivityTracker) Record(ctx context.Context, userID uint, kind ActivityKind) {
	column, ok := activityColumns[kind]
	if !ok {
		return
	}

	user, err := t.userRepo.GetByID(ctx, userID)
	if err != nil {
		middleware.Logger.Warn("activity tracking: load user failed",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
		return
	}

	now := time.Now()
	switch kind {
	case ActivityLogin:
		user.LastLoginAt = &now
	case ActivityMessage:
		user.LastMessageAt = &now
	case ActivityPost:
		user.LastPostAt = &now
	case ActivityFriendAccepted:
		user.LastFriendAcceptedAt = &now
	}

	score := scoring.InteractionScore(user, now)
	if err := t.userRepo.TouchActivity(ctx, userID, column, now, score); err != nil {
		middleware.Logger.Warn("activity tracking: persist failed",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}
