package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix         = "user:%d"
	PostKeyPrefix         = "post:%d"
	GroupKeyPrefix        = "group:%d"
	FriendListPrefix      = "user:%d:friends"
	NotificationCntPrefix = "user:%d:notifications:unread"
)

const (
	UserTTL            = 5 * time.Minute
	GroupTTL           = 10 * time.Minute
	FriendListTTL      = 2 * time.Minute
	PostTTL            = 30 * time.Minute
	NotificationCntTTL = time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func GroupKey(groupID uint) string {
	return fmt.Sprintf(GroupKeyPrefix, groupID)
}

func FriendListKey(userID uint) string {
	return fmt.Sprintf(FriendListPrefix, userID)
}

func NotificationCountKey(userID uint) string {
	return fmt.Sprintf(NotificationCntPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
	Invalidate(ctx, FriendListKey(userID))
}

func InvalidateGroup(ctx context.Context, groupID uint) {
	Invalidate(ctx, GroupKey(groupID))
}

func InvalidateNotificationCount(ctx context.Context, userID uint) {
	Invalidate(ctx, NotificationCountKey(userID))
}
