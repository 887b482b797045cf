package models

import "time"

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	// NotificationTypeFriendRequest signals a new incoming friend request.
	NotificationTypeFriendRequest NotificationType = "friend_request"
	// NotificationTypeFriendAccepted signals a request the user sent was accepted.
	NotificationTypeFriendAccepted NotificationType = "friend_accepted"
	// NotificationTypeMessage signals a new direct message.
	NotificationTypeMessage NotificationType = "message"
	// NotificationTypeGroupMessage signals a new group message.
	NotificationTypeGroupMessage NotificationType = "group_message"
	// NotificationTypePost signals a new post from a friend or group.
	NotificationTypePost NotificationType = "post"
	// NotificationTypeReply signals a reply on the user's post.
	NotificationTypeReply NotificationType = "reply"
)

// Notification is a denormalized fan-out record for a single recipient.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index" json:"recipient_id"`
	Type        NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	Title       string           `gorm:"not null" json:"title"`
	Message     string           `gorm:"type:text;not null" json:"message"`
	ActorID     *uint            `json:"actor_id,omitempty"`
	Actor       *User            `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	RelatedID   *uint            `json:"related_id,omitempty"`
	RelatedType string           `gorm:"size:30" json:"related_type,omitempty"`
	ActionURL   string           `json:"action_url,omitempty"`
	IsRead      bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ValidNotificationType reports whether the given type is a known enum member.
func ValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationTypeFriendRequest, NotificationTypeFriendAccepted,
		NotificationTypeMessage, NotificationTypeGroupMessage,
		NotificationTypePost, NotificationTypeReply:
		return true
	}
	return false
}

// PushSubscription is one browser push endpoint for a user, keyed uniquely by
// endpoint URL. Deleted when the push service reports the endpoint gone.
type PushSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Endpoint  string    `gorm:"not null;uniqueIndex" json:"endpoint"`
	P256dh    string    `gorm:"not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}
