package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents a rider's post: a write-up, ride report or photo set.
type Post struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Title   string `gorm:"not null" json:"title"`
	Content string `gorm:"type:text;not null" json:"content"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	User    User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	GroupID *uint  `gorm:"index" json:"group_id,omitempty"`
	Group   *Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`

	Images  []PostImage `gorm:"foreignKey:PostID" json:"images,omitempty"`
	Replies []PostReply `gorm:"foreignKey:PostID" json:"replies,omitempty"`

	// ReplyCount is not persisted; computed at query time.
	ReplyCount int `gorm:"-" json:"reply_count"`
	// NewReplies reports replies since the requesting user's last view (computed).
	NewReplies int `gorm:"-" json:"new_replies"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PostImage is an ordered image attached to a post.
type PostImage struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PostID   uint   `gorm:"not null;index;uniqueIndex:idx_post_image_position" json:"post_id"`
	URL      string `gorm:"not null" json:"url"`
	Position int    `gorm:"not null;default:0;uniqueIndex:idx_post_image_position" json:"position"`
}

// PostReply is a reply to a post.
type PostReply struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PostView tracks, per (user, post), the reply count last seen by the user.
// The delta against the current reply count drives "new activity" badges.
type PostView struct {
	UserID         uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID         uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	SeenReplyCount int       `gorm:"not null;default:0" json:"seen_reply_count"`
	ViewedAt       time.Time `gorm:"autoUpdateTime" json:"viewed_at"`
}
