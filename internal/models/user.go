// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// RidingLevel represents a rider's self-reported experience level.
type RidingLevel string

const (
	// RidingLevelBeginner is the entry experience level.
	RidingLevelBeginner RidingLevel = "beginner"
	// RidingLevelIntermediate is the mid experience level.
	RidingLevelIntermediate RidingLevel = "intermediate"
	// RidingLevelAdvanced is the upper experience level.
	RidingLevelAdvanced RidingLevel = "advanced"
	// RidingLevelPro is the competitive experience level.
	RidingLevelPro RidingLevel = "pro"
)

// BikeType represents the kind of bike a rider primarily uses.
type BikeType string

const (
	// BikeTypeRoad is a road bike.
	BikeTypeRoad BikeType = "road"
	// BikeTypeMountain is a mountain bike.
	BikeTypeMountain BikeType = "mountain"
	// BikeTypeGravel is a gravel bike.
	BikeTypeGravel BikeType = "gravel"
	// BikeTypeHybrid is a hybrid/commuter bike.
	BikeTypeHybrid BikeType = "hybrid"
	// BikeTypeEBike is an electric bike.
	BikeTypeEBike BikeType = "ebike"
)

// User represents a rider profile in Peloton.
type User struct {
	ID       uint        `gorm:"primaryKey" json:"id"`
	Username string      `gorm:"unique;not null" json:"username"`
	Email    string      `gorm:"unique;not null" json:"email"`
	Password string      `gorm:"not null" json:"-"`
	Bio      string      `gorm:"type:text" json:"bio"`
	Avatar   string      `json:"avatar"`
	Level    RidingLevel `gorm:"type:varchar(20);default:'beginner'" json:"level"`
	BikeType BikeType    `gorm:"type:varchar(20);default:'road'" json:"bike_type"`
	City     string      `json:"city"`
	Lat      *float64    `json:"lat,omitempty"`
	Lng      *float64    `json:"lng,omitempty"`

	// InteractionScore is recomputed in the application tier after each
	// qualifying write; never set by clients.
	InteractionScore float64 `json:"interaction_score"`

	// Activity timestamps feeding the interaction score.
	LastLoginAt          *time.Time `json:"last_login_at,omitempty"`
	LastMessageAt        *time.Time `json:"last_message_at,omitempty"`
	LastPostAt           *time.Time `json:"last_post_at,omitempty"`
	LastFriendAcceptedAt *time.Time `json:"last_friend_accepted_at,omitempty"`

	IsAdmin  bool `gorm:"default:false" json:"is_admin"`
	IsBanned bool `gorm:"default:false" json:"is_banned"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Posts     []Post         `gorm:"foreignKey:UserID" json:"posts,omitempty"`
}

// ValidRidingLevel reports whether the given level is a known enum member.
func ValidRidingLevel(l RidingLevel) bool {
	switch l {
	case RidingLevelBeginner, RidingLevelIntermediate, RidingLevelAdvanced, RidingLevelPro:
		return true
	}
	return false
}

// ValidBikeType reports whether the given bike type is a known enum member.
func ValidBikeType(b BikeType) bool {
	switch b {
	case BikeTypeRoad, BikeTypeMountain, BikeTypeGravel, BikeTypeHybrid, BikeTypeEBike:
		return true
	}
	return false
}
